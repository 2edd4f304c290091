package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/procurebot/procurement-backend/pkg/config"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"gopkg.in/gomail.v2"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Notifier delivers rendered messages to people who act on them.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier sends notifications over SMTP.
type EmailNotifier struct {
	sender mailSender
	from   string
	to     []string
}

// NewEmailNotifier builds an SMTP notifier from configuration.
func NewEmailNotifier(cfg config.SMTPConfig) (*EmailNotifier, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("smtp host, sender and recipients are required")
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return newEmailNotifier(dialer, cfg.From, cfg.To), nil
}

func newEmailNotifier(sender mailSender, from string, to []string) *EmailNotifier {
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	return &EmailNotifier{sender: sender, from: from, to: recipients}
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the structured log. It is used when
// SMTP is not configured.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	if n.logg == nil {
		return nil
	}
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"subject": msg.Subject,
		"body":    msg.Text,
	})
	n.logg.Info(logCtx, "notification")
	return nil
}
