// Package dispatcher delivers committed outbox rows to their handlers.
//
// Rows are read without holding a transaction and every handler runs outside
// of one; only the bookkeeping for a single row (published, failed, DLQ) is
// written in a short transaction. On SQLite this keeps the single writer free
// while e-mails are being sent.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/outbox"
	"github.com/procurebot/procurement-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize     = 50
	defaultPollInterval  = 500 * time.Millisecond
	defaultHandleTimeout = 15 * time.Second
	defaultMaxAttempts   = 10
	maxBackoff           = 10 * time.Second
	defaultRetryDelay    = time.Second
	maxRetryDelay        = 5 * time.Minute
	jitterWindow         = 250 * time.Millisecond
	outcomePublished     = "published"
	outcomeRetry         = "retry"
	outcomeDeadLettered  = "dead_lettered"
)

var (
	jitterMu     sync.Mutex
	jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Handler consumes one decoded event. Returning a registry.NonRetryableError
// sends the row straight to the DLQ; any other error is retried.
type Handler interface {
	Handle(ctx context.Context, event *registry.ResolvedEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event *registry.ResolvedEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event *registry.ResolvedEvent) error {
	return f(ctx, event)
}

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublished(ctx context.Context, limit, maxAttempts int, now time.Time) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error, nextAttemptAt time.Time) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type outcomeRecorder interface {
	OutboxOutcome(eventType, outcome string)
}

type Params struct {
	Logger        *logger.Logger
	DB            dbClient
	Repository    outboxRepository
	DLQRepository dlqRepository
	Registry      registryResolver
	Handlers      map[enums.OutboxEventType]Handler
	Metrics       outcomeRecorder
	BatchSize     int
	MaxAttempts   int
	PollInterval  time.Duration
	HandleTimeout time.Duration
	// RetryDelay is the wait after the first failed attempt; it doubles on
	// every further failure up to maxRetryDelay.
	RetryDelay time.Duration
	Now        func() time.Time
}

type Dispatcher struct {
	logg          *logger.Logger
	db            dbClient
	repo          outboxRepository
	dlq           dlqRepository
	registry      registryResolver
	handlers      map[enums.OutboxEventType]Handler
	metrics       outcomeRecorder
	batchSize     int
	maxAttempts   int
	pollInterval  time.Duration
	handleTimeout time.Duration
	retryDelay    time.Duration
	now           func() time.Time
	wake          chan struct{}
}

func New(params Params) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.DLQRepository == nil {
		return nil, errors.New("dlq repository is required")
	}

	d := &Dispatcher{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repository,
		dlq:           params.DLQRepository,
		registry:      params.Registry,
		handlers:      make(map[enums.OutboxEventType]Handler, len(params.Handlers)),
		metrics:       params.Metrics,
		batchSize:     params.BatchSize,
		maxAttempts:   params.MaxAttempts,
		pollInterval:  params.PollInterval,
		handleTimeout: params.HandleTimeout,
		retryDelay:    params.RetryDelay,
		now:           params.Now,
		wake:          make(chan struct{}, 1),
	}
	for eventType, h := range params.Handlers {
		if h != nil {
			d.handlers[eventType] = h
		}
	}
	if d.batchSize <= 0 {
		d.batchSize = defaultBatchSize
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = defaultMaxAttempts
	}
	if d.pollInterval <= 0 {
		d.pollInterval = defaultPollInterval
	}
	if d.handleTimeout <= 0 {
		d.handleTimeout = defaultHandleTimeout
	}
	if d.retryDelay <= 0 {
		d.retryDelay = defaultRetryDelay
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

// Wake asks a running dispatcher to poll now. It never blocks.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := d.db.Ping(ctx); err != nil {
		d.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	backoff := d.pollInterval
	for {
		select {
		case <-ctx.Done():
			d.logg.Info(ctx, "outbox dispatcher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := d.ProcessBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logg.Error(ctx, "outbox dispatcher batch error", err)
			backoff = nextBackoff(backoff, d.pollInterval, maxBackoff)
			if err := d.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = d.pollInterval
		if processed {
			continue
		}
		if err := d.sleep(ctx, withJitter(d.pollInterval)); err != nil {
			return err
		}
	}
}

// ProcessBatch dispatches up to one batch of due rows and reports whether
// any row was found. Rows waiting out a retry delay are not due.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (bool, error) {
	events, err := d.repo.FetchUnpublished(ctx, d.batchSize, d.maxAttempts, d.now().UTC())
	if err != nil {
		return false, fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(events) == 0 {
		return false, nil
	}
	for _, event := range events {
		if err := d.dispatch(ctx, event); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, event models.OutboxEvent) error {
	resolved, err := d.registry.Resolve(event)
	if err != nil {
		return d.handleTerminal(ctx, event, enums.OutboxDLQReasonNonRetryable, err, nil)
	}

	fields := d.eventFields(event, resolved.Envelope)
	handler, ok := d.handlers[event.EventType]
	if !ok {
		return d.handleTerminal(ctx, event, enums.OutboxDLQReasonNoHandler,
			fmt.Errorf("no handler registered for %s", event.EventType), fields)
	}

	if err := d.invoke(ctx, handler, resolved); err != nil {
		var nonRetry registry.NonRetryableError
		if errors.As(err, &nonRetry) {
			return d.handleTerminal(ctx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
		}

		nextAttempt := event.AttemptCount + 1
		fields["attempt_count"] = nextAttempt
		if nextAttempt >= d.maxAttempts {
			fields["terminal_reason"] = "max_attempts"
			terminalErr := fmt.Errorf("max delivery attempts reached: %w", err)
			return d.handleTerminal(ctx, event, enums.OutboxDLQReasonMaxAttempts, terminalErr, fields)
		}

		nextAt := d.now().UTC().Add(withJitter(retryDelay(d.retryDelay, nextAttempt)))
		fields["next_attempt_at"] = nextAt.Format(time.RFC3339Nano)
		ctxWithFields := d.logg.WithFields(ctx, fields)
		ctxWithFields = d.logg.WithField(ctxWithFields, "error", err.Error())
		d.logg.Warn(ctxWithFields, "outbox delivery failed")
		d.record(event, outcomeRetry)
		return d.db.WithTx(ctx, func(tx *gorm.DB) error {
			if markErr := d.repo.MarkFailedTx(tx, event.ID, err, nextAt); markErr != nil {
				return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
			}
			return nil
		})
	}

	if err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		return d.repo.MarkPublishedTx(tx, event.ID)
	}); err != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	d.record(event, outcomePublished)
	d.logg.Info(d.logg.WithFields(ctx, fields), "outbox event delivered")
	return nil
}

func (d *Dispatcher) invoke(ctx context.Context, handler Handler, resolved *registry.ResolvedEvent) (err error) {
	handleCtx, cancel := context.WithTimeout(ctx, d.handleTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(handleCtx, resolved)
}

func (d *Dispatcher) handleTerminal(ctx context.Context, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, err error, fields map[string]any) error {
	if fields == nil {
		fields = d.eventFields(event, outbox.PayloadEnvelope{})
	}
	fields["error_reason"] = reason
	ctxWithFields := d.logg.WithFields(ctx, fields)
	ctxWithFields = d.logg.WithField(ctxWithFields, "error", err.Error())
	d.logg.Warn(ctxWithFields, "outbox event will not be retried")

	dlqEntry := models.OutboxDLQ{
		ID:            uuid.New(),
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  dlqErrorMessage(err),
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	txErr := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		if dlqErr := d.dlq.InsertTx(tx, dlqEntry); dlqErr != nil {
			return fmt.Errorf("insert dlq %s: %w", event.ID, dlqErr)
		}
		if markErr := d.repo.MarkTerminalTx(tx, event.ID, err, d.maxAttempts); markErr != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}
	d.record(event, outcomeDeadLettered)
	return nil
}

func (d *Dispatcher) record(event models.OutboxEvent, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.OutboxOutcome(string(event.EventType), outcome)
}

func dlqErrorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

func (d *Dispatcher) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     d.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.wake:
		return nil
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// retryDelay returns the wait after the given failed attempt (1-based).
func retryDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitterMu.Lock()
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	jitterMu.Unlock()
	return d + jitter
}
