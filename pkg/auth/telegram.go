package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingInitData = errors.New("missing init data")
	ErrMissingHash     = errors.New("init data hash missing")
	ErrBadHash         = errors.New("init data hash mismatch")
	ErrExpiredInitData = errors.New("init data expired")
	ErrMissingUser     = errors.New("init data user missing")
)

// TelegramUser is the subset of the WebApp user object the backend reads.
type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// DisplayName prefers the first name, then the username.
func (u TelegramUser) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return strings.TrimSpace(u.Username)
}

// InitData is a verified Telegram WebApp launch payload.
type InitData struct {
	User     TelegramUser
	AuthDate time.Time
}

// InitDataVerifier validates Telegram WebApp initData strings.
type InitDataVerifier struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

// NewInitDataVerifier builds a verifier for the bot token. maxAge <= 0
// disables the auth_date freshness check.
func NewInitDataVerifier(botToken string, maxAge time.Duration) *InitDataVerifier {
	return &InitDataVerifier{botToken: botToken, maxAge: maxAge, now: time.Now}
}

// Verify checks the hash over the sorted data-check-string using
// secret = HMAC_SHA256("WebAppData", bot_token) and decodes the user.
func (v *InitDataVerifier) Verify(raw string) (*InitData, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingInitData
	}
	if strings.TrimSpace(v.botToken) == "" {
		return nil, fmt.Errorf("bot token not configured")
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("parse init data: %w", err)
	}
	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrMissingHash
	}

	expected, err := hex.DecodeString(hash)
	if err != nil {
		return nil, ErrBadHash
	}
	if !hmac.Equal(signInitData(v.botToken, dataCheckString(values)), expected) {
		return nil, ErrBadHash
	}

	out := &InitData{}
	if authDate := values.Get("auth_date"); authDate != "" {
		secs, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid auth_date: %w", err)
		}
		out.AuthDate = time.Unix(secs, 0).UTC()
	}
	if v.maxAge > 0 {
		if out.AuthDate.IsZero() || v.now().Sub(out.AuthDate) > v.maxAge {
			return nil, ErrExpiredInitData
		}
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return nil, ErrMissingUser
	}
	if err := json.Unmarshal([]byte(rawUser), &out.User); err != nil {
		return nil, fmt.Errorf("decode init data user: %w", err)
	}
	if out.User.ID == 0 {
		return nil, ErrMissingUser
	}
	return out, nil
}

// SignInitData returns a hex hash for the provided fields. It is the inverse
// of Verify and is used by tests and local tooling.
func SignInitData(botToken string, values url.Values) string {
	return hex.EncodeToString(signInitData(botToken, dataCheckString(values)))
}

func dataCheckString(values url.Values) string {
	pairs := make([]string, 0, len(values))
	for key, vals := range values {
		if key == "hash" || len(vals) == 0 {
			continue
		}
		pairs = append(pairs, key+"="+vals[0])
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "\n")
}

func signInitData(botToken, check string) []byte {
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(check))
	return mac.Sum(nil)
}
