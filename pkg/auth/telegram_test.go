package auth

import (
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"
)

const testBotToken = "123456:ABC-token"

func signedInitData(t *testing.T, token string, authDate time.Time, user string) string {
	t.Helper()
	values := url.Values{}
	values.Set("auth_date", "0")
	if !authDate.IsZero() {
		values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	}
	values.Set("query_id", "AAH")
	if user != "" {
		values.Set("user", user)
	}
	values.Set("hash", SignInitData(token, values))
	return values.Encode()
}

func TestVerifyAcceptsSignedInitData(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	raw := signedInitData(t, testBotToken, now, `{"id":42,"first_name":"Ivan","username":"ivan"}`)

	verifier := NewInitDataVerifier(testBotToken, time.Hour)
	verifier.now = func() time.Time { return now.Add(time.Minute) }

	data, err := verifier.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if data.User.ID != 42 || data.User.DisplayName() != "Ivan" {
		t.Fatalf("unexpected user %+v", data.User)
	}
	if !data.AuthDate.Equal(now) {
		t.Fatalf("unexpected auth date %s", data.AuthDate)
	}
}

func TestVerifyRejectsTamperedData(t *testing.T) {
	raw := signedInitData(t, testBotToken, time.Time{}, `{"id":42,"first_name":"Ivan"}`)
	values, _ := url.ParseQuery(raw)
	values.Set("user", `{"id":7,"first_name":"Mallory"}`)

	_, err := NewInitDataVerifier(testBotToken, 0).Verify(values.Encode())
	if !errors.Is(err, ErrBadHash) {
		t.Fatalf("expected ErrBadHash, got %v", err)
	}
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	raw := signedInitData(t, "other:token", time.Time{}, `{"id":42}`)
	if _, err := NewInitDataVerifier(testBotToken, 0).Verify(raw); !errors.Is(err, ErrBadHash) {
		t.Fatalf("expected ErrBadHash, got %v", err)
	}
}

func TestVerifyMissingPieces(t *testing.T) {
	verifier := NewInitDataVerifier(testBotToken, 0)
	if _, err := verifier.Verify(""); !errors.Is(err, ErrMissingInitData) {
		t.Fatalf("expected ErrMissingInitData, got %v", err)
	}
	if _, err := verifier.Verify("user=%7B%7D"); !errors.Is(err, ErrMissingHash) {
		t.Fatalf("expected ErrMissingHash, got %v", err)
	}
	raw := signedInitData(t, testBotToken, time.Time{}, "")
	if _, err := verifier.Verify(raw); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0).UTC()
	raw := signedInitData(t, testBotToken, issued, `{"id":42}`)

	verifier := NewInitDataVerifier(testBotToken, time.Hour)
	verifier.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := verifier.Verify(raw); !errors.Is(err, ErrExpiredInitData) {
		t.Fatalf("expected ErrExpiredInitData, got %v", err)
	}
}
