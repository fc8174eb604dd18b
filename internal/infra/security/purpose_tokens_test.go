package security

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testSigningSecret = "0123456789abcdef0123456789abcdef"

func newTestPurposeTokens(t *testing.T, now *time.Time) *PurposeTokens {
	t.Helper()
	tokens, err := NewPurposeTokens(PurposeTokenConfig{SigningSecret: testSigningSecret}, NewMemoryReplayGuard(0))
	if err != nil {
		t.Fatalf("NewPurposeTokens returned error: %v", err)
	}
	clock := func() time.Time { return *now }
	tokens.WithClock(clock)
	tokens.guard.(*MemoryReplayGuard).WithClock(clock)
	return tokens
}

func TestPurposeTokensRedeemOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tokens := newTestPurposeTokens(t, &now)

	token, err := tokens.Issue(PurposeEmailConfirmation, "acct-1", "stamp-1", "a@x.com")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if err := tokens.Redeem(ctx, token, PurposeEmailConfirmation, "acct-1", "stamp-1", "a@x.com"); err != nil {
		t.Fatalf("Redeem returned error: %v", err)
	}
	if err := tokens.Redeem(ctx, token, PurposeEmailConfirmation, "acct-1", "stamp-1", "a@x.com"); !errors.Is(err, ErrPurposeTokenUsed) {
		t.Fatalf("expected ErrPurposeTokenUsed on replay, got %v", err)
	}
}

func TestPurposeTokensRejectMismatchedBinding(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tokens := newTestPurposeTokens(t, &now)

	token, err := tokens.Issue(PurposePhoneChange, "acct-1", "stamp-1", "+15550100")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	cases := map[string]struct {
		purpose TokenPurpose
		subject string
		stamp   string
		target  string
	}{
		"purpose": {PurposePasswordReset, "acct-1", "stamp-1", "+15550100"},
		"subject": {PurposePhoneChange, "acct-2", "stamp-1", "+15550100"},
		"stamp":   {PurposePhoneChange, "acct-1", "stamp-2", "+15550100"},
		"target":  {PurposePhoneChange, "acct-1", "stamp-1", "+15550199"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tokens.Redeem(ctx, token, tc.purpose, tc.subject, tc.stamp, tc.target)
			if !errors.Is(err, ErrInvalidPurposeToken) {
				t.Fatalf("expected ErrInvalidPurposeToken, got %v", err)
			}
		})
	}
}

func TestPurposeTokensExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tokens := newTestPurposeTokens(t, &now)

	token, err := tokens.Issue(PurposePasswordReset, "acct-1", "stamp-1", "")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if err := tokens.Redeem(ctx, token, PurposePasswordReset, "acct-1", "stamp-1", ""); !errors.Is(err, ErrInvalidPurposeToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestPurposeTokensRejectForeignSignature(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tokens := newTestPurposeTokens(t, &now)

	other, err := NewPurposeTokens(PurposeTokenConfig{SigningSecret: "another-secret-of-enough-length"}, nil)
	if err != nil {
		t.Fatalf("NewPurposeTokens returned error: %v", err)
	}
	other.WithClock(func() time.Time { return now })

	token, err := other.Issue(PurposeEmailConfirmation, "acct-1", "", "")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if err := tokens.Redeem(ctx, token, PurposeEmailConfirmation, "acct-1", "", ""); !errors.Is(err, ErrInvalidPurposeToken) {
		t.Fatalf("expected signature mismatch to be rejected, got %v", err)
	}
}

func TestNewPurposeTokensRequiresSecret(t *testing.T) {
	if _, err := NewPurposeTokens(PurposeTokenConfig{SigningSecret: "short"}, nil); err == nil {
		t.Fatal("expected error for short secret")
	}
}
