package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/identity-adapter/internal/core/port"
)

// TokenPurpose scopes a token to a single account operation.
type TokenPurpose string

const (
	PurposeEmailConfirmation TokenPurpose = "email_confirmation"
	PurposePhoneChange       TokenPurpose = "phone_change"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

var (
	// ErrInvalidPurposeToken covers malformed, expired, tampered or mismatched tokens.
	ErrInvalidPurposeToken = errors.New("invalid token")
	// ErrPurposeTokenUsed indicates the token has already been redeemed.
	ErrPurposeTokenUsed = errors.New("token already used")
)

const defaultPurposeTokenIssuer = "identity-adapter"

// PurposeTokenConfig configures signing and lifetimes of purpose tokens.
type PurposeTokenConfig struct {
	SigningSecret        string
	Issuer               string
	EmailConfirmationTTL time.Duration
	PhoneChangeTTL       time.Duration
	PasswordResetTTL     time.Duration
}

type purposeClaims struct {
	Purpose TokenPurpose `json:"purpose"`
	Stamp   string       `json:"stamp,omitempty"`
	Target  string       `json:"target,omitempty"`
	jwt.RegisteredClaims
}

// PurposeTokens issues and redeems HS256 tokens bound to an account subject, its security
// stamp and an optional target value (the new phone number, for instance). Redemption is
// single-use when a replay guard is attached.
type PurposeTokens struct {
	secret []byte
	issuer string
	ttls   map[TokenPurpose]time.Duration
	guard  port.TokenReplayGuard
	now    func() time.Time
}

// NewPurposeTokens validates cfg and builds the token service.
func NewPurposeTokens(cfg PurposeTokenConfig, guard port.TokenReplayGuard) (*PurposeTokens, error) {
	secret := strings.TrimSpace(cfg.SigningSecret)
	if len(secret) < 16 {
		return nil, fmt.Errorf("purpose tokens: signing secret must be at least 16 characters")
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultPurposeTokenIssuer
	}

	ttls := map[TokenPurpose]time.Duration{
		PurposeEmailConfirmation: orDefault(cfg.EmailConfirmationTTL, 24*time.Hour),
		PurposePhoneChange:       orDefault(cfg.PhoneChangeTTL, 15*time.Minute),
		PurposePasswordReset:     orDefault(cfg.PasswordResetTTL, time.Hour),
	}

	return &PurposeTokens{
		secret: []byte(secret),
		issuer: issuer,
		ttls:   ttls,
		guard:  guard,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the internal clock for deterministic testing.
func (p *PurposeTokens) WithClock(clock func() time.Time) *PurposeTokens {
	if clock != nil {
		p.now = clock
	}
	return p
}

// Issue signs a token for purpose. subject identifies the account, stamp is its current
// security stamp and target is the value the token authorises, if any.
func (p *PurposeTokens) Issue(purpose TokenPurpose, subject, stamp, target string) (string, error) {
	ttl, ok := p.ttls[purpose]
	if !ok {
		return "", fmt.Errorf("purpose tokens: unknown purpose %q", purpose)
	}
	if subject == "" {
		return "", fmt.Errorf("purpose tokens: subject is required")
	}

	now := p.now()
	claims := purposeClaims{
		Purpose: purpose,
		Stamp:   stamp,
		Target:  target,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    p.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("purpose tokens: sign: %w", err)
	}
	return signed, nil
}

// Redeem verifies token against the expected binding and consumes it.
func (p *PurposeTokens) Redeem(ctx context.Context, token string, purpose TokenPurpose, subject, stamp, target string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidPurposeToken
	}

	claims := &purposeClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithSubject(subject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPurposeToken, err)
	}

	if claims.Purpose != purpose || claims.Stamp != stamp || claims.Target != target {
		return ErrInvalidPurposeToken
	}

	if p.guard == nil {
		return nil
	}

	ttl := claims.ExpiresAt.Time.Sub(p.now())
	if ttl <= 0 {
		return ErrInvalidPurposeToken
	}
	fresh, err := p.guard.MarkUsed(ctx, purposeTokenKey(purpose, claims.ID), ttl)
	if err != nil {
		return fmt.Errorf("purpose tokens: record redemption: %w", err)
	}
	if !fresh {
		return ErrPurposeTokenUsed
	}
	return nil
}

func purposeTokenKey(purpose TokenPurpose, id string) string {
	return string(purpose) + ":" + id
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
