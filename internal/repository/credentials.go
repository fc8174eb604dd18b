package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/infra/security"
)

// ErrTokensNotConfigured is returned by token operations of a store built without purpose tokens.
var ErrTokensNotConfigured = errors.New("repository: purpose tokens not configured")

// Credentials bundles the password and token primitives every store backend shares.
type Credentials struct {
	Hasher *security.PasswordHasher
	Policy *security.PasswordPolicy
	Tokens *security.PurposeTokens
}

func (c Credentials) hasher() *security.PasswordHasher {
	if c.Hasher == nil {
		return security.DefaultPasswordHasher()
	}
	return c.Hasher
}

// HashNewPassword checks password against the policy and hashes it. Policy violations
// come back as a Rejection.
func (c Credentials) HashNewPassword(password string, account domain.Account) (string, error) {
	if violations := c.Policy.Check(password, account.Username, account.Email); len(violations) > 0 {
		return "", Reject(violations...)
	}
	hash, err := c.hasher().Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// VerifyPassword compares password against the account's stored hash.
func (c Credentials) VerifyPassword(account domain.Account, password string) (bool, error) {
	return c.hasher().Verify(password, account.PasswordHash)
}

// IssueToken signs a purpose token bound to account's subject and current stamp.
func (c Credentials) IssueToken(purpose security.TokenPurpose, account domain.Account, target string) (string, error) {
	if c.Tokens == nil {
		return "", ErrTokensNotConfigured
	}
	return c.Tokens.Issue(purpose, TokenSubject(account), account.SecurityStamp, target)
}

// RedeemToken consumes a purpose token. Invalid or replayed tokens come back as a Rejection.
func (c Credentials) RedeemToken(ctx context.Context, purpose security.TokenPurpose, account domain.Account, token, target string) error {
	if c.Tokens == nil {
		return ErrTokensNotConfigured
	}

	err := c.Tokens.Redeem(ctx, token, purpose, TokenSubject(account), account.SecurityStamp, target)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, security.ErrInvalidPurposeToken), errors.Is(err, security.ErrPurposeTokenUsed):
		return Reject("Invalid token.")
	default:
		return err
	}
}

// TokenSubject binds purpose tokens to the account id, or to the username before creation.
func TokenSubject(account domain.Account) string {
	if account.ID != "" {
		return account.ID
	}
	return "pending:" + strings.ToLower(strings.TrimSpace(account.Username))
}

// RotateStamp assigns a fresh security stamp to account.
func RotateStamp(account *domain.Account) error {
	stamp, err := security.NewSecurityStamp()
	if err != nil {
		return err
	}
	account.SecurityStamp = stamp
	return nil
}

// StoreOptions configures an account store backend.
type StoreOptions struct {
	Credentials        Credentials
	Lockout            domain.LockoutPolicy
	RequireUniqueEmail bool
}
