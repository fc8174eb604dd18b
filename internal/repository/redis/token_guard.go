package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/identity-adapter/internal/core/port"
)

const defaultTokenGuardPrefix = "iam:redeemed"

// TokenGuardRepository records redeemed single-use token identifiers in Redis so a token
// can be redeemed only once across every replica.
type TokenGuardRepository struct {
	client *red.Client
	prefix string
}

// NewTokenGuardRepository wires a Redis client into a replay guard.
func NewTokenGuardRepository(client *red.Client, keyPrefix string) *TokenGuardRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultTokenGuardPrefix
	}

	return &TokenGuardRepository{client: client, prefix: prefix}
}

// MarkUsed implements port.TokenReplayGuard. The record expires with the token.
func (r *TokenGuardRepository) MarkUsed(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("ttl must be positive")
	}

	key := r.key(tokenID)
	if key == "" {
		return false, errors.New("token id must not be empty")
	}

	stored, err := r.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx redeemed token: %w", err)
	}

	return stored, nil
}

// IsUsed reports whether tokenID has been redeemed and is still tracked.
func (r *TokenGuardRepository) IsUsed(ctx context.Context, tokenID string) (bool, error) {
	key := r.key(tokenID)
	if key == "" {
		return false, errors.New("token id must not be empty")
	}

	if err := r.client.Get(ctx, key).Err(); err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get redeemed token: %w", err)
	}

	return true, nil
}

func (r *TokenGuardRepository) key(tokenID string) string {
	trimmed := strings.TrimSpace(tokenID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.TokenReplayGuard = (*TokenGuardRepository)(nil)
