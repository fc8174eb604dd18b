package port

import (
	"context"
	"time"
)

// TokenReplayGuard records redeemed single-use tokens.
type TokenReplayGuard interface {
	// MarkUsed records tokenID for ttl. It returns false when the token was already recorded.
	MarkUsed(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
}
