package security

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arklim/identity-adapter/internal/core/port"
)

// MemoryReplayGuard records redeemed token identifiers in process memory until they expire.
// It serves single-node deployments and tests; clustered deployments use the redis guard.
type MemoryReplayGuard struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	maxEntries int
	now        func() time.Time
}

// NewMemoryReplayGuard constructs a guard holding at most maxEntries live records
// (zero means unbounded). When full, the records closest to expiry are evicted first.
func NewMemoryReplayGuard(maxEntries int) *MemoryReplayGuard {
	return &MemoryReplayGuard{
		entries:    make(map[string]time.Time),
		maxEntries: maxEntries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic testing.
func (g *MemoryReplayGuard) WithClock(clock func() time.Time) *MemoryReplayGuard {
	if clock != nil {
		g.mu.Lock()
		g.now = clock
		g.mu.Unlock()
	}
	return g
}

// MarkUsed implements port.TokenReplayGuard.
func (g *MemoryReplayGuard) MarkUsed(_ context.Context, tokenID string, ttl time.Duration) (bool, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return false, fmt.Errorf("token id is required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("ttl must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	if expiresAt, ok := g.entries[tokenID]; ok {
		if expiresAt.After(now) {
			return false, nil
		}
		// Expired entries are lazily pruned on access.
		delete(g.entries, tokenID)
	}

	if g.maxEntries > 0 && len(g.entries) >= g.maxEntries {
		g.pruneLocked(now)
		if len(g.entries) >= g.maxEntries {
			g.evictOldestLocked(len(g.entries) - g.maxEntries + 1)
		}
	}

	g.entries[tokenID] = now.Add(ttl)
	return true, nil
}

// Len reports the number of live records.
func (g *MemoryReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked(g.now().UTC())
	return len(g.entries)
}

func (g *MemoryReplayGuard) pruneLocked(now time.Time) {
	for key, expiresAt := range g.entries {
		if !expiresAt.After(now) {
			delete(g.entries, key)
		}
	}
}

func (g *MemoryReplayGuard) evictOldestLocked(count int) {
	if count <= 0 || len(g.entries) == 0 {
		return
	}
	type item struct {
		key string
		exp time.Time
	}
	values := make([]item, 0, len(g.entries))
	for key, exp := range g.entries {
		values = append(values, item{key: key, exp: exp})
	}
	sort.Slice(values, func(i, j int) bool { return values[i].exp.Before(values[j].exp) })
	if count > len(values) {
		count = len(values)
	}
	for i := 0; i < count; i++ {
		delete(g.entries, values[i].key)
	}
}

var _ port.TokenReplayGuard = (*MemoryReplayGuard)(nil)
