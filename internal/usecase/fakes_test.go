package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
	"github.com/arklim/identity-adapter/internal/infra/security"
	"github.com/arklim/identity-adapter/internal/repository"
	"github.com/arklim/identity-adapter/internal/repository/memory"
)

const strongPassword = "C0mplex!Passphrase#2025"

// testClock is a settable time source shared by the store and the services.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts repository.StoreOptions, clock *testClock) *memory.AccountStore {
	t.Helper()

	hasher, err := security.NewPasswordHasher(security.Argon2Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	guard := security.NewMemoryReplayGuard(0).WithClock(clock.Now)
	tokens, err := security.NewPurposeTokens(security.PurposeTokenConfig{
		SigningSecret: "0123456789abcdef0123456789abcdef",
	}, guard)
	if err != nil {
		t.Fatalf("NewPurposeTokens: %v", err)
	}

	opts.Credentials.Hasher = hasher
	opts.Credentials.Tokens = tokens.WithClock(clock.Now)
	if opts.Credentials.Policy == nil {
		opts.Credentials.Policy = security.NewPasswordPolicy(security.DefaultPasswordPolicyConfig())
	}
	return memory.NewAccountStore(opts).WithClock(clock.Now)
}

func mustCreate(t *testing.T, store port.UserStore, username, password string) *domain.Account {
	t.Helper()
	account := &domain.Account{Username: username}
	if err := store.Create(context.Background(), account, password); err != nil {
		t.Fatalf("Create(%s): %v", username, err)
	}
	return account
}

func mustAddClaim(t *testing.T, store port.ClaimStore, account *domain.Account, claimType, value string) {
	t.Helper()
	if err := store.AddClaim(context.Background(), account, domain.NewClaim(claimType, value)); err != nil {
		t.Fatalf("AddClaim(%s): %v", claimType, err)
	}
}

// baseStore exposes only the mandatory account operations.
type baseStore struct {
	port.UserStore
}

// queryOnlyStore adds listing and nothing else.
type queryOnlyStore struct {
	port.UserStore
	port.QueryableUserStore
}

func newQueryOnlyStore(store *memory.AccountStore) queryOnlyStore {
	return queryOnlyStore{UserStore: store, QueryableUserStore: store}
}

// rejectingClaimStore refuses every claim addition.
type rejectingClaimStore struct {
	*memory.AccountStore
	message string
}

func (s *rejectingClaimStore) AddClaim(context.Context, *domain.Account, domain.Claim) error {
	return repository.Reject(s.message)
}

type recordingObserver struct {
	mu          sync.Mutex
	outcomes    []string
	provisioned []string
}

func (o *recordingObserver) ObserveAuthentication(method, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, method+":"+outcome)
}

func (o *recordingObserver) ObserveExternalProvisioned(provider string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.provisioned = append(o.provisioned, provider)
}

func (o *recordingObserver) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.outcomes) == 0 {
		return ""
	}
	return o.outcomes[len(o.outcomes)-1]
}

type recordingPublisher struct {
	mu              sync.Mutex
	accountsCreated []domain.AccountCreatedEvent
	provisioned     []domain.ExternalAccountProvisionedEvent
	accountsDeleted []domain.AccountDeletedEvent
	rolesCreated    []domain.RoleCreatedEvent
	rolesDeleted    []domain.RoleDeletedEvent
}

func (p *recordingPublisher) PublishAccountCreated(_ context.Context, event domain.AccountCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accountsCreated = append(p.accountsCreated, event)
	return nil
}

func (p *recordingPublisher) PublishExternalAccountProvisioned(_ context.Context, event domain.ExternalAccountProvisionedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.provisioned = append(p.provisioned, event)
	return nil
}

func (p *recordingPublisher) PublishAccountDeleted(_ context.Context, event domain.AccountDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accountsDeleted = append(p.accountsDeleted, event)
	return nil
}

func (p *recordingPublisher) PublishRoleCreated(_ context.Context, event domain.RoleCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rolesCreated = append(p.rolesCreated, event)
	return nil
}

func (p *recordingPublisher) PublishRoleDeleted(_ context.Context, event domain.RoleDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rolesDeleted = append(p.rolesDeleted, event)
	return nil
}

var (
	_ port.AuthObserver   = (*recordingObserver)(nil)
	_ port.EventPublisher = (*recordingPublisher)(nil)
)
