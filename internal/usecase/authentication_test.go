package usecase

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
	"github.com/arklim/identity-adapter/internal/repository"
	"github.com/arklim/identity-adapter/internal/repository/memory"
)

func newTestAuthService(t *testing.T, store port.UserStore, opts AuthOptions, clock *testClock) *AuthService {
	t.Helper()
	svc, err := NewAuthService(store, opts)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc.WithLogger(zaptest.NewLogger(t)).WithClock(clock.Now)
}

func TestNewAuthServiceRequiresStore(t *testing.T) {
	if _, err := NewAuthService(nil, AuthOptions{}); !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
}

func TestAuthenticateLocalSuccess(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)
	alice := mustCreate(t, store, "alice", strongPassword)
	mustAddClaim(t, store, alice, domain.ClaimName, "Alice Liddell")

	observer := &recordingObserver{}
	svc := newTestAuthService(t, store, AuthOptions{EnableSecurityStamp: true}, clock).WithObserver(observer)

	result, err := svc.AuthenticateLocal(ctx, "  alice ", strongPassword)
	if err != nil {
		t.Fatalf("AuthenticateLocal: %v", err)
	}
	if result == nil || result.IsError() {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Subject != alice.ID {
		t.Fatalf("expected subject %s, got %s", alice.ID, result.Subject)
	}
	if result.DisplayName != "Alice Liddell" {
		t.Fatalf("expected display name from name claim, got %q", result.DisplayName)
	}
	if result.AuthenticationMethod != "" || result.IdentityProvider != "" {
		t.Fatalf("local result must not carry provider data: %+v", result)
	}

	stamp, ok := domain.FindClaim(result.Claims, domain.ClaimSecurityStamp)
	if !ok || stamp.Value != alice.SecurityStamp {
		t.Fatalf("expected security stamp claim %q, got %+v", alice.SecurityStamp, result.Claims)
	}
	if len(result.Claims) != 1 {
		t.Fatalf("expected only the stamp claim, got %+v", result.Claims)
	}
	if observer.last() != "local:success" {
		t.Fatalf("unexpected observation %q", observer.last())
	}
}

func TestAuthenticateLocalOmitsStampWhenDisabled(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)
	mustCreate(t, store, "alice", strongPassword)

	svc := newTestAuthService(t, store, AuthOptions{}, clock)
	result, err := svc.AuthenticateLocal(context.Background(), "alice", strongPassword)
	if err != nil || result == nil {
		t.Fatalf("AuthenticateLocal: %+v %v", result, err)
	}
	if len(result.Claims) != 0 {
		t.Fatalf("expected no claims, got %+v", result.Claims)
	}
	if result.DisplayName != "alice" {
		t.Fatalf("expected username fallback, got %q", result.DisplayName)
	}
}

func TestAuthenticateLocalRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{Lockout: domain.LockoutPolicy{
		EnabledByDefault:  true,
		MaxFailedAttempts: 5,
		Duration:          15 * time.Minute,
	}}, clock)
	alice := mustCreate(t, store, "alice", strongPassword)
	svc := newTestAuthService(t, store, AuthOptions{}, clock)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{name: "unknown user", username: "mallory", password: strongPassword},
		{name: "wrong password", username: "alice", password: "not-the-password"},
		{name: "blank username", username: "  ", password: strongPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := svc.AuthenticateLocal(ctx, tc.username, tc.password)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != nil {
				t.Fatalf("expected no result, got %+v", result)
			}
		})
	}

	current, err := store.FindByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if current.AccessFailedCount != 1 {
		t.Fatalf("expected one failed access recorded, got %d", current.AccessFailedCount)
	}
}

func TestAuthenticateLocalLockoutAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{Lockout: domain.LockoutPolicy{
		EnabledByDefault:  true,
		MaxFailedAttempts: 3,
		Duration:          15 * time.Minute,
	}}, clock)
	mustCreate(t, store, "alice", strongPassword)

	observer := &recordingObserver{}
	svc := newTestAuthService(t, store, AuthOptions{}, clock).WithObserver(observer)

	for i := 0; i < 3; i++ {
		if result, err := svc.AuthenticateLocal(ctx, "alice", "wrong"); err != nil || result != nil {
			t.Fatalf("attempt %d: expected silent failure, got %+v %v", i, result, err)
		}
	}

	result, err := svc.AuthenticateLocal(ctx, "alice", strongPassword)
	if err != nil {
		t.Fatalf("AuthenticateLocal: %v", err)
	}
	if result != nil {
		t.Fatalf("locked account must not authenticate, got %+v", result)
	}
	if observer.last() != "local:locked_out" {
		t.Fatalf("expected locked_out observation, got %q", observer.last())
	}

	clock.Advance(16 * time.Minute)
	result, err = svc.AuthenticateLocal(ctx, "alice", strongPassword)
	if err != nil || result == nil {
		t.Fatalf("expected success once the lock expired, got %+v %v", result, err)
	}

	current, _ := store.FindByUsername(ctx, "alice")
	if current.AccessFailedCount != 0 {
		t.Fatalf("expected counter reset after success, got %d", current.AccessFailedCount)
	}
}

func TestAuthenticateLocalWithoutPasswordCapability(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)
	mustCreate(t, store, "alice", strongPassword)

	observer := &recordingObserver{}
	svc := newTestAuthService(t, baseStore{store}, AuthOptions{}, clock).WithObserver(observer)

	result, err := svc.AuthenticateLocal(context.Background(), "alice", strongPassword)
	if err != nil || result != nil {
		t.Fatalf("expected no result and no error, got %+v %v", result, err)
	}
	if observer.last() != "local:unsupported" {
		t.Fatalf("expected unsupported observation, got %q", observer.last())
	}
}

func TestPostAuthenticateHookShortCircuits(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)
	mustCreate(t, store, "alice", strongPassword)

	calls := 0
	override := domain.NewAuthenticateError("second factor required")
	svc := newTestAuthService(t, store, AuthOptions{}, clock).
		WithPostAuthenticateHook(func(_ context.Context, account *domain.Account) (*domain.AuthenticateResult, error) {
			calls++
			if account.Username != "alice" {
				t.Fatalf("hook received %+v", account)
			}
			return override, nil
		})

	if result, _ := svc.AuthenticateLocal(ctx, "alice", "wrong"); result != nil || calls != 0 {
		t.Fatalf("hook must not run for a failed password check (calls=%d)", calls)
	}

	result, err := svc.AuthenticateLocal(ctx, "alice", strongPassword)
	if err != nil {
		t.Fatalf("AuthenticateLocal: %v", err)
	}
	if result != override {
		t.Fatalf("expected hook result returned unchanged, got %+v", result)
	}
	if calls != 1 {
		t.Fatalf("expected one hook call, got %d", calls)
	}
}

func TestPostAuthenticateHookPassThrough(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)
	alice := mustCreate(t, store, "alice", strongPassword)

	svc := newTestAuthService(t, store, AuthOptions{}, clock).
		WithPostAuthenticateHook(func(context.Context, *domain.Account) (*domain.AuthenticateResult, error) {
			return nil, nil
		})

	result, err := svc.AuthenticateLocal(context.Background(), "alice", strongPassword)
	if err != nil || result == nil || result.Subject != alice.ID {
		t.Fatalf("expected standard success, got %+v %v", result, err)
	}
}

func TestDisplayNameResolution(t *testing.T) {
	cases := []struct {
		name       string
		customType string
		claims     []domain.Claim
		want       string
	}{
		{
			name:       "custom type wins",
			customType: "nickname",
			claims: []domain.Claim{
				domain.NewClaim(domain.ClaimName, "Alice Liddell"),
				domain.NewClaim("nickname", "Ali"),
			},
			want: "Ali",
		},
		{
			name:       "custom type missing falls back to name",
			customType: "nickname",
			claims:     []domain.Claim{domain.NewClaim(domain.ClaimName, "Alice Liddell")},
			want:       "Alice Liddell",
		},
		{
			name:   "generic name claim",
			claims: []domain.Claim{domain.NewClaim(domain.ClaimGenericName, "A. Liddell")},
			want:   "A. Liddell",
		},
		{
			name: "username fallback",
			want: "alice",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := newTestClock()
			store := newTestStore(t, repository.StoreOptions{}, clock)
			alice := mustCreate(t, store, "alice", strongPassword)
			for _, c := range tc.claims {
				mustAddClaim(t, store, alice, c.Type, c.Value)
			}

			svc := newTestAuthService(t, store, AuthOptions{DisplayNameClaimType: tc.customType}, clock)
			result, err := svc.AuthenticateLocal(context.Background(), "alice", strongPassword)
			if err != nil || result == nil {
				t.Fatalf("AuthenticateLocal: %+v %v", result, err)
			}
			if result.DisplayName != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, result.DisplayName)
			}
		})
	}
}

var generatedUsername = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestAuthenticateExternalProvisionsNewAccount(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)

	observer := &recordingObserver{}
	events := &recordingPublisher{}
	svc := newTestAuthService(t, store, AuthOptions{}, clock).WithObserver(observer).WithEvents(events)

	result, err := svc.AuthenticateExternal(ctx, &domain.ExternalIdentity{
		Provider:          "google",
		ProviderSubjectID: "abc123",
		Claims: []domain.Claim{
			domain.NewClaim(domain.ClaimEmail, "a@x.com"),
			domain.NewClaim(domain.ClaimEmailVerified, "true"),
			domain.NewClaim(domain.ClaimName, "Ann"),
		},
	})
	if err != nil {
		t.Fatalf("AuthenticateExternal: %v", err)
	}
	if result == nil || result.IsError() {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.AuthenticationMethod != domain.AuthenticationMethodExternal || result.IdentityProvider != "google" {
		t.Fatalf("expected external result from google, got %+v", result)
	}
	if result.DisplayName != "Ann" {
		t.Fatalf("expected display name Ann, got %q", result.DisplayName)
	}

	account, err := store.FindByID(ctx, result.Subject)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !generatedUsername.MatchString(account.Username) {
		t.Fatalf("expected a generated username, got %q", account.Username)
	}
	if account.Email != "a@x.com" || !account.EmailConfirmed {
		t.Fatalf("expected confirmed email, got %q confirmed=%v", account.Email, account.EmailConfirmed)
	}
	if account.PasswordHash != "" {
		t.Fatal("external accounts must not carry a password")
	}

	claims, err := store.Claims(ctx, account)
	if err != nil {
		t.Fatalf("Claims: %v", err)
	}
	if len(claims) != 1 || !claims[0].Equal(domain.NewClaim(domain.ClaimName, "Ann")) {
		t.Fatalf("expected only the name claim to be stored, got %+v", claims)
	}

	linked, err := store.FindByLogin(ctx, domain.ExternalLogin{Provider: "google", ProviderSubjectID: "abc123"})
	if err != nil || linked.ID != account.ID {
		t.Fatalf("expected login linked to %s, got %+v %v", account.ID, linked, err)
	}

	if len(events.provisioned) != 1 {
		t.Fatalf("expected one provisioning event, got %d", len(events.provisioned))
	}
	event := events.provisioned[0]
	if !event.EmailLinked || event.PhoneLinked || event.ClaimsAdded != 1 || event.AccountID != account.ID {
		t.Fatalf("unexpected event %+v", event)
	}
	if len(observer.provisioned) != 1 || observer.provisioned[0] != "google" {
		t.Fatalf("expected provisioning observed for google, got %v", observer.provisioned)
	}
}

func TestAuthenticateExternalIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)
	svc := newTestAuthService(t, store, AuthOptions{}, clock)

	identity := &domain.ExternalIdentity{
		Provider:          "google",
		ProviderSubjectID: "abc123",
		Claims:            []domain.Claim{domain.NewClaim(domain.ClaimName, "Ann")},
	}
	first, err := svc.AuthenticateExternal(ctx, identity)
	if err != nil || first.IsError() {
		t.Fatalf("first sign-in: %+v %v", first, err)
	}

	identity.Claims = append(identity.Claims, domain.NewClaim("locale", "fr"))
	second, err := svc.AuthenticateExternal(ctx, identity)
	if err != nil || second.IsError() {
		t.Fatalf("second sign-in: %+v %v", second, err)
	}
	if second.Subject != first.Subject {
		t.Fatalf("expected same subject, got %s and %s", first.Subject, second.Subject)
	}

	_, total, err := store.QueryUsers(ctx, domain.Query{Count: -1})
	if err != nil || total != 1 {
		t.Fatalf("expected a single account, got %d (%v)", total, err)
	}

	account, _ := store.FindByID(ctx, first.Subject)
	claims, _ := store.Claims(ctx, account)
	if len(claims) != 1 {
		t.Fatalf("returning sign-ins must not merge claims, got %+v", claims)
	}
}

func TestAuthenticateExternalKeepsEmailClaimsWhenAddressTaken(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{RequireUniqueEmail: true}, clock)

	bob := &domain.Account{Username: "bob", Email: "a@x.com"}
	if err := store.Create(ctx, bob, strongPassword); err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc := newTestAuthService(t, store, AuthOptions{}, clock)
	result, err := svc.AuthenticateExternal(ctx, &domain.ExternalIdentity{
		Provider:          "google",
		ProviderSubjectID: "abc123",
		Claims: []domain.Claim{
			domain.NewClaim(domain.ClaimEmail, "a@x.com"),
			domain.NewClaim(domain.ClaimEmailVerified, "true"),
		},
	})
	if err != nil || result.IsError() {
		t.Fatalf("expected success despite the taken address, got %+v %v", result, err)
	}

	account, _ := store.FindByID(ctx, result.Subject)
	if account.Email != "" {
		t.Fatalf("email must stay unset, got %q", account.Email)
	}
	claims, _ := store.Claims(ctx, account)
	if len(claims) != 2 {
		t.Fatalf("expected email claims kept as generic claims, got %+v", claims)
	}
}

func TestAuthenticateExternalLinksVerifiedPhone(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)
	svc := newTestAuthService(t, store, AuthOptions{}, clock)

	result, err := svc.AuthenticateExternal(ctx, &domain.ExternalIdentity{
		Provider:          "facebook",
		ProviderSubjectID: "fb-1",
		Claims: []domain.Claim{
			domain.NewClaim(domain.ClaimPhoneNumber, "+15550100"),
			domain.NewClaim(domain.ClaimPhoneNumberVerified, "true"),
		},
	})
	if err != nil || result.IsError() {
		t.Fatalf("AuthenticateExternal: %+v %v", result, err)
	}

	account, _ := store.FindByID(ctx, result.Subject)
	if account.Phone != "+15550100" || !account.PhoneConfirmed {
		t.Fatalf("expected confirmed phone, got %q confirmed=%v", account.Phone, account.PhoneConfirmed)
	}
	claims, _ := store.Claims(ctx, account)
	if len(claims) != 0 {
		t.Fatalf("phone claims must be consumed, got %+v", claims)
	}
}

func TestAuthenticateExternalDeduplicatesClaims(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)
	svc := newTestAuthService(t, store, AuthOptions{}, clock)

	result, err := svc.AuthenticateExternal(ctx, &domain.ExternalIdentity{
		Provider:          "google",
		ProviderSubjectID: "abc123",
		Claims: []domain.Claim{
			domain.NewClaim("group", "admins"),
			domain.NewClaim("group", "admins"),
			domain.NewClaim("locale", "fr"),
		},
	})
	if err != nil || result.IsError() {
		t.Fatalf("AuthenticateExternal: %+v %v", result, err)
	}

	account, _ := store.FindByID(ctx, result.Subject)
	claims, _ := store.Claims(ctx, account)
	if len(claims) != 2 {
		t.Fatalf("expected duplicates collapsed, got %+v", claims)
	}
}

func TestAuthenticateExternalAbortsOnRejectedClaim(t *testing.T) {
	clock := newTestClock()
	store := &rejectingClaimStore{AccountStore: newTestStore(t, repository.StoreOptions{}, clock), message: "Claim store is full."}
	observer := &recordingObserver{}
	svc := newTestAuthService(t, store, AuthOptions{}, clock).WithObserver(observer)

	result, err := svc.AuthenticateExternal(context.Background(), &domain.ExternalIdentity{
		Provider:          "google",
		ProviderSubjectID: "abc123",
		Claims:            []domain.Claim{domain.NewClaim("locale", "fr")},
	})
	if err != nil {
		t.Fatalf("AuthenticateExternal: %v", err)
	}
	if !result.IsError() || result.Error != "Claim store is full." {
		t.Fatalf("expected the store message, got %+v", result)
	}
	if observer.last() != "external:rejected" {
		t.Fatalf("expected rejected observation, got %q", observer.last())
	}
}

func TestAuthenticateExternalValidation(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)
	svc := newTestAuthService(t, store, AuthOptions{}, clock)

	for _, identity := range []*domain.ExternalIdentity{nil, {Provider: "google"}, {ProviderSubjectID: "abc"}} {
		if _, err := svc.AuthenticateExternal(context.Background(), identity); !errors.Is(err, ErrExternalIdentityRequired) {
			t.Fatalf("expected ErrExternalIdentityRequired for %+v, got %v", identity, err)
		}
	}

	limited := newTestAuthService(t, newQueryOnlyStore(store), AuthOptions{}, clock)
	_, err := limited.AuthenticateExternal(context.Background(), &domain.ExternalIdentity{Provider: "google", ProviderSubjectID: "abc"})
	if !errors.Is(err, ErrExternalLoginsNotSupported) {
		t.Fatalf("expected ErrExternalLoginsNotSupported, got %v", err)
	}
}

func TestIsActive(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)
	alice := mustCreate(t, store, "alice", strongPassword)

	svc := newTestAuthService(t, store, AuthOptions{EnableSecurityStamp: true}, clock)
	result, err := svc.AuthenticateLocal(ctx, "alice", strongPassword)
	if err != nil || result == nil {
		t.Fatalf("AuthenticateLocal: %+v %v", result, err)
	}
	principal := &domain.Principal{Subject: result.Subject, Claims: result.Claims}

	active, err := svc.IsActive(ctx, principal)
	if err != nil || !active {
		t.Fatalf("expected active session, got %v %v", active, err)
	}

	if active, _ := svc.IsActive(ctx, &domain.Principal{Subject: alice.ID}); !active {
		t.Fatal("a principal without a stamp claim stays active")
	}

	token, err := store.GeneratePasswordResetToken(ctx, alice)
	if err != nil {
		t.Fatalf("GeneratePasswordResetToken: %v", err)
	}
	if err := store.ResetPassword(ctx, alice, token, "An0ther!Passphrase#2026"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	active, err = svc.IsActive(ctx, principal)
	if err != nil || active {
		t.Fatalf("expected stale stamp to deactivate the session, got %v %v", active, err)
	}

	lenient := newTestAuthService(t, store, AuthOptions{}, clock)
	if active, _ := lenient.IsActive(ctx, principal); !active {
		t.Fatal("stamp must be ignored when propagation is disabled")
	}

	if active, err := svc.IsActive(ctx, &domain.Principal{Subject: "missing"}); err != nil || active {
		t.Fatalf("expected unknown subject inactive, got %v %v", active, err)
	}
	if _, err := svc.IsActive(ctx, nil); !errors.Is(err, ErrSubjectRequired) {
		t.Fatalf("expected ErrSubjectRequired, got %v", err)
	}
}

func TestGetProfileData(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)
	alice := mustCreate(t, store, "alice", strongPassword)
	if err := store.SetEmail(ctx, alice, "alice@example.com"); err != nil {
		t.Fatalf("SetEmail: %v", err)
	}
	mustAddClaim(t, store, alice, domain.ClaimGivenName, "Alice")
	roles := memory.NewRoleStore()
	store.WithRoles(roles)
	admins := &domain.Role{Name: "admins"}
	if err := roles.Create(ctx, admins); err != nil {
		t.Fatalf("Create role: %v", err)
	}
	if err := roles.AddMember(ctx, admins, alice); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	svc := newTestAuthService(t, store, AuthOptions{}, clock)

	claims, err := svc.GetProfileData(ctx, alice.ID, nil)
	if err != nil {
		t.Fatalf("GetProfileData: %v", err)
	}
	want := []domain.Claim{
		domain.NewClaim(domain.ClaimSubject, alice.ID),
		domain.NewClaim(domain.ClaimPreferredUsername, "alice"),
		domain.NewClaim(domain.ClaimEmail, "alice@example.com"),
		domain.NewClaim(domain.ClaimEmailVerified, "false"),
		domain.NewClaim(domain.ClaimGivenName, "Alice"),
		domain.NewClaim(domain.ClaimRole, "admins"),
	}
	if len(claims) != len(want) {
		t.Fatalf("expected %d claims, got %+v", len(want), claims)
	}
	for i := range want {
		if !claims[i].Equal(want[i]) {
			t.Fatalf("claim %d: expected %+v, got %+v", i, want[i], claims[i])
		}
	}

	filtered, err := svc.GetProfileData(ctx, alice.ID, []string{domain.ClaimEmail, domain.ClaimRole})
	if err != nil {
		t.Fatalf("GetProfileData filtered: %v", err)
	}
	if len(filtered) != 2 || filtered[0].Type != domain.ClaimEmail || filtered[1].Type != domain.ClaimRole {
		t.Fatalf("unexpected filtered claims %+v", filtered)
	}

	if _, err := svc.GetProfileData(ctx, " ", nil); !errors.Is(err, ErrSubjectRequired) {
		t.Fatalf("expected ErrSubjectRequired, got %v", err)
	}
	if _, err := svc.GetProfileData(ctx, "missing", nil); !errors.Is(err, ErrInvalidSubject) {
		t.Fatalf("expected ErrInvalidSubject, got %v", err)
	}
}
