package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	uuid "github.com/google/uuid"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
	"github.com/arklim/identity-adapter/internal/infra/security"
	"github.com/arklim/identity-adapter/internal/repository"
)

// AccountStore is an in-process account store implementing every optional capability.
type AccountStore struct {
	mu         sync.RWMutex
	accounts   map[string]*domain.Account
	byUsername map[string]string
	claims     map[string][]domain.Claim
	logins     map[domain.ExternalLogin]string
	roles      *RoleStore

	creds       repository.Credentials
	lockout     domain.LockoutPolicy
	uniqueEmail bool
	now         func() time.Time
}

// NewAccountStore constructs an empty store.
func NewAccountStore(opts repository.StoreOptions) *AccountStore {
	return &AccountStore{
		accounts:    make(map[string]*domain.Account),
		byUsername:  make(map[string]string),
		claims:      make(map[string][]domain.Claim),
		logins:      make(map[domain.ExternalLogin]string),
		creds:       opts.Credentials,
		lockout:     opts.Lockout,
		uniqueEmail: opts.RequireUniqueEmail,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic testing.
func (s *AccountStore) WithClock(clock func() time.Time) *AccountStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithRoles links the role store that owns memberships; RoleNames resolves
// current role names through it.
func (s *AccountStore) WithRoles(roles *RoleStore) *AccountStore {
	s.roles = roles
	return s
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// FindByID implements port.UserStore.
func (s *AccountStore) FindByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.accounts[strings.TrimSpace(id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

// FindByUsername implements port.UserStore. Usernames compare case-insensitively.
func (s *AccountStore) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	s.mu.RLock()
	id, ok := s.byUsername[normalizeUsername(username)]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.FindByID(ctx, id)
}

// Create implements port.UserStore.
func (s *AccountStore) Create(_ context.Context, account *domain.Account, password string) error {
	if account == nil {
		return fmt.Errorf("account is required")
	}
	if account.Persisted() {
		return repository.Reject("Account already exists.")
	}

	username := strings.TrimSpace(account.Username)
	if username == "" {
		return repository.Reject("Username is required.")
	}

	var hash string
	if password != "" {
		var err error
		if hash, err = s.creds.HashNewPassword(password, *account); err != nil {
			return err
		}
	}

	stamp := account.SecurityStamp
	if stamp == "" {
		var err error
		if stamp, err = security.NewSecurityStamp(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[normalizeUsername(username)]; taken {
		return repository.Reject(fmt.Sprintf("Username '%s' is already taken.", username))
	}
	if s.emailTakenLocked(account.Email, "") {
		return repository.Reject(fmt.Sprintf("Email '%s' is already taken.", account.Email))
	}

	account.ID = uuid.NewString()
	account.Username = username
	account.SecurityStamp = stamp
	account.LockoutEnabled = s.lockout.EnabledByDefault
	account.CreatedAt = s.now().UTC()
	if hash != "" {
		account.PasswordHash = hash
	}

	stored := *account
	s.accounts[account.ID] = &stored
	s.byUsername[normalizeUsername(username)] = account.ID
	return nil
}

// Update implements port.UserStore. Only the profile fields are copied onto the stored
// account; the caller's entity is refreshed from it.
func (s *AccountStore) Update(_ context.Context, account *domain.Account) error {
	if !account.Persisted() {
		return repository.ErrNotFound
	}

	username := strings.TrimSpace(account.Username)
	newKey := normalizeUsername(username)
	if newKey == "" {
		return repository.Reject("Username is required.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.accounts[account.ID]
	if !ok {
		return repository.ErrNotFound
	}

	oldKey := normalizeUsername(stored.Username)
	if oldKey != newKey {
		if _, taken := s.byUsername[newKey]; taken {
			return repository.Reject(fmt.Sprintf("Username '%s' is already taken.", username))
		}
		delete(s.byUsername, oldKey)
		s.byUsername[newKey] = account.ID
	}

	stored.Username = username
	stored.GivenName = account.GivenName
	stored.FamilyName = account.FamilyName
	*account = *stored
	return nil
}

// Delete implements port.UserStore.
func (s *AccountStore) Delete(_ context.Context, account *domain.Account) error {
	if !account.Persisted() {
		return repository.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.accounts[account.ID]
	if !ok {
		return repository.ErrNotFound
	}

	delete(s.byUsername, normalizeUsername(stored.Username))
	delete(s.accounts, account.ID)
	delete(s.claims, account.ID)
	if s.roles != nil {
		s.roles.dropAccount(account.ID)
	}
	for login, id := range s.logins {
		if id == account.ID {
			delete(s.logins, login)
		}
	}
	return nil
}

// mutate applies fn to the stored copy of a persisted account and refreshes the caller's
// entity, or to the entity itself when it has not been created yet.
func (s *AccountStore) mutate(account *domain.Account, fn func(a *domain.Account) error) error {
	if account == nil {
		return fmt.Errorf("account is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !account.Persisted() {
		return fn(account)
	}

	stored, ok := s.accounts[account.ID]
	if !ok {
		return repository.ErrNotFound
	}

	next := *stored
	if err := fn(&next); err != nil {
		return err
	}
	*stored = next
	*account = next
	return nil
}

// current returns the freshest view of account.
func (s *AccountStore) current(account *domain.Account) (domain.Account, error) {
	if account == nil {
		return domain.Account{}, fmt.Errorf("account is required")
	}
	if !account.Persisted() {
		return *account, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.accounts[account.ID]
	if !ok {
		return domain.Account{}, repository.ErrNotFound
	}
	return *stored, nil
}

func (s *AccountStore) emailTakenLocked(email, exceptID string) bool {
	if !s.uniqueEmail {
		return false
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	for id, acct := range s.accounts {
		if id != exceptID && strings.EqualFold(acct.Email, email) {
			return true
		}
	}
	return false
}

func (s *AccountStore) redeem(ctx context.Context, account *domain.Account, purpose security.TokenPurpose, token, target string) error {
	current, err := s.current(account)
	if err != nil {
		return err
	}
	return s.creds.RedeemToken(ctx, purpose, current, token, target)
}

func (s *AccountStore) issue(account *domain.Account, purpose security.TokenPurpose, target string) (string, error) {
	current, err := s.current(account)
	if err != nil {
		return "", err
	}
	return s.creds.IssueToken(purpose, current, target)
}

// CheckPassword implements port.PasswordStore.
func (s *AccountStore) CheckPassword(_ context.Context, account *domain.Account, password string) (bool, error) {
	current, err := s.current(account)
	if err != nil {
		return false, err
	}
	return s.creds.VerifyPassword(current, password)
}

// GeneratePasswordResetToken implements port.PasswordStore.
func (s *AccountStore) GeneratePasswordResetToken(_ context.Context, account *domain.Account) (string, error) {
	return s.issue(account, security.PurposePasswordReset, "")
}

// ResetPassword implements port.PasswordStore. The token is not consumed when the new
// password violates the policy.
func (s *AccountStore) ResetPassword(ctx context.Context, account *domain.Account, token, newPassword string) error {
	current, err := s.current(account)
	if err != nil {
		return err
	}
	hash, err := s.creds.HashNewPassword(newPassword, current)
	if err != nil {
		return err
	}
	if err := s.creds.RedeemToken(ctx, security.PurposePasswordReset, current, token, ""); err != nil {
		return err
	}

	return s.mutate(account, func(a *domain.Account) error {
		a.PasswordHash = hash
		return repository.RotateStamp(a)
	})
}

// IsLockedOut implements port.LockoutStore.
func (s *AccountStore) IsLockedOut(_ context.Context, account *domain.Account) (bool, error) {
	current, err := s.current(account)
	if err != nil {
		return false, err
	}
	return current.IsLockedOut(s.now()), nil
}

// AccessFailed implements port.LockoutStore.
func (s *AccountStore) AccessFailed(_ context.Context, account *domain.Account) error {
	return s.mutate(account, func(a *domain.Account) error {
		a.RegisterFailedAccess(s.lockout, s.now())
		return nil
	})
}

// ResetAccessFailedCount implements port.LockoutStore.
func (s *AccountStore) ResetAccessFailedCount(_ context.Context, account *domain.Account) error {
	return s.mutate(account, func(a *domain.Account) error {
		a.AccessFailedCount = 0
		return nil
	})
}

// LockoutEnabled implements port.LockoutStore.
func (s *AccountStore) LockoutEnabled(_ context.Context, account *domain.Account) (bool, error) {
	current, err := s.current(account)
	if err != nil {
		return false, err
	}
	return current.LockoutEnabled, nil
}

// SetLockoutEnabled implements port.LockoutStore.
func (s *AccountStore) SetLockoutEnabled(_ context.Context, account *domain.Account, enabled bool) error {
	return s.mutate(account, func(a *domain.Account) error {
		a.LockoutEnabled = enabled
		return nil
	})
}

// LockoutEnd implements port.LockoutStore.
func (s *AccountStore) LockoutEnd(_ context.Context, account *domain.Account) (time.Time, error) {
	current, err := s.current(account)
	if err != nil {
		return time.Time{}, err
	}
	return current.LockoutEnd, nil
}

// SetLockoutEnd implements port.LockoutStore.
func (s *AccountStore) SetLockoutEnd(_ context.Context, account *domain.Account, end time.Time) error {
	return s.mutate(account, func(a *domain.Account) error {
		a.LockoutEnd = end.UTC()
		return nil
	})
}

// Email implements port.EmailStore.
func (s *AccountStore) Email(_ context.Context, account *domain.Account) (string, error) {
	current, err := s.current(account)
	if err != nil {
		return "", err
	}
	return current.Email, nil
}

// SetEmail implements port.EmailStore. Changing the address clears its confirmation.
func (s *AccountStore) SetEmail(_ context.Context, account *domain.Account, email string) error {
	email = strings.TrimSpace(email)
	return s.mutate(account, func(a *domain.Account) error {
		if s.emailTakenLocked(email, a.ID) {
			return repository.Reject(fmt.Sprintf("Email '%s' is already taken.", email))
		}
		a.Email = email
		a.EmailConfirmed = false
		return repository.RotateStamp(a)
	})
}

// IsEmailConfirmed implements port.EmailStore.
func (s *AccountStore) IsEmailConfirmed(_ context.Context, account *domain.Account) (bool, error) {
	current, err := s.current(account)
	if err != nil {
		return false, err
	}
	return current.EmailConfirmed, nil
}

// GenerateEmailConfirmationToken implements port.EmailStore.
func (s *AccountStore) GenerateEmailConfirmationToken(_ context.Context, account *domain.Account) (string, error) {
	current, err := s.current(account)
	if err != nil {
		return "", err
	}
	return s.issue(account, security.PurposeEmailConfirmation, current.Email)
}

// ConfirmEmail implements port.EmailStore.
func (s *AccountStore) ConfirmEmail(ctx context.Context, account *domain.Account, token string) error {
	current, err := s.current(account)
	if err != nil {
		return err
	}
	if err := s.redeem(ctx, account, security.PurposeEmailConfirmation, token, current.Email); err != nil {
		return err
	}
	return s.mutate(account, func(a *domain.Account) error {
		a.EmailConfirmed = true
		return nil
	})
}

// Phone implements port.PhoneStore.
func (s *AccountStore) Phone(_ context.Context, account *domain.Account) (string, error) {
	current, err := s.current(account)
	if err != nil {
		return "", err
	}
	return current.Phone, nil
}

// SetPhone implements port.PhoneStore.
func (s *AccountStore) SetPhone(_ context.Context, account *domain.Account, phone string) error {
	phone = strings.TrimSpace(phone)
	return s.mutate(account, func(a *domain.Account) error {
		a.Phone = phone
		a.PhoneConfirmed = false
		return repository.RotateStamp(a)
	})
}

// IsPhoneConfirmed implements port.PhoneStore.
func (s *AccountStore) IsPhoneConfirmed(_ context.Context, account *domain.Account) (bool, error) {
	current, err := s.current(account)
	if err != nil {
		return false, err
	}
	return current.PhoneConfirmed, nil
}

// GenerateChangePhoneToken implements port.PhoneStore.
func (s *AccountStore) GenerateChangePhoneToken(_ context.Context, account *domain.Account, phone string) (string, error) {
	return s.issue(account, security.PurposePhoneChange, strings.TrimSpace(phone))
}

// ChangePhone implements port.PhoneStore. It sets and confirms phone in one step.
func (s *AccountStore) ChangePhone(ctx context.Context, account *domain.Account, phone, token string) error {
	phone = strings.TrimSpace(phone)
	if err := s.redeem(ctx, account, security.PurposePhoneChange, token, phone); err != nil {
		return err
	}
	return s.mutate(account, func(a *domain.Account) error {
		a.Phone = phone
		a.PhoneConfirmed = true
		return repository.RotateStamp(a)
	})
}

// TwoFactorEnabled implements port.TwoFactorStore.
func (s *AccountStore) TwoFactorEnabled(_ context.Context, account *domain.Account) (bool, error) {
	current, err := s.current(account)
	if err != nil {
		return false, err
	}
	return current.TwoFactorEnabled, nil
}

// SetTwoFactorEnabled implements port.TwoFactorStore.
func (s *AccountStore) SetTwoFactorEnabled(_ context.Context, account *domain.Account, enabled bool) error {
	return s.mutate(account, func(a *domain.Account) error {
		a.TwoFactorEnabled = enabled
		return nil
	})
}

// SecurityStamp implements port.SecurityStampStore.
func (s *AccountStore) SecurityStamp(_ context.Context, account *domain.Account) (string, error) {
	current, err := s.current(account)
	if err != nil {
		return "", err
	}
	return current.SecurityStamp, nil
}

// Claims implements port.ClaimStore.
func (s *AccountStore) Claims(_ context.Context, account *domain.Account) ([]domain.Claim, error) {
	if !account.Persisted() {
		return []domain.Claim{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	return append([]domain.Claim{}, s.claims[account.ID]...), nil
}

// AddClaim implements port.ClaimStore.
func (s *AccountStore) AddClaim(_ context.Context, account *domain.Account, claim domain.Claim) error {
	if !account.Persisted() {
		return repository.Reject("Account must be created before claims can be added.")
	}
	if strings.TrimSpace(claim.Type) == "" {
		return repository.Reject("Claim type is required.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return repository.ErrNotFound
	}
	s.claims[account.ID] = append(s.claims[account.ID], claim)
	return nil
}

// RemoveClaim implements port.ClaimStore. Every claim equal to claim is removed.
func (s *AccountStore) RemoveClaim(_ context.Context, account *domain.Account, claim domain.Claim) error {
	if !account.Persisted() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return repository.ErrNotFound
	}

	existing := s.claims[account.ID]
	kept := existing[:0]
	for _, c := range existing {
		if !c.Equal(claim) {
			kept = append(kept, c)
		}
	}
	s.claims[account.ID] = kept
	return nil
}

// RoleNames implements port.UserRoleStore.
func (s *AccountStore) RoleNames(_ context.Context, account *domain.Account) ([]string, error) {
	if !account.Persisted() || s.roles == nil {
		return []string{}, nil
	}
	return s.roles.namesFor(account.ID), nil
}

// FindByLogin implements port.LoginStore.
func (s *AccountStore) FindByLogin(ctx context.Context, login domain.ExternalLogin) (*domain.Account, error) {
	s.mu.RLock()
	id, ok := s.logins[login]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.FindByID(ctx, id)
}

// AddLogin implements port.LoginStore.
func (s *AccountStore) AddLogin(_ context.Context, account *domain.Account, login domain.ExternalLogin) error {
	if !account.Persisted() {
		return repository.Reject("Account must be created before logins can be added.")
	}
	if login.Provider == "" || login.ProviderSubjectID == "" {
		return repository.Reject("Login provider and key are required.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return repository.ErrNotFound
	}
	if _, taken := s.logins[login]; taken {
		return repository.Reject("A user with this login already exists.")
	}
	s.logins[login] = account.ID
	return nil
}

// QueryUsers implements port.QueryableUserStore with a case-insensitive substring
// match on the username.
func (s *AccountStore) QueryUsers(_ context.Context, query domain.Query) ([]domain.Account, int, error) {
	filter := strings.ToLower(strings.TrimSpace(query.Filter))

	s.mu.RLock()
	matched := make([]domain.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		if filter == "" || strings.Contains(strings.ToLower(acct.Username), filter) {
			matched = append(matched, *acct)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Username < matched[j].Username })
	return page(matched, query), len(matched), nil
}

func page[T any](items []T, query domain.Query) []T {
	start := query.Start
	if start < 0 {
		start = 0
	}
	if start >= len(items) {
		return []T{}
	}
	end := len(items)
	if query.Count >= 0 && start+query.Count < end {
		end = start + query.Count
	}
	return items[start:end]
}

var (
	_ port.UserStore          = (*AccountStore)(nil)
	_ port.PasswordStore      = (*AccountStore)(nil)
	_ port.LockoutStore       = (*AccountStore)(nil)
	_ port.EmailStore         = (*AccountStore)(nil)
	_ port.PhoneStore         = (*AccountStore)(nil)
	_ port.TwoFactorStore     = (*AccountStore)(nil)
	_ port.SecurityStampStore = (*AccountStore)(nil)
	_ port.ClaimStore         = (*AccountStore)(nil)
	_ port.UserRoleStore      = (*AccountStore)(nil)
	_ port.LoginStore         = (*AccountStore)(nil)
	_ port.QueryableUserStore = (*AccountStore)(nil)
)
