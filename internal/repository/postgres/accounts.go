package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	uuid "github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
	"github.com/arklim/identity-adapter/internal/infra/security"
	"github.com/arklim/identity-adapter/internal/repository"
)

const (
	accountsTable      = "iam.accounts"
	accountClaimsTable = "iam.account_claims"
	accountLoginsTable = "iam.account_logins"
	accountRolesTable  = "iam.account_roles"

	uniqueViolationCode = "23505"
)

var accountColumns = []string{
	"id",
	"username",
	"email",
	"email_confirmed",
	"phone",
	"phone_confirmed",
	"password_hash",
	"security_stamp",
	"two_factor_enabled",
	"lockout_enabled",
	"lockout_end",
	"access_failed_count",
	"given_name",
	"family_name",
	"created_at",
}

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountStore implements every account store capability on PostgreSQL.
// Usernames are matched through the normalized_username column (lower-cased).
type AccountStore struct {
	exec        pgExecutor
	builder     squirrel.StatementBuilderType
	creds       repository.Credentials
	lockout     domain.LockoutPolicy
	uniqueEmail bool
	now         func() time.Time
}

// NewAccountStore constructs a store backed by any executor that satisfies pgExecutor.
func NewAccountStore(exec pgExecutor, opts repository.StoreOptions) *AccountStore {
	return &AccountStore{
		exec:        exec,
		builder:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		creds:       opts.Credentials,
		lockout:     opts.Lockout,
		uniqueEmail: opts.RequireUniqueEmail,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a store instance that executes statements within the supplied transaction.
func (s *AccountStore) WithTx(tx pgx.Tx) *AccountStore {
	if tx == nil {
		return s
	}
	copied := *s
	copied.exec = tx
	return &copied
}

// WithClock overrides the internal clock for deterministic testing.
func (s *AccountStore) WithClock(clock func() time.Time) *AccountStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC()
}

// rejectUniqueViolation converts a unique-constraint failure into a Rejection.
func rejectUniqueViolation(err error, message string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return repository.Reject(message)
	}
	return nil
}

// rejectAccountConflict names the account value whose unique index fired.
func rejectAccountConflict(err error, account *domain.Account) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return nil
	}
	if strings.Contains(strings.ToLower(pgErr.ConstraintName), "email") {
		return repository.Reject(fmt.Sprintf("Email '%s' is already taken.", account.Email))
	}
	return repository.Reject(fmt.Sprintf("Username '%s' is already taken.", account.Username))
}

// accountValues maps every writable column to its value on a.
func accountValues(a *domain.Account) map[string]any {
	return map[string]any{
		"username":            a.Username,
		"normalized_username": normalizeUsername(a.Username),
		"email":               nullable(a.Email),
		"email_confirmed":     a.EmailConfirmed,
		"phone":               nullable(a.Phone),
		"phone_confirmed":     a.PhoneConfirmed,
		"password_hash":       nullable(a.PasswordHash),
		"security_stamp":      a.SecurityStamp,
		"two_factor_enabled":  a.TwoFactorEnabled,
		"lockout_enabled":     a.LockoutEnabled,
		"lockout_end":         nullableTime(a.LockoutEnd),
		"access_failed_count": a.AccessFailedCount,
		"given_name":          nullable(a.GivenName),
		"family_name":         nullable(a.FamilyName),
	}
}

var returningAccount = "RETURNING " + strings.Join(accountColumns, ", ")

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acct         domain.Account
		email        sql.NullString
		phone        sql.NullString
		passwordHash sql.NullString
		givenName    sql.NullString
		familyName   sql.NullString
		lockoutEnd   *time.Time
	)

	if err := row.Scan(
		&acct.ID,
		&acct.Username,
		&email,
		&acct.EmailConfirmed,
		&phone,
		&acct.PhoneConfirmed,
		&passwordHash,
		&acct.SecurityStamp,
		&acct.TwoFactorEnabled,
		&acct.LockoutEnabled,
		&lockoutEnd,
		&acct.AccessFailedCount,
		&givenName,
		&familyName,
		&acct.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	acct.Email = email.String
	acct.Phone = phone.String
	acct.PasswordHash = passwordHash.String
	acct.GivenName = givenName.String
	acct.FamilyName = familyName.String
	if lockoutEnd != nil {
		acct.LockoutEnd = lockoutEnd.UTC()
	}
	return &acct, nil
}

func (s *AccountStore) findOne(ctx context.Context, where squirrel.Sqlizer) (*domain.Account, error) {
	stmt, args, err := s.builder.Select(accountColumns...).
		From(accountsTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}
	return scanAccount(s.exec.QueryRow(ctx, stmt, args...))
}

// FindByID implements port.UserStore.
func (s *AccountStore) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return s.findOne(ctx, squirrel.Eq{"id": id})
}

// FindByUsername implements port.UserStore.
func (s *AccountStore) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return s.findOne(ctx, squirrel.Eq{"normalized_username": normalizeUsername(username)})
}

func (s *AccountStore) emailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	email = strings.TrimSpace(email)
	if !s.uniqueEmail || email == "" {
		return false, nil
	}

	where := squirrel.And{squirrel.Expr("lower(email) = lower(?)", email)}
	if exceptID != "" {
		where = append(where, squirrel.NotEq{"id": exceptID})
	}

	stmt, args, err := s.builder.Select("1").From(accountsTable).Where(where).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build email check sql: %w", err)
	}

	var one int
	if err := s.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// Create implements port.UserStore.
func (s *AccountStore) Create(ctx context.Context, account *domain.Account, password string) error {
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

	next := *account
	next.Username = username
	if password != "" {
		hash, err := s.creds.HashNewPassword(password, next)
		if err != nil {
			return err
		}
		next.PasswordHash = hash
	}
	if next.SecurityStamp == "" {
		if err := repository.RotateStamp(&next); err != nil {
			return err
		}
	}

	taken, err := s.emailTaken(ctx, next.Email, "")
	if err != nil {
		return err
	}
	if taken {
		return repository.Reject(fmt.Sprintf("Email '%s' is already taken.", next.Email))
	}

	next.ID = uuid.NewString()
	next.LockoutEnabled = s.lockout.EnabledByDefault
	next.CreatedAt = s.now().UTC()

	stmt, args, err := s.builder.Insert(accountsTable).
		Columns(append(append([]string{}, accountColumns...), "normalized_username")...).
		Values(
			next.ID,
			next.Username,
			nullable(next.Email),
			next.EmailConfirmed,
			nullable(next.Phone),
			next.PhoneConfirmed,
			nullable(next.PasswordHash),
			next.SecurityStamp,
			next.TwoFactorEnabled,
			next.LockoutEnabled,
			nullableTime(next.LockoutEnd),
			next.AccessFailedCount,
			nullable(next.GivenName),
			nullable(next.FamilyName),
			next.CreatedAt,
			normalizeUsername(next.Username),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		if rej := rejectAccountConflict(err, &next); rej != nil {
			return rej
		}
		return fmt.Errorf("insert account: %w", err)
	}

	*account = next
	return nil
}

// Update implements port.UserStore. Only the profile columns are written.
func (s *AccountStore) Update(ctx context.Context, account *domain.Account) error {
	if !account.Persisted() {
		return repository.ErrNotFound
	}

	username := strings.TrimSpace(account.Username)
	if username == "" {
		return repository.Reject("Username is required.")
	}
	account.Username = username

	return s.writeColumns(ctx, account, "username", "normalized_username", "given_name", "family_name")
}

// writeColumns persists the named columns of account and reloads it from the updated row,
// so values other writers committed in the meantime are neither reverted nor lost.
func (s *AccountStore) writeColumns(ctx context.Context, account *domain.Account, columns ...string) error {
	values := accountValues(account)
	set := make(map[string]any, len(columns))
	for _, c := range columns {
		v, ok := values[c]
		if !ok {
			return fmt.Errorf("unknown account column %q", c)
		}
		set[c] = v
	}

	stmt, args, err := s.builder.Update(accountsTable).
		SetMap(set).
		Where(squirrel.Eq{"id": account.ID}).
		Suffix(returningAccount).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account sql: %w", err)
	}
	return s.reload(s.exec.QueryRow(ctx, stmt, args...), account)
}

func (s *AccountStore) reload(row pgx.Row, account *domain.Account) error {
	fresh, err := scanAccount(row)
	if err != nil {
		if rej := rejectAccountConflict(err, account); rej != nil {
			return rej
		}
		return err
	}
	*account = *fresh
	return nil
}

// Delete implements port.UserStore. Claims, logins and role memberships cascade.
func (s *AccountStore) Delete(ctx context.Context, account *domain.Account) error {
	if !account.Persisted() {
		return repository.ErrNotFound
	}

	stmt, args, err := s.builder.Delete(accountsTable).Where(squirrel.Eq{"id": account.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete account sql: %w", err)
	}

	tag, err := s.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// current reloads a persisted account; unpersisted accounts are returned as-is.
func (s *AccountStore) current(ctx context.Context, account *domain.Account) (domain.Account, error) {
	if account == nil {
		return domain.Account{}, fmt.Errorf("account is required")
	}
	if !account.Persisted() {
		return *account, nil
	}
	fresh, err := s.FindByID(ctx, account.ID)
	if err != nil {
		return domain.Account{}, err
	}
	return *fresh, nil
}

// mutate applies fn to the freshest view of account and, when persisted, writes only
// the columns fn is declared to touch.
func (s *AccountStore) mutate(ctx context.Context, account *domain.Account, fn func(a *domain.Account) error, columns ...string) error {
	next, err := s.current(ctx, account)
	if err != nil {
		return err
	}
	if err := fn(&next); err != nil {
		return err
	}
	if next.Persisted() {
		if err := s.writeColumns(ctx, &next, columns...); err != nil {
			return err
		}
	}
	*account = next
	return nil
}

// CheckPassword implements port.PasswordStore.
func (s *AccountStore) CheckPassword(ctx context.Context, account *domain.Account, password string) (bool, error) {
	current, err := s.current(ctx, account)
	if err != nil {
		return false, err
	}
	return s.creds.VerifyPassword(current, password)
}

// GeneratePasswordResetToken implements port.PasswordStore.
func (s *AccountStore) GeneratePasswordResetToken(ctx context.Context, account *domain.Account) (string, error) {
	current, err := s.current(ctx, account)
	if err != nil {
		return "", err
	}
	return s.creds.IssueToken(security.PurposePasswordReset, current, "")
}

// ResetPassword implements port.PasswordStore.
func (s *AccountStore) ResetPassword(ctx context.Context, account *domain.Account, token, newPassword string) error {
	current, err := s.current(ctx, account)
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
	return s.mutate(ctx, account, func(a *domain.Account) error {
		a.PasswordHash = hash
		return repository.RotateStamp(a)
	}, "password_hash", "security_stamp")
}

// IsLockedOut implements port.LockoutStore.
func (s *AccountStore) IsLockedOut(ctx context.Context, account *domain.Account) (bool, error) {
	current, err := s.current(ctx, account)
	if err != nil {
		return false, err
	}
	return current.IsLockedOut(s.now()), nil
}

// AccessFailed implements port.LockoutStore. The increment and the lock are computed by
// the database in one statement, so concurrent failures are all counted.
func (s *AccountStore) AccessFailed(ctx context.Context, account *domain.Account) error {
	if account == nil {
		return fmt.Errorf("account is required")
	}
	if !account.Persisted() {
		account.RegisterFailedAccess(s.lockout, s.now())
		return nil
	}

	update := s.builder.Update(accountsTable)
	if limit := s.lockout.MaxFailedAttempts; limit > 0 {
		update = update.
			Set("access_failed_count", squirrel.Expr(
				"CASE WHEN NOT lockout_enabled THEN access_failed_count "+
					"WHEN access_failed_count + 1 >= ? THEN 0 ELSE access_failed_count + 1 END", limit)).
			Set("lockout_end", squirrel.Expr(
				"CASE WHEN lockout_enabled AND access_failed_count + 1 >= ? THEN ? ELSE lockout_end END",
				limit, s.now().Add(s.lockout.Duration).UTC()))
	} else {
		update = update.Set("access_failed_count", squirrel.Expr(
			"CASE WHEN lockout_enabled THEN access_failed_count + 1 ELSE access_failed_count END"))
	}

	stmt, args, err := update.
		Where(squirrel.Eq{"id": account.ID}).
		Suffix(returningAccount).
		ToSql()
	if err != nil {
		return fmt.Errorf("build access failed sql: %w", err)
	}
	return s.reload(s.exec.QueryRow(ctx, stmt, args...), account)
}

// ResetAccessFailedCount implements port.LockoutStore.
func (s *AccountStore) ResetAccessFailedCount(ctx context.Context, account *domain.Account) error {
	return s.mutate(ctx, account, func(a *domain.Account) error {
		a.AccessFailedCount = 0
		return nil
	}, "access_failed_count")
}

// LockoutEnabled implements port.LockoutStore.
func (s *AccountStore) LockoutEnabled(ctx context.Context, account *domain.Account) (bool, error) {
	current, err := s.current(ctx, account)
	return current.LockoutEnabled, err
}

// SetLockoutEnabled implements port.LockoutStore.
func (s *AccountStore) SetLockoutEnabled(ctx context.Context, account *domain.Account, enabled bool) error {
	return s.mutate(ctx, account, func(a *domain.Account) error {
		a.LockoutEnabled = enabled
		return nil
	}, "lockout_enabled")
}

// LockoutEnd implements port.LockoutStore.
func (s *AccountStore) LockoutEnd(ctx context.Context, account *domain.Account) (time.Time, error) {
	current, err := s.current(ctx, account)
	return current.LockoutEnd, err
}

// SetLockoutEnd implements port.LockoutStore.
func (s *AccountStore) SetLockoutEnd(ctx context.Context, account *domain.Account, end time.Time) error {
	return s.mutate(ctx, account, func(a *domain.Account) error {
		a.LockoutEnd = end.UTC()
		return nil
	}, "lockout_end")
}

// Email implements port.EmailStore.
func (s *AccountStore) Email(ctx context.Context, account *domain.Account) (string, error) {
	current, err := s.current(ctx, account)
	return current.Email, err
}

// SetEmail implements port.EmailStore. Changing the address clears its confirmation.
func (s *AccountStore) SetEmail(ctx context.Context, account *domain.Account, email string) error {
	email = strings.TrimSpace(email)
	if account != nil && account.Persisted() {
		taken, err := s.emailTaken(ctx, email, account.ID)
		if err != nil {
			return err
		}
		if taken {
			return repository.Reject(fmt.Sprintf("Email '%s' is already taken.", email))
		}
	}
	return s.mutate(ctx, account, func(a *domain.Account) error {
		a.Email = email
		a.EmailConfirmed = false
		return repository.RotateStamp(a)
	}, "email", "email_confirmed", "security_stamp")
}

// IsEmailConfirmed implements port.EmailStore.
func (s *AccountStore) IsEmailConfirmed(ctx context.Context, account *domain.Account) (bool, error) {
	current, err := s.current(ctx, account)
	return current.EmailConfirmed, err
}

// GenerateEmailConfirmationToken implements port.EmailStore.
func (s *AccountStore) GenerateEmailConfirmationToken(ctx context.Context, account *domain.Account) (string, error) {
	current, err := s.current(ctx, account)
	if err != nil {
		return "", err
	}
	return s.creds.IssueToken(security.PurposeEmailConfirmation, current, current.Email)
}

// ConfirmEmail implements port.EmailStore.
func (s *AccountStore) ConfirmEmail(ctx context.Context, account *domain.Account, token string) error {
	current, err := s.current(ctx, account)
	if err != nil {
		return err
	}
	if err := s.creds.RedeemToken(ctx, security.PurposeEmailConfirmation, current, token, current.Email); err != nil {
		return err
	}
	return s.mutate(ctx, account, func(a *domain.Account) error {
		a.EmailConfirmed = true
		return nil
	}, "email_confirmed")
}

// Phone implements port.PhoneStore.
func (s *AccountStore) Phone(ctx context.Context, account *domain.Account) (string, error) {
	current, err := s.current(ctx, account)
	return current.Phone, err
}

// SetPhone implements port.PhoneStore.
func (s *AccountStore) SetPhone(ctx context.Context, account *domain.Account, phone string) error {
	phone = strings.TrimSpace(phone)
	return s.mutate(ctx, account, func(a *domain.Account) error {
		a.Phone = phone
		a.PhoneConfirmed = false
		return repository.RotateStamp(a)
	}, "phone", "phone_confirmed", "security_stamp")
}

// IsPhoneConfirmed implements port.PhoneStore.
func (s *AccountStore) IsPhoneConfirmed(ctx context.Context, account *domain.Account) (bool, error) {
	current, err := s.current(ctx, account)
	return current.PhoneConfirmed, err
}

// GenerateChangePhoneToken implements port.PhoneStore.
func (s *AccountStore) GenerateChangePhoneToken(ctx context.Context, account *domain.Account, phone string) (string, error) {
	current, err := s.current(ctx, account)
	if err != nil {
		return "", err
	}
	return s.creds.IssueToken(security.PurposePhoneChange, current, strings.TrimSpace(phone))
}

// ChangePhone implements port.PhoneStore.
func (s *AccountStore) ChangePhone(ctx context.Context, account *domain.Account, phone, token string) error {
	phone = strings.TrimSpace(phone)
	current, err := s.current(ctx, account)
	if err != nil {
		return err
	}
	if err := s.creds.RedeemToken(ctx, security.PurposePhoneChange, current, token, phone); err != nil {
		return err
	}
	return s.mutate(ctx, account, func(a *domain.Account) error {
		a.Phone = phone
		a.PhoneConfirmed = true
		return repository.RotateStamp(a)
	}, "phone", "phone_confirmed", "security_stamp")
}

// TwoFactorEnabled implements port.TwoFactorStore.
func (s *AccountStore) TwoFactorEnabled(ctx context.Context, account *domain.Account) (bool, error) {
	current, err := s.current(ctx, account)
	return current.TwoFactorEnabled, err
}

// SetTwoFactorEnabled implements port.TwoFactorStore.
func (s *AccountStore) SetTwoFactorEnabled(ctx context.Context, account *domain.Account, enabled bool) error {
	return s.mutate(ctx, account, func(a *domain.Account) error {
		a.TwoFactorEnabled = enabled
		return nil
	}, "two_factor_enabled")
}

// SecurityStamp implements port.SecurityStampStore.
func (s *AccountStore) SecurityStamp(ctx context.Context, account *domain.Account) (string, error) {
	current, err := s.current(ctx, account)
	return current.SecurityStamp, err
}

// Claims implements port.ClaimStore.
func (s *AccountStore) Claims(ctx context.Context, account *domain.Account) ([]domain.Claim, error) {
	if !account.Persisted() {
		return []domain.Claim{}, nil
	}

	stmt, args, err := s.builder.Select("claim_type", "claim_value", "value_type").
		From(accountClaimsTable).
		Where(squirrel.Eq{"account_id": account.ID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select claims sql: %w", err)
	}

	rows, err := s.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	claims := make([]domain.Claim, 0)
	for rows.Next() {
		var (
			claim     domain.Claim
			valueType sql.NullString
		)
		if err := rows.Scan(&claim.Type, &claim.Value, &valueType); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claim.ValueType = valueType.String
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return claims, nil
}

// AddClaim implements port.ClaimStore.
func (s *AccountStore) AddClaim(ctx context.Context, account *domain.Account, claim domain.Claim) error {
	if !account.Persisted() {
		return repository.Reject("Account must be created before claims can be added.")
	}
	if strings.TrimSpace(claim.Type) == "" {
		return repository.Reject("Claim type is required.")
	}

	stmt, args, err := s.builder.Insert(accountClaimsTable).
		Columns("account_id", "claim_type", "claim_value", "value_type").
		Values(account.ID, claim.Type, claim.Value, nullable(claim.ValueType)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert claim sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

// RemoveClaim implements port.ClaimStore.
func (s *AccountStore) RemoveClaim(ctx context.Context, account *domain.Account, claim domain.Claim) error {
	if !account.Persisted() {
		return nil
	}

	stmt, args, err := s.builder.Delete(accountClaimsTable).
		Where(squirrel.Eq{
			"account_id":  account.ID,
			"claim_type":  claim.Type,
			"claim_value": claim.Value,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete claim sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	return nil
}

// RoleNames implements port.UserRoleStore.
func (s *AccountStore) RoleNames(ctx context.Context, account *domain.Account) ([]string, error) {
	if !account.Persisted() {
		return []string{}, nil
	}

	stmt, args, err := s.builder.Select("r.name").
		From(accountRolesTable + " ar").
		Join(rolesTable + " r ON r.id = ar.role_id").
		Where(squirrel.Eq{"ar.account_id": account.ID}).
		OrderBy("r.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account roles sql: %w", err)
	}

	rows, err := s.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query account roles: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan account role: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account roles: %w", err)
	}
	return names, nil
}

// FindByLogin implements port.LoginStore.
func (s *AccountStore) FindByLogin(ctx context.Context, login domain.ExternalLogin) (*domain.Account, error) {
	columns := make([]string, len(accountColumns))
	for i, c := range accountColumns {
		columns[i] = "a." + c
	}

	stmt, args, err := s.builder.Select(columns...).
		From(accountLoginsTable + " l").
		Join(accountsTable + " a ON a.id = l.account_id").
		Where(squirrel.Eq{
			"l.provider":            login.Provider,
			"l.provider_subject_id": login.ProviderSubjectID,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by login sql: %w", err)
	}
	return scanAccount(s.exec.QueryRow(ctx, stmt, args...))
}

// AddLogin implements port.LoginStore.
func (s *AccountStore) AddLogin(ctx context.Context, account *domain.Account, login domain.ExternalLogin) error {
	if !account.Persisted() {
		return repository.Reject("Account must be created before logins can be added.")
	}
	if login.Provider == "" || login.ProviderSubjectID == "" {
		return repository.Reject("Login provider and key are required.")
	}

	stmt, args, err := s.builder.Insert(accountLoginsTable).
		Columns("provider", "provider_subject_id", "account_id", "created_at").
		Values(login.Provider, login.ProviderSubjectID, account.ID, s.now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		if rej := rejectUniqueViolation(err, "A user with this login already exists."); rej != nil {
			return rej
		}
		return fmt.Errorf("insert login: %w", err)
	}
	return nil
}

// QueryUsers implements port.QueryableUserStore with a case-insensitive substring match.
func (s *AccountStore) QueryUsers(ctx context.Context, query domain.Query) ([]domain.Account, int, error) {
	var where squirrel.Sqlizer = squirrel.Expr("TRUE")
	if filter := strings.TrimSpace(query.Filter); filter != "" {
		where = squirrel.ILike{"username": "%" + escapeLike(filter) + "%"}
	}

	total, err := s.count(ctx, accountsTable, where)
	if err != nil {
		return nil, 0, err
	}

	selectQuery := pageQuery(s.builder.Select(accountColumns...).From(accountsTable).Where(where).OrderBy("username ASC"), query)
	stmt, args, err := selectQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query accounts sql: %w", err)
	}

	rows, err := s.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, *acct)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, total, nil
}

func (s *AccountStore) count(ctx context.Context, table string, where squirrel.Sqlizer) (int, error) {
	return countRows(ctx, s.exec, s.builder, table, where)
}

func countRows(ctx context.Context, exec pgExecutor, builder squirrel.StatementBuilderType, table string, where squirrel.Sqlizer) (int, error) {
	stmt, args, err := builder.Select("COUNT(*)").From(table).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count sql: %w", err)
	}

	var total int
	if err := exec.QueryRow(ctx, stmt, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func pageQuery(builder squirrel.SelectBuilder, query domain.Query) squirrel.SelectBuilder {
	if query.Start > 0 {
		builder = builder.Offset(uint64(query.Start))
	}
	if query.Count >= 0 {
		builder = builder.Limit(uint64(query.Count))
	}
	return builder
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
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
