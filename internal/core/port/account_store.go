package port

import (
	"context"
	"time"

	"github.com/arklim/identity-adapter/internal/core/domain"
)

// UserStore is the minimal account store every deployment provides.
// Lookups return repository.ErrNotFound for missing records; constraint
// violations come back as *repository.Rejection.
//
// Mutators on a persisted account write through the fields they own and reload
// the entity. Mutators on an account that has not been created yet only update
// the entity; Create persists whatever was set on it beforehand.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	// Create persists a new account. An empty password creates an account without local credentials.
	Create(ctx context.Context, account *domain.Account, password string) error
	// Update writes the profile fields (username, given and family name) and
	// refreshes the entity from the store. Credentials, lockout and contact
	// state change only through their own mutators.
	Update(ctx context.Context, account *domain.Account) error
	Delete(ctx context.Context, account *domain.Account) error
}

// PasswordStore is implemented by stores holding local credentials.
type PasswordStore interface {
	CheckPassword(ctx context.Context, account *domain.Account, password string) (bool, error)
	GeneratePasswordResetToken(ctx context.Context, account *domain.Account) (string, error)
	ResetPassword(ctx context.Context, account *domain.Account, token, newPassword string) error
}

// LockoutStore is implemented by stores that track failed access and lockout expiry.
type LockoutStore interface {
	IsLockedOut(ctx context.Context, account *domain.Account) (bool, error)
	AccessFailed(ctx context.Context, account *domain.Account) error
	ResetAccessFailedCount(ctx context.Context, account *domain.Account) error
	LockoutEnabled(ctx context.Context, account *domain.Account) (bool, error)
	SetLockoutEnabled(ctx context.Context, account *domain.Account, enabled bool) error
	LockoutEnd(ctx context.Context, account *domain.Account) (time.Time, error)
	SetLockoutEnd(ctx context.Context, account *domain.Account, end time.Time) error
}

// EmailStore is implemented by stores holding an email address per account.
type EmailStore interface {
	Email(ctx context.Context, account *domain.Account) (string, error)
	SetEmail(ctx context.Context, account *domain.Account, email string) error
	IsEmailConfirmed(ctx context.Context, account *domain.Account) (bool, error)
	GenerateEmailConfirmationToken(ctx context.Context, account *domain.Account) (string, error)
	ConfirmEmail(ctx context.Context, account *domain.Account, token string) error
}

// PhoneStore is implemented by stores holding a phone number per account.
type PhoneStore interface {
	Phone(ctx context.Context, account *domain.Account) (string, error)
	SetPhone(ctx context.Context, account *domain.Account, phone string) error
	IsPhoneConfirmed(ctx context.Context, account *domain.Account) (bool, error)
	GenerateChangePhoneToken(ctx context.Context, account *domain.Account, phone string) (string, error)
	ChangePhone(ctx context.Context, account *domain.Account, phone, token string) error
}

// TwoFactorStore is implemented by stores that keep a two-factor flag.
type TwoFactorStore interface {
	TwoFactorEnabled(ctx context.Context, account *domain.Account) (bool, error)
	SetTwoFactorEnabled(ctx context.Context, account *domain.Account, enabled bool) error
}

// SecurityStampStore exposes the stamp rotated on sensitive account changes.
type SecurityStampStore interface {
	SecurityStamp(ctx context.Context, account *domain.Account) (string, error)
}

// ClaimStore is implemented by stores keeping free-form claims per account.
type ClaimStore interface {
	Claims(ctx context.Context, account *domain.Account) ([]domain.Claim, error)
	AddClaim(ctx context.Context, account *domain.Account, claim domain.Claim) error
	RemoveClaim(ctx context.Context, account *domain.Account, claim domain.Claim) error
}

// UserRoleStore is implemented by stores tracking role membership.
type UserRoleStore interface {
	RoleNames(ctx context.Context, account *domain.Account) ([]string, error)
}

// LoginStore is implemented by stores linking accounts to external providers.
type LoginStore interface {
	FindByLogin(ctx context.Context, login domain.ExternalLogin) (*domain.Account, error)
	AddLogin(ctx context.Context, account *domain.Account, login domain.ExternalLogin) error
}

// QueryableUserStore lists accounts by username substring, ordered by username.
type QueryableUserStore interface {
	QueryUsers(ctx context.Context, query domain.Query) ([]domain.Account, int, error)
}

// RoleStore handles role persistence.
type RoleStore interface {
	FindByID(ctx context.Context, id string) (*domain.Role, error)
	Create(ctx context.Context, role *domain.Role) error
	Update(ctx context.Context, role *domain.Role) error
	Delete(ctx context.Context, role *domain.Role) error
	QueryRoles(ctx context.Context, query domain.Query) ([]domain.Role, int, error)
}
