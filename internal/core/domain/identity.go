package domain

import "time"

var (
	// LockoutEndMax is written as the lockout end to lock an account indefinitely.
	LockoutEndMax = time.Date(9999, time.December, 31, 23, 59, 59, 999999000, time.UTC)
	// LockoutEndMin is written as the lockout end to release a lock.
	LockoutEndMin = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Account mirrors the persisted representation of a local account.
// Claims and external logins belong to the store and are reached through its capabilities.
type Account struct {
	ID                string
	Username          string
	Email             string
	EmailConfirmed    bool
	Phone             string
	PhoneConfirmed    bool
	PasswordHash      string
	SecurityStamp     string
	TwoFactorEnabled  bool
	LockoutEnabled    bool
	LockoutEnd        time.Time
	AccessFailedCount int
	GivenName         string
	FamilyName        string
	CreatedAt         time.Time
}

// Persisted reports whether the store has assigned an identifier.
func (a *Account) Persisted() bool {
	return a != nil && a.ID != ""
}

// LockedOutAt reports whether the lockout end lies after now, regardless of the enabled flag.
func (a *Account) LockedOutAt(now time.Time) bool {
	return a.LockoutEnd.After(now)
}

// IsLockedOut reports whether lockout is enabled and still in force at now.
func (a *Account) IsLockedOut(now time.Time) bool {
	return a.LockoutEnabled && a.LockedOutAt(now)
}

// LockoutPolicy controls failed-access accounting.
type LockoutPolicy struct {
	EnabledByDefault  bool
	MaxFailedAttempts int
	Duration          time.Duration
}

// RegisterFailedAccess increments the failed counter and, once the threshold is reached,
// locks the account for the policy duration. It returns true when a lock was applied.
func (a *Account) RegisterFailedAccess(policy LockoutPolicy, now time.Time) bool {
	if !a.LockoutEnabled {
		return false
	}

	a.AccessFailedCount++
	if policy.MaxFailedAttempts <= 0 || a.AccessFailedCount < policy.MaxFailedAttempts {
		return false
	}

	a.LockoutEnd = now.Add(policy.Duration).UTC()
	a.AccessFailedCount = 0
	return true
}

// ExternalLogin links an account to a federated provider subject.
type ExternalLogin struct {
	Provider          string
	ProviderSubjectID string
}

// ExternalIdentity is a federated login assertion. It is never persisted as-is.
type ExternalIdentity struct {
	Provider          string
	ProviderSubjectID string
	Claims            []Claim
}

// Login returns the link identity of the assertion.
func (e ExternalIdentity) Login() ExternalLogin {
	return ExternalLogin{Provider: e.Provider, ProviderSubjectID: e.ProviderSubjectID}
}

// Principal is the authenticated subject as presented back by the protocol front end.
type Principal struct {
	Subject string
	Claims  []Claim
}
