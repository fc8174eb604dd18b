package port

// Capabilities holds the optional facets of a UserStore. A nil field means the
// store does not support that capability.
type Capabilities struct {
	Password      PasswordStore
	Lockout       LockoutStore
	Email         EmailStore
	Phone         PhoneStore
	TwoFactor     TwoFactorStore
	SecurityStamp SecurityStampStore
	Claims        ClaimStore
	Roles         UserRoleStore
	Logins        LoginStore
	Query         QueryableUserStore
}

// DetectCapabilities inspects store once and records which optional interfaces it implements.
func DetectCapabilities(store UserStore) Capabilities {
	var caps Capabilities
	if store == nil {
		return caps
	}

	caps.Password, _ = store.(PasswordStore)
	caps.Lockout, _ = store.(LockoutStore)
	caps.Email, _ = store.(EmailStore)
	caps.Phone, _ = store.(PhoneStore)
	caps.TwoFactor, _ = store.(TwoFactorStore)
	caps.SecurityStamp, _ = store.(SecurityStampStore)
	caps.Claims, _ = store.(ClaimStore)
	caps.Roles, _ = store.(UserRoleStore)
	caps.Logins, _ = store.(LoginStore)
	caps.Query, _ = store.(QueryableUserStore)

	return caps
}

func (c Capabilities) SupportsPassword() bool      { return c.Password != nil }
func (c Capabilities) SupportsLockout() bool       { return c.Lockout != nil }
func (c Capabilities) SupportsEmail() bool         { return c.Email != nil }
func (c Capabilities) SupportsPhone() bool         { return c.Phone != nil }
func (c Capabilities) SupportsTwoFactor() bool     { return c.TwoFactor != nil }
func (c Capabilities) SupportsSecurityStamp() bool { return c.SecurityStamp != nil }
func (c Capabilities) SupportsClaims() bool        { return c.Claims != nil }
func (c Capabilities) SupportsRoles() bool         { return c.Roles != nil }
func (c Capabilities) SupportsLogins() bool        { return c.Logins != nil }
func (c Capabilities) SupportsQuery() bool         { return c.Query != nil }
