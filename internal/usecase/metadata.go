package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
)

// DefaultRoleClaimType is advertised when no role claim type is configured.
const DefaultRoleClaimType = domain.ClaimRole

// MetadataOptions selects the optional parts of the standard schema.
type MetadataOptions struct {
	// IncludeAccountProperties exposes given and family name as editable properties.
	IncludeAccountProperties bool
	// RequireUniqueEmail makes email part of the create schema.
	RequireUniqueEmail bool
	RoleClaimType      string
}

// MetadataFunc produces the administrative schema. It is invoked on every request that needs it.
type MetadataFunc func(ctx context.Context) (domain.IdentityManagerMetadata, error)

// StandardMetadata derives the schema from the capabilities of users and the presence of roles.
// A nil roles store yields role metadata that supports nothing.
func StandardMetadata(users port.UserStore, roles port.RoleStore, opts MetadataOptions, now func() time.Time) (domain.IdentityManagerMetadata, error) {
	if now == nil {
		now = time.Now
	}
	caps := port.DetectCapabilities(users)

	meta := domain.IdentityManagerMetadata{
		UserMetadata: domain.UserMetadata{
			SupportsCreate:   true,
			SupportsDelete:   true,
			SupportsClaims:   caps.SupportsClaims(),
			CreateProperties: userCreateProperties(caps, opts),
			UpdateProperties: userUpdateProperties(caps, opts, now),
		},
		RoleMetadata: roleMetadata(roles, opts),
	}

	if err := meta.Validate(); err != nil {
		return domain.IdentityManagerMetadata{}, fmt.Errorf("standard metadata: %w", err)
	}
	return meta, nil
}

func userCreateProperties(caps port.Capabilities, opts MetadataOptions) domain.PropertyList[domain.Account] {
	props := domain.PropertyList[domain.Account]{
		{
			Type:     domain.PropertyUsername,
			Name:     "Username",
			DataType: domain.PropertyDataTypeString,
			Required: true,
			Get: func(_ context.Context, a *domain.Account) (string, error) {
				return a.Username, nil
			},
			Set: func(_ context.Context, a *domain.Account, value string) (domain.Result, error) {
				a.Username = value
				return domain.Success(), nil
			},
		},
	}

	if caps.SupportsPassword() {
		props = append(props, domain.PropertyMetadata[domain.Account]{
			Type:     domain.PropertyPassword,
			Name:     "Password",
			DataType: domain.PropertyDataTypePassword,
			Required: true,
			Get:      writeOnly,
			// the password is handed to Create directly
			Set: func(context.Context, *domain.Account, string) (domain.Result, error) {
				return domain.Success(), nil
			},
		})
	}

	if opts.RequireUniqueEmail && caps.SupportsEmail() {
		props = append(props, emailProperty(caps, true))
	}

	return props
}

func userUpdateProperties(caps port.Capabilities, opts MetadataOptions, now func() time.Time) domain.PropertyList[domain.Account] {
	var props domain.PropertyList[domain.Account]

	if caps.SupportsPassword() {
		props = append(props, domain.PropertyMetadata[domain.Account]{
			Type:     domain.PropertyPassword,
			Name:     "Password",
			DataType: domain.PropertyDataTypePassword,
			Required: true,
			Get:      writeOnly,
			Set: func(ctx context.Context, a *domain.Account, value string) (domain.Result, error) {
				token, err := caps.Password.GeneratePasswordResetToken(ctx, a)
				if err != nil {
					return softResult(err)
				}
				return softResult(caps.Password.ResetPassword(ctx, a, token, value))
			},
		})
	}

	if caps.SupportsEmail() {
		props = append(props, emailProperty(caps, false))
	}

	if caps.SupportsPhone() {
		props = append(props, domain.PropertyMetadata[domain.Account]{
			Type:     domain.PropertyPhone,
			Name:     "Phone",
			DataType: domain.PropertyDataTypeString,
			Get: func(ctx context.Context, a *domain.Account) (string, error) {
				return caps.Phone.Phone(ctx, a)
			},
			Set: func(ctx context.Context, a *domain.Account, value string) (domain.Result, error) {
				if res, err := softResult(caps.Phone.SetPhone(ctx, a, value)); err != nil || !res.IsSuccess() {
					return res, err
				}
				if value == "" {
					return domain.Success(), nil
				}
				token, err := caps.Phone.GenerateChangePhoneToken(ctx, a, value)
				if err != nil {
					return softResult(err)
				}
				return softResult(caps.Phone.ChangePhone(ctx, a, value, token))
			},
		})
	}

	if caps.SupportsTwoFactor() {
		props = append(props, boolProperty(domain.PropertyTwoFactor, "Two Factor Authentication",
			caps.TwoFactor.TwoFactorEnabled,
			caps.TwoFactor.SetTwoFactorEnabled,
		))
	}

	if caps.SupportsLockout() {
		props = append(props,
			boolProperty(domain.PropertyLockoutEnabled, "Lockout Enabled",
				caps.Lockout.LockoutEnabled,
				caps.Lockout.SetLockoutEnabled,
			),
			boolProperty(domain.PropertyLockedOut, "Locked",
				func(ctx context.Context, a *domain.Account) (bool, error) {
					end, err := caps.Lockout.LockoutEnd(ctx, a)
					if err != nil {
						return false, err
					}
					return end.After(now()), nil
				},
				func(ctx context.Context, a *domain.Account, locked bool) error {
					if locked {
						return caps.Lockout.SetLockoutEnd(ctx, a, domain.LockoutEndMax)
					}
					return caps.Lockout.SetLockoutEnd(ctx, a, domain.LockoutEndMin)
				},
			),
		)
	}

	if opts.IncludeAccountProperties {
		props = append(props,
			fieldProperty(domain.PropertyGivenName, "First Name", func(a *domain.Account) *string { return &a.GivenName }),
			fieldProperty(domain.PropertyFamilyName, "Last Name", func(a *domain.Account) *string { return &a.FamilyName }),
		)
	}

	return props
}

func emailProperty(caps port.Capabilities, required bool) domain.PropertyMetadata[domain.Account] {
	return domain.PropertyMetadata[domain.Account]{
		Type:     domain.PropertyEmail,
		Name:     "Email",
		DataType: domain.PropertyDataTypeEmail,
		Required: required,
		Get: func(ctx context.Context, a *domain.Account) (string, error) {
			return caps.Email.Email(ctx, a)
		},
		// administrators are trusted, so a new address is confirmed right away
		Set: func(ctx context.Context, a *domain.Account, value string) (domain.Result, error) {
			if res, err := softResult(caps.Email.SetEmail(ctx, a, value)); err != nil || !res.IsSuccess() {
				return res, err
			}
			if value == "" {
				return domain.Success(), nil
			}
			token, err := caps.Email.GenerateEmailConfirmationToken(ctx, a)
			if err != nil {
				return softResult(err)
			}
			return softResult(caps.Email.ConfirmEmail(ctx, a, token))
		},
	}
}

func boolProperty(
	propType, name string,
	get func(context.Context, *domain.Account) (bool, error),
	set func(context.Context, *domain.Account, bool) error,
) domain.PropertyMetadata[domain.Account] {
	return domain.PropertyMetadata[domain.Account]{
		Type:     propType,
		Name:     name,
		DataType: domain.PropertyDataTypeBoolean,
		Get: func(ctx context.Context, a *domain.Account) (string, error) {
			v, err := get(ctx, a)
			if err != nil {
				return "", err
			}
			return strconv.FormatBool(v), nil
		},
		Set: func(ctx context.Context, a *domain.Account, value string) (domain.Result, error) {
			v, err := strconv.ParseBool(value)
			if err != nil {
				return domain.Failure(name + " must be true or false."), nil
			}
			return softResult(set(ctx, a, v))
		},
	}
}

// fieldProperty exposes a plain account field. The caller persists the account afterwards.
func fieldProperty(propType, name string, field func(*domain.Account) *string) domain.PropertyMetadata[domain.Account] {
	return domain.PropertyMetadata[domain.Account]{
		Type:     propType,
		Name:     name,
		DataType: domain.PropertyDataTypeString,
		Get: func(_ context.Context, a *domain.Account) (string, error) {
			return *field(a), nil
		},
		Set: func(_ context.Context, a *domain.Account, value string) (domain.Result, error) {
			*field(a) = value
			return domain.Success(), nil
		},
	}
}

func writeOnly(context.Context, *domain.Account) (string, error) {
	return "", nil
}

func roleMetadata(roles port.RoleStore, opts MetadataOptions) domain.RoleMetadata {
	claimType := opts.RoleClaimType
	if claimType == "" {
		claimType = DefaultRoleClaimType
	}
	if roles == nil {
		return domain.RoleMetadata{RoleClaimType: claimType}
	}

	name := domain.PropertyMetadata[domain.Role]{
		Type:     domain.PropertyName,
		Name:     "Name",
		DataType: domain.PropertyDataTypeString,
		Required: true,
		Get: func(_ context.Context, r *domain.Role) (string, error) {
			return r.Name, nil
		},
		Set: func(_ context.Context, r *domain.Role, value string) (domain.Result, error) {
			r.Name = value
			return domain.Success(), nil
		},
	}
	description := domain.PropertyMetadata[domain.Role]{
		Type:     domain.PropertyDescription,
		Name:     "Description",
		DataType: domain.PropertyDataTypeString,
		Get: func(_ context.Context, r *domain.Role) (string, error) {
			return r.Description, nil
		},
		Set: func(_ context.Context, r *domain.Role, value string) (domain.Result, error) {
			r.Description = value
			return domain.Success(), nil
		},
	}

	return domain.RoleMetadata{
		SupportsCreate:   true,
		SupportsDelete:   true,
		RoleClaimType:    claimType,
		CreateProperties: domain.PropertyList[domain.Role]{name, description},
		UpdateProperties: domain.PropertyList[domain.Role]{name, description},
	}
}
