package usecase

import (
	"context"
	"fmt"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
)

// claimAssembler derives claim sets and display names from an account through the
// store capabilities it was built with.
type claimAssembler struct {
	caps                 port.Capabilities
	displayNameClaimType string
	enableSecurityStamp  bool
}

// sessionClaims is the minimal set attached to an authentication result: the security
// stamp when propagation is enabled and supported.
func (a claimAssembler) sessionClaims(ctx context.Context, account *domain.Account) ([]domain.Claim, error) {
	claims := make([]domain.Claim, 0, 1)
	if !a.enableSecurityStamp || !a.caps.SupportsSecurityStamp() {
		return claims, nil
	}

	stamp, err := a.caps.SecurityStamp.SecurityStamp(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("read security stamp: %w", err)
	}
	if stamp != "" {
		claims = append(claims, domain.NewClaim(domain.ClaimSecurityStamp, stamp))
	}
	return claims, nil
}

// accountClaims is the full profile claim set of an account.
func (a claimAssembler) accountClaims(ctx context.Context, account *domain.Account) ([]domain.Claim, error) {
	claims := []domain.Claim{
		domain.NewClaim(domain.ClaimSubject, account.ID),
		domain.NewClaim(domain.ClaimPreferredUsername, account.Username),
	}

	if a.caps.SupportsEmail() {
		email, err := a.caps.Email.Email(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("read email: %w", err)
		}
		if email != "" {
			confirmed, err := a.caps.Email.IsEmailConfirmed(ctx, account)
			if err != nil {
				return nil, fmt.Errorf("read email confirmation: %w", err)
			}
			claims = append(claims,
				domain.NewClaim(domain.ClaimEmail, email),
				domain.NewBoolClaim(domain.ClaimEmailVerified, confirmed),
			)
		}
	}

	if a.caps.SupportsPhone() {
		phone, err := a.caps.Phone.Phone(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("read phone: %w", err)
		}
		if phone != "" {
			confirmed, err := a.caps.Phone.IsPhoneConfirmed(ctx, account)
			if err != nil {
				return nil, fmt.Errorf("read phone confirmation: %w", err)
			}
			claims = append(claims,
				domain.NewClaim(domain.ClaimPhoneNumber, phone),
				domain.NewBoolClaim(domain.ClaimPhoneNumberVerified, confirmed),
			)
		}
	}

	if a.caps.SupportsClaims() {
		stored, err := a.caps.Claims.Claims(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("read claims: %w", err)
		}
		claims = append(claims, stored...)
	}

	if a.caps.SupportsRoles() {
		roles, err := a.caps.Roles.RoleNames(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("read roles: %w", err)
		}
		for _, role := range roles {
			claims = append(claims, domain.NewClaim(domain.ClaimRole, role))
		}
	}

	return claims, nil
}

// displayName resolves the configured claim type, then "name", then the generic name
// claim, then the username.
func (a claimAssembler) displayName(ctx context.Context, account *domain.Account) (string, error) {
	claims, err := a.accountClaims(ctx, account)
	if err != nil {
		return "", err
	}

	candidates := make([]string, 0, 3)
	if a.displayNameClaimType != "" {
		candidates = append(candidates, a.displayNameClaimType)
	}
	candidates = append(candidates, domain.ClaimName, domain.ClaimGenericName)

	for _, claimType := range candidates {
		if c, ok := domain.FindClaim(claims, claimType); ok {
			return c.Value, nil
		}
	}
	return account.Username, nil
}
