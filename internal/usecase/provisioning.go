package usecase

import (
	"context"
	"fmt"
	"strings"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/infra/logger"
	"github.com/arklim/identity-adapter/internal/repository"
)

type provisioningReport struct {
	emailLinked bool
	phoneLinked bool
	claimsAdded int
}

// createExternalAccount persists a fresh account with a random username and links login to it.
// A store rejection is returned as an error result.
func (s *AuthService) createExternalAccount(ctx context.Context, login domain.ExternalLogin) (*domain.Account, *domain.AuthenticateResult, error) {
	account := &domain.Account{Username: strings.ReplaceAll(uuid.NewString(), "-", "")}

	if err := s.users.Create(ctx, account, ""); err != nil {
		if rej, ok := repository.AsRejection(err); ok {
			return nil, domain.NewAuthenticateError(rej.First()), nil
		}
		return nil, nil, fmt.Errorf("create external account: %w", err)
	}

	if err := s.caps.Logins.AddLogin(ctx, account, login); err != nil {
		if rej, ok := repository.AsRejection(err); ok {
			return nil, domain.NewAuthenticateError(rej.First()), nil
		}
		return nil, nil, fmt.Errorf("link external login: %w", err)
	}

	return account, nil, nil
}

// provisionClaims copies the provider's claims onto a new account. Email and phone are
// linked best-effort; a rejected attempt leaves those claims in the generic set. The
// remaining claims are merged with set semantics and the first rejected add aborts.
func (s *AuthService) provisionClaims(ctx context.Context, account *domain.Account, incoming []domain.Claim) (provisioningReport, domain.Result, error) {
	var report provisioningReport
	remaining := incoming

	if s.caps.SupportsEmail() {
		var err error
		remaining, report.emailLinked, err = s.linkEmail(ctx, account, remaining)
		if err != nil {
			return report, domain.Result{}, err
		}
	}

	if s.caps.SupportsPhone() {
		var err error
		remaining, report.phoneLinked, err = s.linkPhone(ctx, account, remaining)
		if err != nil {
			return report, domain.Result{}, err
		}
	}

	if !s.caps.SupportsClaims() {
		return report, domain.Success(), nil
	}

	existing, err := s.caps.Claims.Claims(ctx, account)
	if err != nil {
		return report, domain.Result{}, fmt.Errorf("read claims: %w", err)
	}

	for _, claim := range domain.ClaimsDifference(remaining, existing) {
		res, err := softResult(s.caps.Claims.AddClaim(ctx, account, claim))
		if err != nil {
			return report, domain.Result{}, fmt.Errorf("add claim %s: %w", claim.Type, err)
		}
		if !res.IsSuccess() {
			return report, res, nil
		}
		report.claimsAdded++
	}

	return report, domain.Success(), nil
}

func (s *AuthService) linkEmail(ctx context.Context, account *domain.Account, claims []domain.Claim) ([]domain.Claim, bool, error) {
	emailClaim, ok := domain.FindClaim(claims, domain.ClaimEmail)
	if !ok {
		return claims, false, nil
	}

	current, err := s.caps.Email.Email(ctx, account)
	if err != nil {
		return nil, false, fmt.Errorf("read email: %w", err)
	}
	if current != "" {
		return claims, false, nil
	}

	res, err := softResult(s.caps.Email.SetEmail(ctx, account, emailClaim.Value))
	if err != nil {
		return nil, false, fmt.Errorf("set email: %w", err)
	}
	if !res.IsSuccess() {
		// usually the address already belongs to another account
		s.logger.Warn("external email not linked",
			zap.String("account_id", account.ID),
			zap.String("email", logger.MaskEmail(emailClaim.Value)),
		)
		return claims, false, nil
	}

	if verified, ok := domain.FindClaim(claims, domain.ClaimEmailVerified); ok && verified.Value == "true" {
		token, err := s.caps.Email.GenerateEmailConfirmationToken(ctx, account)
		if err != nil {
			return nil, false, fmt.Errorf("generate email confirmation token: %w", err)
		}
		res, err := softResult(s.caps.Email.ConfirmEmail(ctx, account, token))
		if err != nil {
			return nil, false, fmt.Errorf("confirm email: %w", err)
		}
		if !res.IsSuccess() {
			s.logger.Warn("external email not confirmed", zap.String("account_id", account.ID), zap.String("reason", res.FirstError()))
		}
	}

	return domain.WithoutClaimTypes(claims, domain.ClaimEmail, domain.ClaimEmailVerified), true, nil
}

func (s *AuthService) linkPhone(ctx context.Context, account *domain.Account, claims []domain.Claim) ([]domain.Claim, bool, error) {
	phoneClaim, ok := domain.FindClaim(claims, domain.ClaimPhoneNumber)
	if !ok {
		return claims, false, nil
	}

	current, err := s.caps.Phone.Phone(ctx, account)
	if err != nil {
		return nil, false, fmt.Errorf("read phone: %w", err)
	}
	if current != "" {
		return claims, false, nil
	}

	res, err := softResult(s.caps.Phone.SetPhone(ctx, account, phoneClaim.Value))
	if err != nil {
		return nil, false, fmt.Errorf("set phone: %w", err)
	}
	if !res.IsSuccess() {
		s.logger.Warn("external phone not linked",
			zap.String("account_id", account.ID),
			zap.String("phone", logger.MaskPhone(phoneClaim.Value)),
		)
		return claims, false, nil
	}

	if verified, ok := domain.FindClaim(claims, domain.ClaimPhoneNumberVerified); ok && verified.Value == "true" {
		token, err := s.caps.Phone.GenerateChangePhoneToken(ctx, account, phoneClaim.Value)
		if err != nil {
			return nil, false, fmt.Errorf("generate phone token: %w", err)
		}
		res, err := softResult(s.caps.Phone.ChangePhone(ctx, account, phoneClaim.Value, token))
		if err != nil {
			return nil, false, fmt.Errorf("confirm phone: %w", err)
		}
		if !res.IsSuccess() {
			s.logger.Warn("external phone not confirmed", zap.String("account_id", account.ID), zap.String("reason", res.FirstError()))
		}
	}

	return domain.WithoutClaimTypes(claims, domain.ClaimPhoneNumber, domain.ClaimPhoneNumberVerified), true, nil
}

func (s *AuthService) publishProvisioned(ctx context.Context, account *domain.Account, login domain.ExternalLogin, report provisioningReport) {
	if s.events == nil {
		return
	}

	event := domain.ExternalAccountProvisionedEvent{
		EventID:           uuid.NewString(),
		AccountID:         account.ID,
		Provider:          login.Provider,
		ProviderSubjectID: login.ProviderSubjectID,
		ClaimsAdded:       report.claimsAdded,
		EmailLinked:       report.emailLinked,
		PhoneLinked:       report.phoneLinked,
		ProvisionedAt:     s.now().UTC(),
	}
	if err := s.events.PublishExternalAccountProvisioned(ctx, event); err != nil {
		s.logger.Warn("publish external account provisioned event", zap.String("account_id", account.ID), zap.Error(err))
	}
}
