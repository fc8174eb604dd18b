package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
	"github.com/arklim/identity-adapter/internal/infra/logger"
)

const tracerName = "github.com/arklim/identity-adapter/internal/usecase"

// PostAuthenticateHook runs after a local password check succeeds. Returning a non-nil
// result short-circuits the standard success path and that result is returned unchanged.
type PostAuthenticateHook func(ctx context.Context, account *domain.Account) (*domain.AuthenticateResult, error)

// AuthOptions tunes claim and display-name derivation.
type AuthOptions struct {
	// DisplayNameClaimType is consulted before the standard name claims.
	DisplayNameClaimType string
	// EnableSecurityStamp attaches the account stamp to issued sessions and enforces it in IsActive.
	EnableSecurityStamp bool
}

// AuthService authenticates principals against an account store and links federated identities.
type AuthService struct {
	users    port.UserStore
	caps     port.Capabilities
	claims   claimAssembler
	opts     AuthOptions
	hook     PostAuthenticateHook
	events   port.EventPublisher
	observer port.AuthObserver
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService. Store capabilities are detected once here.
func NewAuthService(users port.UserStore, opts AuthOptions) (*AuthService, error) {
	if users == nil {
		return nil, ErrStoreRequired
	}

	opts.DisplayNameClaimType = strings.TrimSpace(opts.DisplayNameClaimType)
	caps := port.DetectCapabilities(users)

	return &AuthService{
		users: users,
		caps:  caps,
		claims: claimAssembler{
			caps:                 caps,
			displayNameClaimType: opts.DisplayNameClaimType,
			enableSecurityStamp:  opts.EnableSecurityStamp,
		},
		opts:     opts,
		observer: port.NopAuthObserver{},
		tracer:   otel.Tracer(tracerName),
		logger:   zap.NewNop(),
		now:      time.Now,
	}, nil
}

// WithLogger configures structured logging.
func (s *AuthService) WithLogger(logger *zap.Logger) *AuthService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithEvents enables domain event publishing.
func (s *AuthService) WithEvents(events port.EventPublisher) *AuthService {
	s.events = events
	return s
}

// WithObserver wires authentication outcome instrumentation.
func (s *AuthService) WithObserver(observer port.AuthObserver) *AuthService {
	if observer != nil {
		s.observer = observer
	}
	return s
}

// WithTracer overrides the tracer used for spans.
func (s *AuthService) WithTracer(tracer trace.Tracer) *AuthService {
	if tracer != nil {
		s.tracer = tracer
	}
	return s
}

// WithPostAuthenticateHook installs a hook that may replace the local success result.
func (s *AuthService) WithPostAuthenticateHook(hook PostAuthenticateHook) *AuthService {
	s.hook = hook
	return s
}

// WithClock overrides the time source.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// AuthenticateLocal verifies a username and password. A nil result with a nil error means
// the attempt was not authenticated: unknown user, wrong password, locked out, or a store
// without local credentials. Lockout status is checked before the password so a locked
// account never reveals whether the password was right.
func (s *AuthService) AuthenticateLocal(ctx context.Context, username, password string) (*domain.AuthenticateResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.AuthenticateLocal")
	defer span.End()

	result, outcome, err := s.authenticateLocal(ctx, strings.TrimSpace(username), password)
	s.finish(ctx, port.AuthMethodLocal, outcome, err)
	return result, err
}

func (s *AuthService) authenticateLocal(ctx context.Context, username, password string) (*domain.AuthenticateResult, string, error) {
	if !s.caps.SupportsPassword() {
		return nil, port.AuthOutcomeUnsupported, nil
	}
	if username == "" {
		return nil, port.AuthOutcomeFailure, nil
	}

	account, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			return nil, port.AuthOutcomeFailure, nil
		}
		return nil, port.AuthOutcomeFailure, fmt.Errorf("lookup user: %w", err)
	}

	if s.caps.SupportsLockout() {
		locked, err := s.caps.Lockout.IsLockedOut(ctx, account)
		if err != nil {
			return nil, port.AuthOutcomeFailure, fmt.Errorf("check lockout: %w", err)
		}
		if locked {
			logger.For(ctx, s.logger).Info("local authentication refused for locked account", zap.String("account_id", account.ID))
			return nil, port.AuthOutcomeLockedOut, nil
		}
	}

	ok, err := s.caps.Password.CheckPassword(ctx, account, password)
	if err != nil {
		return nil, port.AuthOutcomeFailure, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		if s.caps.SupportsLockout() {
			if err := s.caps.Lockout.AccessFailed(ctx, account); err != nil {
				return nil, port.AuthOutcomeFailure, fmt.Errorf("record failed access: %w", err)
			}
		}
		return nil, port.AuthOutcomeFailure, nil
	}

	if s.caps.SupportsLockout() {
		if err := s.caps.Lockout.ResetAccessFailedCount(ctx, account); err != nil {
			return nil, port.AuthOutcomeFailure, fmt.Errorf("reset failed access: %w", err)
		}
	}

	if s.hook != nil {
		override, err := s.hook(ctx, account)
		if err != nil {
			return nil, port.AuthOutcomeFailure, fmt.Errorf("post authenticate hook: %w", err)
		}
		if override != nil {
			outcome := port.AuthOutcomeSuccess
			if override.IsError() {
				outcome = port.AuthOutcomeRejected
			}
			return override, outcome, nil
		}
	}

	result, err := s.signIn(ctx, account, "")
	if err != nil {
		return nil, port.AuthOutcomeFailure, err
	}
	return result, port.AuthOutcomeSuccess, nil
}

// AuthenticateExternal signs in the account linked to identity, creating and provisioning
// one on first sight. Store rejections come back as an error result; a nil identity, or
// one without provider and subject, is a caller error.
func (s *AuthService) AuthenticateExternal(ctx context.Context, identity *domain.ExternalIdentity) (*domain.AuthenticateResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.AuthenticateExternal")
	defer span.End()

	if identity == nil || strings.TrimSpace(identity.Provider) == "" || strings.TrimSpace(identity.ProviderSubjectID) == "" {
		s.finish(ctx, port.AuthMethodExternal, port.AuthOutcomeFailure, ErrExternalIdentityRequired)
		return nil, ErrExternalIdentityRequired
	}
	span.SetAttributes(attribute.String("auth.provider", identity.Provider))

	result, outcome, err := s.authenticateExternal(ctx, *identity)
	s.finish(ctx, port.AuthMethodExternal, outcome, err)
	return result, err
}

func (s *AuthService) authenticateExternal(ctx context.Context, identity domain.ExternalIdentity) (*domain.AuthenticateResult, string, error) {
	if !s.caps.SupportsLogins() {
		return nil, port.AuthOutcomeUnsupported, ErrExternalLoginsNotSupported
	}

	login := identity.Login()
	account, err := s.caps.Logins.FindByLogin(ctx, login)
	switch {
	case err == nil:
		result, err := s.signIn(ctx, account, identity.Provider)
		if err != nil {
			return nil, port.AuthOutcomeFailure, err
		}
		return result, port.AuthOutcomeSuccess, nil
	case !isNotFound(err):
		return nil, port.AuthOutcomeFailure, fmt.Errorf("lookup external login: %w", err)
	}

	account, rejected, err := s.createExternalAccount(ctx, login)
	if err != nil {
		return nil, port.AuthOutcomeFailure, err
	}
	if rejected != nil {
		return rejected, port.AuthOutcomeRejected, nil
	}

	report, res, err := s.provisionClaims(ctx, account, identity.Claims)
	if err != nil {
		return nil, port.AuthOutcomeFailure, err
	}
	if !res.IsSuccess() {
		return domain.NewAuthenticateError(res.FirstError()), port.AuthOutcomeRejected, nil
	}

	logger.For(ctx, s.logger).Info("external account provisioned",
		zap.String("account_id", account.ID),
		zap.String("provider", login.Provider),
		zap.Int("claims_added", report.claimsAdded),
	)
	s.observer.ObserveExternalProvisioned(login.Provider)
	s.publishProvisioned(ctx, account, login, report)

	result, err := s.signIn(ctx, account, identity.Provider)
	if err != nil {
		return nil, port.AuthOutcomeFailure, err
	}
	return result, port.AuthOutcomeSuccess, nil
}

// IsActive reports whether the principal still maps to an account and, when stamps are
// enabled, whether the stamp carried by the principal matches the current one.
func (s *AuthService) IsActive(ctx context.Context, principal *domain.Principal) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.IsActive")
	defer span.End()

	if principal == nil || strings.TrimSpace(principal.Subject) == "" {
		return false, ErrSubjectRequired
	}

	account, err := s.users.FindByID(ctx, strings.TrimSpace(principal.Subject))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("lookup user: %w", err)
	}

	if !s.opts.EnableSecurityStamp || !s.caps.SupportsSecurityStamp() {
		return true, nil
	}

	presented, ok := domain.FindClaim(principal.Claims, domain.ClaimSecurityStamp)
	if !ok {
		return true, nil
	}

	current, err := s.caps.SecurityStamp.SecurityStamp(ctx, account)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("read security stamp: %w", err)
	}
	return presented.Value == current, nil
}

// GetProfileData returns the claims of subject, restricted to requestedTypes when any are given.
func (s *AuthService) GetProfileData(ctx context.Context, subject string, requestedTypes []string) ([]domain.Claim, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.GetProfileData")
	defer span.End()

	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrSubjectRequired
	}

	account, err := s.users.FindByID(ctx, subject)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidSubject
		}
		span.RecordError(err)
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	claims, err := s.claims.accountClaims(ctx, account)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return domain.FilterClaimTypes(claims, requestedTypes), nil
}

func (s *AuthService) signIn(ctx context.Context, account *domain.Account, provider string) (*domain.AuthenticateResult, error) {
	claims, err := s.claims.sessionClaims(ctx, account)
	if err != nil {
		return nil, err
	}
	name, err := s.claims.displayName(ctx, account)
	if err != nil {
		return nil, err
	}
	if provider != "" {
		return domain.NewExternalAuthenticateSuccess(account.ID, name, claims, provider), nil
	}
	return domain.NewAuthenticateSuccess(account.ID, name, claims), nil
}

func (s *AuthService) finish(ctx context.Context, method, outcome string, err error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("auth.method", method), attribute.String("auth.outcome", outcome))
	if err != nil && !errors.Is(err, ErrExternalIdentityRequired) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.For(ctx, s.logger).Error("authentication failed", zap.String("method", method), zap.Error(err))
	}
	s.observer.ObserveAuthentication(method, outcome)
}
