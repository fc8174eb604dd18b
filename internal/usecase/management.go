package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
)

// ManagementService backs the administrative surface: account and role CRUD driven by
// the property metadata.
type ManagementService struct {
	users     port.UserStore
	caps      port.Capabilities
	roles     port.RoleStore
	opts      MetadataOptions
	metadata  MetadataFunc
	validator *PropertyValidator
	events    port.EventPublisher
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
}

// NewManagementService constructs a ManagementService. roles may be nil, in which case every
// role operation fails with ErrRolesNotSupported. The account store must be queryable.
func NewManagementService(users port.UserStore, roles port.RoleStore, opts MetadataOptions) (*ManagementService, error) {
	if users == nil {
		return nil, ErrStoreRequired
	}
	caps := port.DetectCapabilities(users)
	if !caps.SupportsQuery() {
		return nil, ErrQueryNotSupported
	}

	s := &ManagementService{
		users:     users,
		caps:      caps,
		roles:     roles,
		opts:      opts,
		validator: NewPropertyValidator(),
		tracer:    otel.Tracer(tracerName),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	s.metadata = func(context.Context) (domain.IdentityManagerMetadata, error) {
		return StandardMetadata(s.users, s.roles, s.opts, s.now)
	}
	return s, nil
}

// WithMetadataFunc replaces the standard schema.
func (s *ManagementService) WithMetadataFunc(fn MetadataFunc) *ManagementService {
	if fn != nil {
		s.metadata = fn
	}
	return s
}

// WithLogger configures structured logging.
func (s *ManagementService) WithLogger(logger *zap.Logger) *ManagementService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithEvents enables domain event publishing.
func (s *ManagementService) WithEvents(events port.EventPublisher) *ManagementService {
	s.events = events
	return s
}

// WithTracer overrides the tracer used for spans.
func (s *ManagementService) WithTracer(tracer trace.Tracer) *ManagementService {
	if tracer != nil {
		s.tracer = tracer
	}
	return s
}

// WithClock overrides the time source.
func (s *ManagementService) WithClock(now func() time.Time) *ManagementService {
	if now != nil {
		s.now = now
	}
	return s
}

// GetMetadata returns the administrative schema.
func (s *ManagementService) GetMetadata(ctx context.Context) (domain.IdentityManagerMetadata, error) {
	meta, err := s.metadata(ctx)
	if err != nil {
		return domain.IdentityManagerMetadata{}, fmt.Errorf("load metadata: %w", err)
	}
	return meta, nil
}

// CreateUser creates an account from submitted properties. Username and password are
// mandatory; every other property goes through its create descriptor before the account
// is persisted.
func (s *ManagementService) CreateUser(ctx context.Context, properties []domain.PropertyValue) (domain.ValueResult[domain.CreateResult], error) {
	ctx, span := s.tracer.Start(ctx, "ManagementService.CreateUser")
	defer span.End()

	username, ok := propertyValue(properties, domain.PropertyUsername)
	if !ok || strings.TrimSpace(username) == "" {
		return domain.ValueResult[domain.CreateResult]{}, fmt.Errorf("%w: %s", ErrMissingProperty, domain.PropertyUsername)
	}
	password, ok := propertyValue(properties, domain.PropertyPassword)
	if !ok || password == "" {
		return domain.ValueResult[domain.CreateResult]{}, fmt.Errorf("%w: %s", ErrMissingProperty, domain.PropertyPassword)
	}

	meta, err := s.GetMetadata(ctx)
	if err != nil {
		return domain.ValueResult[domain.CreateResult]{}, err
	}
	createProps := meta.UserMetadata.CreateProperties

	if res := s.checkRequired(createProps, properties); !res.IsSuccess() {
		return domain.FailureOf[domain.CreateResult](res), nil
	}

	account := &domain.Account{Username: strings.TrimSpace(username)}
	for _, prop := range properties {
		if prop.Type == domain.PropertyUsername || prop.Type == domain.PropertyPassword {
			continue
		}
		if res := checkDescriptor(s.validator, createProps, prop.Type, prop.Value); !res.IsSuccess() {
			return domain.FailureOf[domain.CreateResult](res), nil
		}
		res, err := SetProperty(ctx, createProps, account, prop.Type, prop.Value)
		if err != nil {
			return domain.ValueResult[domain.CreateResult]{}, err
		}
		if !res.IsSuccess() {
			return domain.FailureOf[domain.CreateResult](res), nil
		}
	}

	res, err := softResult(s.users.Create(ctx, account, password))
	if err != nil {
		span.RecordError(err)
		return domain.ValueResult[domain.CreateResult]{}, fmt.Errorf("create user: %w", err)
	}
	if !res.IsSuccess() {
		return domain.FailureOf[domain.CreateResult](res), nil
	}

	s.logger.Info("account created", zap.String("account_id", account.ID), zap.String("username", account.Username))
	s.publish(ctx, "account created", func(ctx context.Context) error {
		return s.events.PublishAccountCreated(ctx, domain.AccountCreatedEvent{
			EventID:   uuid.NewString(),
			AccountID: account.ID,
			Username:  account.Username,
			CreatedAt: s.now().UTC(),
			CreatedBy: "admin",
		})
	})

	return domain.SuccessWith(domain.CreateResult{Subject: account.ID}), nil
}

// DeleteUser removes an account and everything the store keeps for it.
func (s *ManagementService) DeleteUser(ctx context.Context, subject string) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, "ManagementService.DeleteUser")
	defer span.End()

	account, res, err := s.loadAccount(ctx, subject)
	if err != nil || !res.IsSuccess() {
		return res, err
	}

	res, err = softResult(s.users.Delete(ctx, account))
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("delete user: %w", err)
	}
	if !res.IsSuccess() {
		return res, nil
	}

	s.logger.Info("account deleted", zap.String("account_id", account.ID))
	s.publish(ctx, "account deleted", func(ctx context.Context) error {
		return s.events.PublishAccountDeleted(ctx, domain.AccountDeletedEvent{
			EventID:   uuid.NewString(),
			AccountID: account.ID,
			Username:  account.Username,
			DeletedAt: s.now().UTC(),
		})
	})
	return domain.Success(), nil
}

// QueryUsers pages through accounts whose username contains filter. A negative start is
// treated as zero and a negative count as unbounded.
func (s *ManagementService) QueryUsers(ctx context.Context, filter string, start, count int) (domain.ValueResult[domain.QueryResult[domain.UserSummary]], error) {
	ctx, span := s.tracer.Start(ctx, "ManagementService.QueryUsers")
	defer span.End()

	query := normalizeQuery(filter, start, count)
	accounts, total, err := s.caps.Query.QueryUsers(ctx, query)
	if err != nil {
		span.RecordError(err)
		return domain.ValueResult[domain.QueryResult[domain.UserSummary]]{}, fmt.Errorf("query users: %w", err)
	}

	items := make([]domain.UserSummary, 0, len(accounts))
	for i := range accounts {
		name, err := s.nameClaim(ctx, &accounts[i])
		if err != nil {
			return domain.ValueResult[domain.QueryResult[domain.UserSummary]]{}, err
		}
		items = append(items, domain.UserSummary{
			Subject:  accounts[i].ID,
			Username: accounts[i].Username,
			Name:     name,
		})
	}

	return domain.SuccessWith(domain.QueryResult[domain.UserSummary]{
		Items:  items,
		Total:  total,
		Start:  query.Start,
		Count:  query.Count,
		Filter: query.Filter,
	}), nil
}

// GetUser returns the administrative view of an account, or a nil detail for an unknown subject.
func (s *ManagementService) GetUser(ctx context.Context, subject string) (domain.ValueResult[*domain.UserDetail], error) {
	ctx, span := s.tracer.Start(ctx, "ManagementService.GetUser")
	defer span.End()

	account, res, err := s.loadAccount(ctx, subject)
	if err != nil {
		return domain.ValueResult[*domain.UserDetail]{}, err
	}
	if !res.IsSuccess() {
		return domain.SuccessWith[*domain.UserDetail](nil), nil
	}

	meta, err := s.GetMetadata(ctx)
	if err != nil {
		return domain.ValueResult[*domain.UserDetail]{}, err
	}

	props, err := propertyValues(ctx, meta.UserMetadata.UpdateProperties, account)
	if err != nil {
		return domain.ValueResult[*domain.UserDetail]{}, err
	}

	name, err := s.nameClaim(ctx, account)
	if err != nil {
		return domain.ValueResult[*domain.UserDetail]{}, err
	}

	detail := &domain.UserDetail{
		Subject:    account.ID,
		Username:   account.Username,
		Name:       name,
		Properties: props,
	}
	if s.caps.SupportsClaims() {
		claims, err := s.caps.Claims.Claims(ctx, account)
		if err != nil {
			return domain.ValueResult[*domain.UserDetail]{}, fmt.Errorf("read claims: %w", err)
		}
		detail.Claims = claims
	}
	return domain.SuccessWith(detail), nil
}

// SetUserProperty applies one update property and persists the account.
func (s *ManagementService) SetUserProperty(ctx context.Context, subject, propType, value string) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, "ManagementService.SetUserProperty")
	defer span.End()

	account, res, err := s.loadAccount(ctx, subject)
	if err != nil || !res.IsSuccess() {
		return res, err
	}

	meta, err := s.GetMetadata(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	updateProps := meta.UserMetadata.UpdateProperties

	if res := checkDescriptor(s.validator, updateProps, propType, value); !res.IsSuccess() {
		return res, nil
	}

	res, err = SetProperty(ctx, updateProps, account, propType, value)
	if err != nil || !res.IsSuccess() {
		return res, err
	}

	res, err = softResult(s.users.Update(ctx, account))
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("update user: %w", err)
	}
	return res, nil
}

// AddUserClaim attaches a claim unless an equal one is already present.
func (s *ManagementService) AddUserClaim(ctx context.Context, subject, claimType, value string) (domain.Result, error) {
	if !s.caps.SupportsClaims() {
		return domain.Result{}, ErrClaimsNotSupported
	}

	account, res, err := s.loadAccount(ctx, subject)
	if err != nil || !res.IsSuccess() {
		return res, err
	}

	claim := domain.NewClaim(claimType, value)
	existing, err := s.caps.Claims.Claims(ctx, account)
	if err != nil {
		return domain.Result{}, fmt.Errorf("read claims: %w", err)
	}
	if domain.ContainsClaim(existing, claim) {
		return domain.Success(), nil
	}
	return softResult(s.caps.Claims.AddClaim(ctx, account, claim))
}

// RemoveUserClaim detaches every claim equal to (claimType, value).
func (s *ManagementService) RemoveUserClaim(ctx context.Context, subject, claimType, value string) (domain.Result, error) {
	if !s.caps.SupportsClaims() {
		return domain.Result{}, ErrClaimsNotSupported
	}

	account, res, err := s.loadAccount(ctx, subject)
	if err != nil || !res.IsSuccess() {
		return res, err
	}
	return softResult(s.caps.Claims.RemoveClaim(ctx, account, domain.NewClaim(claimType, value)))
}

func (s *ManagementService) loadAccount(ctx context.Context, subject string) (*domain.Account, domain.Result, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, domain.Result{}, ErrSubjectRequired
	}

	account, err := s.users.FindByID(ctx, subject)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.Failure(invalidSubjectMessage), nil
		}
		return nil, domain.Result{}, fmt.Errorf("lookup user: %w", err)
	}
	return account, domain.Success(), nil
}

// nameClaim returns the first "name" claim of the account, if claims are supported.
func (s *ManagementService) nameClaim(ctx context.Context, account *domain.Account) (string, error) {
	if !s.caps.SupportsClaims() {
		return "", nil
	}
	claims, err := s.caps.Claims.Claims(ctx, account)
	if err != nil {
		return "", fmt.Errorf("read claims: %w", err)
	}
	if c, ok := domain.FindClaim(claims, domain.ClaimName); ok {
		return c.Value, nil
	}
	return "", nil
}

func (s *ManagementService) checkRequired(list domain.PropertyList[domain.Account], submitted []domain.PropertyValue) domain.Result {
	var missing []string
	for _, prop := range list {
		if !prop.Required || prop.Type == domain.PropertyUsername || prop.Type == domain.PropertyPassword {
			continue
		}
		if v, ok := propertyValue(submitted, prop.Type); !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, prop.Name+" is required.")
		}
	}
	if len(missing) > 0 {
		return domain.Failure(missing...)
	}
	return domain.Success()
}

func (s *ManagementService) publish(ctx context.Context, what string, fn func(context.Context) error) {
	if s.events == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.logger.Warn("publish "+what+" event", zap.Error(err))
	}
}

func propertyValue(properties []domain.PropertyValue, propType string) (string, bool) {
	for _, p := range properties {
		if p.Type == propType {
			return p.Value, true
		}
	}
	return "", false
}

func normalizeQuery(filter string, start, count int) domain.Query {
	if start < 0 {
		start = 0
	}
	if count < 0 {
		count = -1
	}
	return domain.Query{Filter: strings.TrimSpace(filter), Start: start, Count: count}
}
