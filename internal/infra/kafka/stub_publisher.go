package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. It backs deployments without brokers.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, subjectID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("subject_id", subjectID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

// PublishAccountCreated logs iam.account.created events.
func (p *StubPublisher) PublishAccountCreated(_ context.Context, event domain.AccountCreatedEvent) error {
	p.logEvent(EventAccountCreated, event.AccountID, event.CreatedAt, zap.String("username", event.Username))
	return nil
}

// PublishExternalAccountProvisioned logs iam.account.external_provisioned events.
func (p *StubPublisher) PublishExternalAccountProvisioned(_ context.Context, event domain.ExternalAccountProvisionedEvent) error {
	p.logEvent(EventAccountExternalProvisioned, event.AccountID, event.ProvisionedAt,
		zap.String("provider", event.Provider),
		zap.Int("claims_added", event.ClaimsAdded),
		zap.Bool("email_linked", event.EmailLinked),
		zap.Bool("phone_linked", event.PhoneLinked),
	)
	return nil
}

// PublishAccountDeleted logs iam.account.deleted events.
func (p *StubPublisher) PublishAccountDeleted(_ context.Context, event domain.AccountDeletedEvent) error {
	p.logEvent(EventAccountDeleted, event.AccountID, event.DeletedAt, zap.String("username", event.Username))
	return nil
}

// PublishRoleCreated logs iam.role.created events.
func (p *StubPublisher) PublishRoleCreated(_ context.Context, event domain.RoleCreatedEvent) error {
	p.logEvent(EventRoleCreated, event.RoleID, event.CreatedAt, zap.String("name", event.Name))
	return nil
}

// PublishRoleDeleted logs iam.role.deleted events.
func (p *StubPublisher) PublishRoleDeleted(_ context.Context, event domain.RoleDeletedEvent) error {
	p.logEvent(EventRoleDeleted, event.RoleID, event.DeletedAt, zap.String("name", event.Name))
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
