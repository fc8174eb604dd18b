package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
	"github.com/arklim/identity-adapter/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, also used as topic names under the configured prefix.
const (
	EventAccountCreated             = "iam.account.created"
	EventAccountExternalProvisioned = "iam.account.external_provisioned"
	EventAccountDeleted             = "iam.account.deleted"
	EventRoleCreated                = "iam.role.created"
	EventRoleDeleted                = "iam.role.deleted"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	SubjectID string           `json:"subject_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, subjectID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:   id,
		EventType: eventType,
		SubjectID: subjectID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		// keyed by subject so events of one account stay ordered within a partition
		Key:   sarama.StringEncoder(subjectID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountCreated publishes iam.account.created events.
func (p *EventPublisher) PublishAccountCreated(ctx context.Context, event domain.AccountCreatedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		Username  string    `json:"username"`
		CreatedAt time.Time `json:"created_at"`
		CreatedBy string    `json:"created_by,omitempty"`
	}{
		AccountID: event.AccountID,
		Username:  event.Username,
		CreatedAt: event.CreatedAt.UTC(),
		CreatedBy: event.CreatedBy,
	}

	return p.publish(ctx, event.EventID, EventAccountCreated, event.AccountID, event.CreatedAt, payload)
}

// PublishExternalAccountProvisioned publishes iam.account.external_provisioned events.
func (p *EventPublisher) PublishExternalAccountProvisioned(ctx context.Context, event domain.ExternalAccountProvisionedEvent) error {
	payload := struct {
		AccountID         string    `json:"account_id"`
		Provider          string    `json:"provider"`
		ProviderSubjectID string    `json:"provider_subject_id"`
		ClaimsAdded       int       `json:"claims_added"`
		EmailLinked       bool      `json:"email_linked"`
		PhoneLinked       bool      `json:"phone_linked"`
		ProvisionedAt     time.Time `json:"provisioned_at"`
	}{
		AccountID:         event.AccountID,
		Provider:          event.Provider,
		ProviderSubjectID: event.ProviderSubjectID,
		ClaimsAdded:       event.ClaimsAdded,
		EmailLinked:       event.EmailLinked,
		PhoneLinked:       event.PhoneLinked,
		ProvisionedAt:     event.ProvisionedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAccountExternalProvisioned, event.AccountID, event.ProvisionedAt, payload)
}

// PublishAccountDeleted publishes iam.account.deleted events.
func (p *EventPublisher) PublishAccountDeleted(ctx context.Context, event domain.AccountDeletedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		Username  string    `json:"username"`
		DeletedAt time.Time `json:"deleted_at"`
	}{
		AccountID: event.AccountID,
		Username:  event.Username,
		DeletedAt: event.DeletedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAccountDeleted, event.AccountID, event.DeletedAt, payload)
}

// PublishRoleCreated publishes iam.role.created events.
func (p *EventPublisher) PublishRoleCreated(ctx context.Context, event domain.RoleCreatedEvent) error {
	payload := struct {
		RoleID    string    `json:"role_id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}{
		RoleID:    event.RoleID,
		Name:      event.Name,
		CreatedAt: event.CreatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventRoleCreated, event.RoleID, event.CreatedAt, payload)
}

// PublishRoleDeleted publishes iam.role.deleted events.
func (p *EventPublisher) PublishRoleDeleted(ctx context.Context, event domain.RoleDeletedEvent) error {
	payload := struct {
		RoleID    string    `json:"role_id"`
		Name      string    `json:"name"`
		DeletedAt time.Time `json:"deleted_at"`
	}{
		RoleID:    event.RoleID,
		Name:      event.Name,
		DeletedAt: event.DeletedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventRoleDeleted, event.RoleID, event.DeletedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
