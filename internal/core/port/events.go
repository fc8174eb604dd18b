package port

import (
	"context"

	"github.com/arklim/identity-adapter/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishAccountCreated(ctx context.Context, event domain.AccountCreatedEvent) error
	PublishExternalAccountProvisioned(ctx context.Context, event domain.ExternalAccountProvisionedEvent) error
	PublishAccountDeleted(ctx context.Context, event domain.AccountDeletedEvent) error
	PublishRoleCreated(ctx context.Context, event domain.RoleCreatedEvent) error
	PublishRoleDeleted(ctx context.Context, event domain.RoleDeletedEvent) error
}
