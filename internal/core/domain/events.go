package domain

import "time"

// AccountCreatedEvent represents the payload for iam.account.created messages.
type AccountCreatedEvent struct {
	EventID   string
	AccountID string
	Username  string
	CreatedAt time.Time
	CreatedBy string
}

// ExternalAccountProvisionedEvent represents the payload for iam.account.external_provisioned messages.
type ExternalAccountProvisionedEvent struct {
	EventID           string
	AccountID         string
	Provider          string
	ProviderSubjectID string
	ClaimsAdded       int
	EmailLinked       bool
	PhoneLinked       bool
	ProvisionedAt     time.Time
}

// AccountDeletedEvent represents the payload for iam.account.deleted messages.
type AccountDeletedEvent struct {
	EventID   string
	AccountID string
	Username  string
	DeletedAt time.Time
}

// RoleCreatedEvent represents the payload for iam.role.created messages.
type RoleCreatedEvent struct {
	EventID   string
	RoleID    string
	Name      string
	CreatedAt time.Time
}

// RoleDeletedEvent represents the payload for iam.role.deleted messages.
type RoleDeletedEvent struct {
	EventID   string
	RoleID    string
	Name      string
	DeletedAt time.Time
}
