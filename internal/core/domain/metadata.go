package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownProperty indicates a property type that no descriptor in the list handles.
// It signals a configuration bug and is never produced for validated input.
var ErrUnknownProperty = errors.New("invalid property type")

// PropertyDataType tells the administrative surface how to render and validate a value.
type PropertyDataType string

const (
	PropertyDataTypeString   PropertyDataType = "string"
	PropertyDataTypePassword PropertyDataType = "password"
	PropertyDataTypeEmail    PropertyDataType = "email"
	PropertyDataTypeURL      PropertyDataType = "url"
	PropertyDataTypeBoolean  PropertyDataType = "boolean"
	PropertyDataTypeNumber   PropertyDataType = "number"
)

// Property types shared by the standard schema.
const (
	PropertyUsername       = "username"
	PropertyPassword       = "password"
	PropertyEmail          = "email"
	PropertyPhone          = "phone"
	PropertyTwoFactor      = "two_factor"
	PropertyLockoutEnabled = "locked_enabled"
	PropertyLockedOut      = "locked"
	PropertyGivenName      = "given_name"
	PropertyFamilyName     = "family_name"
	PropertyName           = "name"
	PropertyDescription    = "description"
)

// PropertyGetter reads a property value from an entity as a string.
type PropertyGetter[E any] func(ctx context.Context, entity *E) (string, error)

// PropertySetter writes a string value into an entity. Store rejections come back as a failed
// Result; a non-nil error means the operation could not be carried out at all.
type PropertySetter[E any] func(ctx context.Context, entity *E, value string) (Result, error)

// PropertyMetadata describes one named, typed accessor pair over an entity.
type PropertyMetadata[E any] struct {
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	DataType PropertyDataType  `json:"data_type"`
	Required bool              `json:"required"`
	Get      PropertyGetter[E] `json:"-"`
	Set      PropertySetter[E] `json:"-"`
}

// PropertyList is an ordered set of descriptors with unique types.
type PropertyList[E any] []PropertyMetadata[E]

// Find returns the descriptor registered under propType.
func (l PropertyList[E]) Find(propType string) (PropertyMetadata[E], bool) {
	for _, p := range l {
		if p.Type == propType {
			return p, true
		}
	}
	return PropertyMetadata[E]{}, false
}

// Validate rejects lists with blank or duplicated types.
func (l PropertyList[E]) Validate() error {
	seen := make(map[string]struct{}, len(l))
	for _, p := range l {
		if p.Type == "" {
			return fmt.Errorf("property type is required")
		}
		if _, dup := seen[p.Type]; dup {
			return fmt.Errorf("duplicate property type %q", p.Type)
		}
		seen[p.Type] = struct{}{}
	}
	return nil
}

// PropertyValue is the wire-level unit exchanged with the administrative surface.
type PropertyValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// UserMetadata describes what the administrative surface may do with accounts.
type UserMetadata struct {
	SupportsCreate   bool                  `json:"supports_create"`
	SupportsDelete   bool                  `json:"supports_delete"`
	SupportsClaims   bool                  `json:"supports_claims"`
	CreateProperties PropertyList[Account] `json:"create_properties"`
	UpdateProperties PropertyList[Account] `json:"update_properties"`
}

// RoleMetadata describes what the administrative surface may do with roles.
type RoleMetadata struct {
	SupportsCreate   bool               `json:"supports_create"`
	SupportsDelete   bool               `json:"supports_delete"`
	RoleClaimType    string             `json:"role_claim_type"`
	CreateProperties PropertyList[Role] `json:"create_properties"`
	UpdateProperties PropertyList[Role] `json:"update_properties"`
}

// IdentityManagerMetadata is the full declarative schema of the administrative surface.
type IdentityManagerMetadata struct {
	UserMetadata UserMetadata `json:"user_metadata"`
	RoleMetadata RoleMetadata `json:"role_metadata"`
}

// Validate checks every property list for uniqueness.
func (m IdentityManagerMetadata) Validate() error {
	if err := m.UserMetadata.CreateProperties.Validate(); err != nil {
		return fmt.Errorf("user create properties: %w", err)
	}
	if err := m.UserMetadata.UpdateProperties.Validate(); err != nil {
		return fmt.Errorf("user update properties: %w", err)
	}
	if err := m.RoleMetadata.CreateProperties.Validate(); err != nil {
		return fmt.Errorf("role create properties: %w", err)
	}
	if err := m.RoleMetadata.UpdateProperties.Validate(); err != nil {
		return fmt.Errorf("role update properties: %w", err)
	}
	return nil
}

// CreateResult carries the identifier of a newly created entity.
type CreateResult struct {
	Subject string `json:"subject"`
}

// UserSummary is one row of a user query.
type UserSummary struct {
	Subject  string `json:"subject"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// UserDetail is the full administrative view of an account.
type UserDetail struct {
	Subject    string          `json:"subject"`
	Username   string          `json:"username"`
	Name       string          `json:"name,omitempty"`
	Properties []PropertyValue `json:"properties"`
	Claims     []Claim         `json:"claims,omitempty"`
}

// RoleSummary is one row of a role query.
type RoleSummary struct {
	Subject     string `json:"subject"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RoleDetail is the full administrative view of a role.
type RoleDetail struct {
	Subject     string          `json:"subject"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Properties  []PropertyValue `json:"properties"`
}

// Query selects a page of accounts or roles by substring filter, ordered by name.
// A negative Count means unbounded.
type Query struct {
	Filter string
	Start  int
	Count  int
}

// QueryResult is a page of items with the total matching before paging.
type QueryResult[T any] struct {
	Items  []T    `json:"items"`
	Total  int    `json:"total"`
	Start  int    `json:"start"`
	Count  int    `json:"count"`
	Filter string `json:"filter,omitempty"`
}
