package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/identity-adapter/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// ClaimPayload is the wire form of a claim.
type ClaimPayload struct {
	Type      string `json:"type" binding:"required"`
	Value     string `json:"value"`
	ValueType string `json:"value_type,omitempty"`
}

func (p ClaimPayload) toDomain() domain.Claim {
	return domain.Claim{
		Type:      strings.TrimSpace(p.Type),
		Value:     p.Value,
		ValueType: strings.TrimSpace(p.ValueType),
	}
}

func claimsFromPayload(payload []ClaimPayload) []domain.Claim {
	claims := make([]domain.Claim, 0, len(payload))
	for _, p := range payload {
		claims = append(claims, p.toDomain())
	}
	return claims
}

// LocalAuthenticateRequest carries username and password credentials.
type LocalAuthenticateRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ExternalAuthenticateRequest carries an assertion from a federated provider.
type ExternalAuthenticateRequest struct {
	Provider          string         `json:"provider" binding:"required"`
	ProviderSubjectID string         `json:"provider_subject_id" binding:"required"`
	Claims            []ClaimPayload `json:"claims" binding:"dive"`
}

// IsActiveRequest identifies an issued principal.
type IsActiveRequest struct {
	Subject string         `json:"subject" binding:"required"`
	Claims  []ClaimPayload `json:"claims" binding:"dive"`
}

// IsActiveResponse reports whether the principal may keep using its session.
type IsActiveResponse struct {
	Subject string `json:"subject"`
	Active  bool   `json:"active"`
}

// ProfileResponse lists the claims of a subject.
type ProfileResponse struct {
	Subject string         `json:"subject"`
	Claims  []domain.Claim `json:"claims"`
}

// PropertiesRequest carries property values for entity creation.
type PropertiesRequest struct {
	Properties []domain.PropertyValue `json:"properties" binding:"required"`
}

// PropertyRequest carries a single property value.
type PropertyRequest struct {
	Value string `json:"value"`
}

// ClaimRequest names a claim to add or remove.
type ClaimRequest struct {
	Type  string `json:"type" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// QueryParams binds paging parameters of query endpoints.
type QueryParams struct {
	Filter string `form:"filter"`
	Start  int    `form:"start"`
	Count  int    `form:"count,default=-1"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness check results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
