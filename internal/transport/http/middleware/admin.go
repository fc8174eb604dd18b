package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ActorKey is the gin context key under which the token middleware records the caller.
const ActorKey = "actor"

// Callers recognised by the static token middleware.
const (
	ActorAdmin    = "admin"
	ActorProtocol = "protocol"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAdminToken guards the administrative surface with a static bearer token.
func RequireAdminToken(token string) gin.HandlerFunc {
	return requireStaticToken(token, ActorAdmin)
}

// RequireProtocolToken guards the authentication routes. Only the protocol front end,
// which has already verified federated assertions, holds this token.
func RequireProtocolToken(token string) gin.HandlerFunc {
	return requireStaticToken(token, ActorProtocol)
}

func requireStaticToken(token, actor string) gin.HandlerFunc {
	expected := []byte(token)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		presented := []byte(strings.TrimSpace(parts[1]))
		if len(expected) == 0 || subtle.ConstantTimeCompare(presented, expected) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "invalid "+actor+" token"))
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}
