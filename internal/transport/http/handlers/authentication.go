package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/usecase"
)

const invalidCredentialsMessage = "invalid username or password"

// AuthHandler exposes the authentication engine to the token server.
type AuthHandler struct {
	auth *usecase.AuthService
}

func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/authenticate/local", h.AuthenticateLocal)
	r.POST("/authenticate/external", h.AuthenticateExternal)
	r.POST("/active", h.IsActive)
	r.GET("/profile/:subject", h.GetProfile)
}

// AuthenticateLocal godoc
// @Summary Verify username and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LocalAuthenticateRequest true "Credentials"
// @Success 200 {object} domain.AuthenticateResult
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/authenticate/local [post]
func (h *AuthHandler) AuthenticateLocal(c *gin.Context) {
	var req LocalAuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid credentials payload"))
		return
	}

	result, err := h.auth.AuthenticateLocal(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "authentication failed")
		return
	}

	h.respondAuthenticate(c, result)
}

// AuthenticateExternal godoc
// @Summary Sign in with a federated identity, provisioning an account on first use
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body ExternalAuthenticateRequest true "External assertion"
// @Success 200 {object} domain.AuthenticateResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/authenticate/external [post]
func (h *AuthHandler) AuthenticateExternal(c *gin.Context) {
	var req ExternalAuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid external identity payload"))
		return
	}

	identity := &domain.ExternalIdentity{
		Provider:          strings.TrimSpace(req.Provider),
		ProviderSubjectID: strings.TrimSpace(req.ProviderSubjectID),
		Claims:            claimsFromPayload(req.Claims),
	}

	result, err := h.auth.AuthenticateExternal(c.Request.Context(), identity)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrExternalIdentityRequired, Status: http.StatusBadRequest, Message: "provider and provider_subject_id are required"},
			{Err: usecase.ErrExternalLoginsNotSupported, Status: http.StatusNotImplemented, Message: "external logins are not supported"},
		}, http.StatusInternalServerError, "authentication failed")
		return
	}

	h.respondAuthenticate(c, result)
}

func (h *AuthHandler) respondAuthenticate(c *gin.Context, result *domain.AuthenticateResult) {
	switch {
	case result == nil:
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, invalidCredentialsMessage))
	case result.IsError():
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, result.Error))
	default:
		c.JSON(http.StatusOK, result)
	}
}

// IsActive godoc
// @Summary Check that a previously issued principal is still valid
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body IsActiveRequest true "Principal"
// @Success 200 {object} IsActiveResponse
// @Router /api/v1/active [post]
func (h *AuthHandler) IsActive(c *gin.Context) {
	var req IsActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid principal payload"))
		return
	}

	principal := &domain.Principal{
		Subject: strings.TrimSpace(req.Subject),
		Claims:  claimsFromPayload(req.Claims),
	}

	active, err := h.auth.IsActive(c.Request.Context(), principal)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSubjectRequired, Status: http.StatusBadRequest, Message: "subject is required"},
		}, http.StatusInternalServerError, "failed to check principal")
		return
	}

	c.JSON(http.StatusOK, IsActiveResponse{Subject: principal.Subject, Active: active})
}

// GetProfile godoc
// @Summary Return the claims of a subject
// @Tags Authentication
// @Produce json
// @Param subject path string true "Subject"
// @Param types query string false "Comma separated claim types"
// @Success 200 {object} ProfileResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/profile/{subject} [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	subject := strings.TrimSpace(c.Param("subject"))

	claims, err := h.auth.GetProfileData(c.Request.Context(), subject, requestedClaimTypes(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSubjectRequired, Status: http.StatusBadRequest, Message: "subject is required"},
			{Err: usecase.ErrInvalidSubject, Status: http.StatusNotFound, Message: "subject not found"},
		}, http.StatusInternalServerError, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{Subject: subject, Claims: claims})
}

// requestedClaimTypes accepts ?types=a,b as well as repeated ?types= parameters.
func requestedClaimTypes(c *gin.Context) []string {
	var types []string
	for _, raw := range c.QueryArray("types") {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}
	return types
}
