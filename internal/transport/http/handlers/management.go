package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/identity-adapter/internal/usecase"
)

// ManagementHandler exposes user and role administration.
type ManagementHandler struct {
	management *usecase.ManagementService
}

func NewManagementHandler(management *usecase.ManagementService) *ManagementHandler {
	return &ManagementHandler{management: management}
}

func (h *ManagementHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/metadata", h.GetMetadata)

	users := r.Group("/users")
	users.GET("", h.QueryUsers)
	users.POST("", h.CreateUser)
	users.GET("/:subject", h.GetUser)
	users.DELETE("/:subject", h.DeleteUser)
	users.PUT("/:subject/properties/:type", h.SetUserProperty)
	users.POST("/:subject/claims", h.AddUserClaim)
	users.DELETE("/:subject/claims", h.RemoveUserClaim)

	roles := r.Group("/roles")
	roles.GET("", h.QueryRoles)
	roles.POST("", h.CreateRole)
	roles.GET("/:subject", h.GetRole)
	roles.DELETE("/:subject", h.DeleteRole)
	roles.PUT("/:subject/properties/:type", h.SetRoleProperty)
}

// GetMetadata godoc
// @Summary Describe the user and role properties the administrative surface may edit
// @Tags Admin
// @Produce json
// @Success 200 {object} domain.IdentityManagerMetadata
// @Router /api/v1/admin/metadata [get]
func (h *ManagementHandler) GetMetadata(c *gin.Context) {
	meta, err := h.management.GetMetadata(c.Request.Context())
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to build metadata")
		return
	}
	c.JSON(http.StatusOK, meta)
}

// QueryUsers godoc
// @Summary Page through users whose username contains filter
// @Tags Admin
// @Produce json
// @Param filter query string false "Username substring"
// @Param start query int false "Offset"
// @Param count query int false "Page size, negative for all"
// @Router /api/v1/admin/users [get]
func (h *ManagementHandler) QueryUsers(c *gin.Context) {
	var params QueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid query parameters"))
		return
	}

	result, err := h.management.QueryUsers(c.Request.Context(), params.Filter, params.Start, params.Count)
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to query users")
		return
	}
	respondResult(c, http.StatusOK, result.Result, result.Value)
}

// CreateUser godoc
// @Summary Create a user from create properties
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body PropertiesRequest true "Create properties"
// @Success 201 {object} domain.CreateResult
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} domain.Result
// @Router /api/v1/admin/users [post]
func (h *ManagementHandler) CreateUser(c *gin.Context) {
	var req PropertiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid properties payload"))
		return
	}

	result, err := h.management.CreateUser(c.Request.Context(), req.Properties)
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to create user")
		return
	}
	respondResult(c, http.StatusCreated, result.Result, result.Value)
}

func (h *ManagementHandler) GetUser(c *gin.Context) {
	result, err := h.management.GetUser(c.Request.Context(), c.Param("subject"))
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to load user")
		return
	}
	if result.IsSuccess() && result.Value == nil {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "user not found"))
		return
	}
	respondResult(c, http.StatusOK, result.Result, result.Value)
}

func (h *ManagementHandler) DeleteUser(c *gin.Context) {
	result, err := h.management.DeleteUser(c.Request.Context(), c.Param("subject"))
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to delete user")
		return
	}
	respondResult(c, http.StatusOK, result, nil)
}

// SetUserProperty godoc
// @Summary Update one property of a user
// @Tags Admin
// @Accept json
// @Produce json
// @Param subject path string true "Subject"
// @Param type path string true "Property type"
// @Param request body PropertyRequest true "Value"
// @Success 200 {object} domain.Result
// @Failure 422 {object} domain.Result
// @Router /api/v1/admin/users/{subject}/properties/{type} [put]
func (h *ManagementHandler) SetUserProperty(c *gin.Context) {
	var req PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid property payload"))
		return
	}

	result, err := h.management.SetUserProperty(c.Request.Context(), c.Param("subject"), c.Param("type"), req.Value)
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to update user")
		return
	}
	respondResult(c, http.StatusOK, result, nil)
}

func (h *ManagementHandler) AddUserClaim(c *gin.Context) {
	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid claim payload"))
		return
	}

	result, err := h.management.AddUserClaim(c.Request.Context(), c.Param("subject"), strings.TrimSpace(req.Type), req.Value)
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to add claim")
		return
	}
	respondResult(c, http.StatusOK, result, nil)
}

// RemoveUserClaim takes the claim from the type and value query parameters.
func (h *ManagementHandler) RemoveUserClaim(c *gin.Context) {
	claimType := strings.TrimSpace(c.Query("type"))
	value := c.Query("value")
	if claimType == "" || value == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "type and value are required"))
		return
	}

	result, err := h.management.RemoveUserClaim(c.Request.Context(), c.Param("subject"), claimType, value)
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to remove claim")
		return
	}
	respondResult(c, http.StatusOK, result, nil)
}

func (h *ManagementHandler) QueryRoles(c *gin.Context) {
	var params QueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid query parameters"))
		return
	}

	result, err := h.management.QueryRoles(c.Request.Context(), params.Filter, params.Start, params.Count)
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to query roles")
		return
	}
	respondResult(c, http.StatusOK, result.Result, result.Value)
}

func (h *ManagementHandler) CreateRole(c *gin.Context) {
	var req PropertiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid properties payload"))
		return
	}

	result, err := h.management.CreateRole(c.Request.Context(), req.Properties)
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to create role")
		return
	}
	respondResult(c, http.StatusCreated, result.Result, result.Value)
}

func (h *ManagementHandler) GetRole(c *gin.Context) {
	result, err := h.management.GetRole(c.Request.Context(), c.Param("subject"))
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to load role")
		return
	}
	if result.IsSuccess() && result.Value == nil {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "role not found"))
		return
	}
	respondResult(c, http.StatusOK, result.Result, result.Value)
}

func (h *ManagementHandler) DeleteRole(c *gin.Context) {
	result, err := h.management.DeleteRole(c.Request.Context(), c.Param("subject"))
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to delete role")
		return
	}
	respondResult(c, http.StatusOK, result, nil)
}

func (h *ManagementHandler) SetRoleProperty(c *gin.Context) {
	var req PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid property payload"))
		return
	}

	result, err := h.management.SetRoleProperty(c.Request.Context(), c.Param("subject"), c.Param("type"), req.Value)
	if err != nil {
		RespondWithMappedError(c, err, managementErrorCases, http.StatusInternalServerError, "failed to update role")
		return
	}
	respondResult(c, http.StatusOK, result, nil)
}
