package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	_ = c.Error(err)

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// managementErrorCases covers the hard errors of the administrative surface.
var managementErrorCases = []ErrorCase{
	{Err: usecase.ErrSubjectRequired, Status: http.StatusBadRequest, Message: "subject is required"},
	{Err: usecase.ErrMissingProperty, Status: http.StatusBadRequest, Message: "required property missing"},
	{Err: usecase.ErrRolesNotSupported, Status: http.StatusNotImplemented, Message: "roles are not supported"},
	{Err: usecase.ErrClaimsNotSupported, Status: http.StatusNotImplemented, Message: "claims are not supported"},
	{Err: usecase.ErrQueryNotSupported, Status: http.StatusNotImplemented, Message: "query is not supported"},
	{Err: domain.ErrUnknownProperty, Status: http.StatusBadRequest, Message: "invalid property type"},
}

// respondResult writes a soft outcome: 200 on success, 422 with the messages otherwise.
func respondResult(c *gin.Context, successStatus int, result domain.Result, body any) {
	if !result.IsSuccess() {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	if body == nil {
		c.JSON(successStatus, result)
		return
	}
	c.JSON(successStatus, body)
}
