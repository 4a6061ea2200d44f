// Package controller holds what the HTTP handler packages share: turning engine
// errors into responses and reading path parameters.
package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"AOTF-backend/internal/matching"
	"AOTF-backend/internal/utilities"
)

// StatusFor maps an engine error kind to its HTTP status
func StatusFor(kind matching.Kind) int {
	switch kind {
	case matching.KindNotFound:
		return http.StatusNotFound
	case matching.KindInvalidTransition:
		return http.StatusConflict
	case matching.KindValidation:
		return http.StatusBadRequest
	case matching.KindPersistenceConflict:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// RespondError writes err as an ErrorResponse. Errors that are not engine errors are
// attached to the context for the request logger and answered with a generic 500.
func RespondError(c *gin.Context, err error) {
	var engineErr *matching.Error
	if !errors.As(err, &engineErr) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{
			Error: "Internal server error",
		})
		return
	}

	if engineErr.Kind == matching.KindPersistenceConflict {
		_ = c.Error(err)
		c.Header("Retry-After", "1")
	}
	c.JSON(StatusFor(engineErr.Kind), utilities.ErrorResponse{
		Error:         engineErr.Error(),
		Code:          string(engineErr.Kind),
		CurrentStatus: engineErr.CurrentStatus,
	})
}

// ParseID reads a positive integer path parameter and answers 400 when it is not one.
func ParseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: "Invalid " + name + ": must be a positive integer",
			Code:  string(matching.KindValidation),
		})
		return 0, false
	}
	return uint(id), true
}

// BadRequest answers 400 with a validation_error code
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
		Error: message,
		Code:  string(matching.KindValidation),
	})
}

// Forbidden answers 403
func Forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, utilities.ErrorResponse{
		Error: "User doesn't have permission to access",
	})
}
