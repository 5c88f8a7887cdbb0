// Package handler defines the HTTP handlers for the API.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/veridia/plot-reservation/internal/inventory"
	"github.com/veridia/plot-reservation/internal/ledger"
	"github.com/veridia/plot-reservation/internal/repository"
)

// Stable error codes exposed to clients.
const (
	codeValidationError = "validation_error"
	codeConflict        = "conflict"
	codeNotFound        = "not_found"
	codeInternalError   = "internal_error"
)

// respondError maps service errors onto the API's error taxonomy:
// validation failures are 400, state conflicts 409, missing resources
// 404 and everything else a generic 500.  The body always carries a
// stable machine-readable code next to the human-readable message.
func respondError(c echo.Context, err error) error {
	var verr ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Message, "code": codeValidationError})
	case errors.Is(err, repository.ErrUnknownLocation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown location", "code": codeValidationError})
	case errors.Is(err, inventory.ErrInvalidTransition):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status transition", "code": codeValidationError})
	case errors.Is(err, repository.ErrStatusConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "plot is not available", "code": codeConflict})
	case errors.Is(err, repository.ErrTransactionCompleted):
		return c.JSON(http.StatusConflict, echo.Map{"error": "transaction already completed", "code": codeConflict})
	case errors.Is(err, repository.ErrPlotNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "plot not found", "code": codeNotFound})
	case errors.Is(err, repository.ErrTransactionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found", "code": codeNotFound})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": codeInternalError})
	}
}

// getUserID extracts the authenticated user id placed in the context
// by the identity middleware.
func getUserID(c echo.Context) (string, error) {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v, nil
	}
	return "", errors.New("no authenticated user in context")
}
