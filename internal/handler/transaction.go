package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/veridia/plot-reservation/internal/model"
	"github.com/veridia/plot-reservation/internal/repository"
)

// LedgerService is the ledger surface the handlers need.
type LedgerService interface {
	Get(ctx context.Context, id uint64, ownerID string) (model.Transaction, error)
	ListForUser(ctx context.Context, userID string, f repository.ListFilter, page, limit int) ([]model.Transaction, model.Page, error)
}

// TransactionHandler serves ledger reads for the authenticated user.
type TransactionHandler struct {
	Ledger LedgerService
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(svc LedgerService) *TransactionHandler {
	if svc == nil {
		panic("nil ledger service passed to NewTransactionHandler")
	}
	return &TransactionHandler{Ledger: svc}
}

// List handles GET /v1/transactions with optional page, limit, status
// and type query parameters.
func (h *TransactionHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	filter := repository.ListFilter{
		Status: model.TransactionStatus(c.QueryParam("status")),
		Type:   model.TransactionType(c.QueryParam("type")),
	}
	if filter.Status != "" && filter.Status != model.TransactionPending && filter.Status != model.TransactionCompleted {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter", "code": codeValidationError})
	}
	if filter.Type != "" && filter.Type != model.TransactionReservation && filter.Type != model.TransactionPurchase {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid type filter", "code": codeValidationError})
	}

	list, meta, err := h.Ledger.ListForUser(c.Request().Context(), userID, filter, page, limit)
	if err != nil {
		return respondError(c, err)
	}
	if list == nil {
		list = []model.Transaction{}
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": list, "pagination": meta})
}

// Get handles GET /v1/transactions/:id.  Transactions of other users
// are reported as not found.
func (h *TransactionHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id", "code": codeValidationError})
	}
	t, err := h.Ledger.Get(c.Request().Context(), id, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
