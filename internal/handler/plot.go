package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/veridia/plot-reservation/internal/inventory"
	"github.com/veridia/plot-reservation/internal/model"
)

var errInvalidID = errors.New("invalid id")

// InventoryService is the plot inventory surface the handlers need.
type InventoryService interface {
	GetPlot(ctx context.Context, location string, id uint64) (model.Plot, error)
	ListByLocation(ctx context.Context, location string) ([]model.Plot, error)
	LocationStats(ctx context.Context, location string) (model.LocationStats, error)
	UpdateStatus(ctx context.Context, in inventory.UpdateStatusInput) (model.Plot, error)
}

// PlotHandler serves plot reads and the internal status RPC.
type PlotHandler struct {
	Inventory InventoryService
}

// NewPlotHandler constructs a PlotHandler.
func NewPlotHandler(inv InventoryService) *PlotHandler {
	if inv == nil {
		panic("nil inventory service passed to NewPlotHandler")
	}
	return &PlotHandler{Inventory: inv}
}

// ListPlots handles GET /v1/locations/:location/plots.  The route is
// public, so plots are serialized without the buyer snapshot and
// payment fields.
func (h *PlotHandler) ListPlots(c echo.Context) error {
	plots, err := h.Inventory.ListByLocation(c.Request().Context(), c.Param("location"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"plots": model.PublicPlots(plots)})
}

// GetPlot handles GET /v1/locations/:location/plots/:id.  Public
// route; same redaction as ListPlots.
func (h *PlotHandler) GetPlot(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid plot id", "code": codeValidationError})
	}
	plot, err := h.Inventory.GetPlot(c.Request().Context(), c.Param("location"), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, plot.Public())
}

// LocationStats handles GET /v1/locations/:location/stats.
func (h *PlotHandler) LocationStats(c echo.Context) error {
	stats, err := h.Inventory.LocationStats(c.Request().Context(), c.Param("location"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// UpdateStatus handles PUT /internal/v1/plots/:id/status, the status
// RPC consumed by a remote orchestrator or the outbox relay.  The
// response mirrors the store's error taxonomy so the inventory client
// can translate it back.
func (h *PlotHandler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid plot id", "code": codeValidationError})
	}
	var req inventory.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": codeValidationError})
	}
	plot, err := h.Inventory.UpdateStatus(c.Request().Context(), inventory.UpdateStatusInput{
		PlotID:          id,
		Location:        req.Location,
		Status:          req.Status,
		ExpectedStatus:  req.ExpectedStatus,
		Customer:        req.CustomerData,
		PaidAmount:      req.PaidAmount,
		TransactionID:   req.TransactionID,
		OwnerNationalID: req.OwnerNationalID,
		ClaimedAt:       req.ClaimedAt,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, plot)
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return id, nil
}
