package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/veridia/plot-reservation/internal/booking"
	"github.com/veridia/plot-reservation/internal/model"
)

// BookingService is the orchestrator surface the handlers need.
type BookingService interface {
	Reserve(ctx context.Context, in booking.ReserveInput) (booking.Result, error)
	Purchase(ctx context.Context, in booking.PurchaseInput) (booking.Result, error)
	VerifyPayment(ctx context.Context, transactionID uint64, paymentRef string, ownerID string) (booking.VerifyResult, error)
}

// BookingHandler serves the reserve, buy and verify-payment commands.
type BookingHandler struct {
	Booking BookingService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc BookingService) *BookingHandler {
	if svc == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Booking: svc}
}

type customerBody struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	NationalID string `json:"national_id"`
}

func (b customerBody) toModel() model.Customer {
	return model.Customer{Name: b.Name, Email: b.Email, Phone: b.Phone, NationalID: b.NationalID}
}

func (b customerBody) validate() string {
	if b.Name == "" {
		return "customer name is required"
	}
	if b.Email == "" {
		return "customer email is required"
	}
	if b.Phone == "" {
		return "customer phone is required"
	}
	return ""
}

// Reserve handles POST /v1/plots/:id/reserve.
func (h *BookingHandler) Reserve(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid plot id", "code": codeValidationError})
	}
	var body struct {
		Location      string       `json:"location"`
		DepositAmount int64        `json:"depositAmount"`
		PaymentMethod string       `json:"paymentMethod"`
		Customer      customerBody `json:"customer"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": codeValidationError})
	}
	if body.Location == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "location is required", "code": codeValidationError})
	}
	if body.DepositAmount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "depositAmount must be positive", "code": codeValidationError})
	}
	if msg := body.Customer.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": codeValidationError})
	}

	res, err := h.Booking.Reserve(c.Request().Context(), booking.ReserveInput{
		PlotID:        id,
		Location:      body.Location,
		DepositAmount: body.DepositAmount,
		PaymentMethod: body.PaymentMethod,
		Customer:      body.Customer.toModel(),
		UserID:        userID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Buy handles POST /v1/plots/:id/buy.
func (h *BookingHandler) Buy(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid plot id", "code": codeValidationError})
	}
	var body struct {
		Location      string       `json:"location"`
		Amount        int64        `json:"amount"`
		PaymentMethod string       `json:"paymentMethod"`
		Customer      customerBody `json:"customer"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": codeValidationError})
	}
	if body.Location == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "location is required", "code": codeValidationError})
	}
	if body.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive", "code": codeValidationError})
	}
	if msg := body.Customer.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": codeValidationError})
	}

	res, err := h.Booking.Purchase(c.Request().Context(), booking.PurchaseInput{
		PlotID:        id,
		Location:      body.Location,
		Amount:        body.Amount,
		PaymentMethod: body.PaymentMethod,
		Customer:      body.Customer.toModel(),
		UserID:        userID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// VerifyPayment handles POST /v1/transactions/:id/verify-payment.
func (h *BookingHandler) VerifyPayment(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id", "code": codeValidationError})
	}
	var body struct {
		PaymentRef string `json:"paymentRef"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": codeValidationError})
	}
	if body.PaymentRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "paymentRef is required", "code": codeValidationError})
	}

	res, err := h.Booking.VerifyPayment(c.Request().Context(), id, body.PaymentRef, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
