package api

import (
	"encoding/json"
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"oppwapay/internal/models"
	"oppwapay/internal/payment"
	"oppwapay/internal/pkg/utils"
)

// PaymentHandler handles all payment API actions.
type PaymentHandler struct {
	repos     *Repos
	registry  *payment.Registry
	publicURL string
	logger    *zap.Logger
}

func NewPaymentHandler(repos *Repos, registry *payment.Registry, publicURL string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{repos: repos, registry: registry, publicURL: publicURL, logger: logger}
}

// Handle routes payment API requests.
// POST /api/payments
func (h *PaymentHandler) Handle(c echo.Context) error {
	action, raw, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "create":
		var req models.CreatePaymentRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return errorResponse(c, "Invalid request body")
		}
		return h.createPayment(c, req)
	case "payment":
		var req models.PaymentDetailRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return errorResponse(c, "Invalid request body")
		}
		return h.getPayment(c, req)
	case "payments":
		var req models.ListPaymentsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return errorResponse(c, "Invalid request body")
		}
		return h.listPayments(c, req)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

// createPayment starts a payment attempt and hands back the pay URL the
// buyer is sent to.
func (h *PaymentHandler) createPayment(c echo.Context, req models.CreatePaymentRequest) error {
	ctx := c.Request().Context()
	if req.Event == "" || req.Order == "" || req.Provider == "" {
		return errorResponse(c, "event, order and provider are required")
	}

	order, err := h.repos.Orders.FindByEventAndCode(ctx, req.Event, req.Order)
	if err != nil {
		return errorResponse(c, "Order not found")
	}
	if order.IsPaid() {
		return errorResponse(c, "Order is already paid")
	}

	prov, ok := h.registry.Provider(req.Provider)
	if !ok {
		return errorResponse(c, "Unknown provider: "+req.Provider)
	}
	cfg, err := h.repos.Settings.ProviderConfig(ctx, order.EventID, prov.Brand.Identifier)
	if err != nil {
		h.logger.Error("Failed to load provider settings", zap.String("provider", req.Provider), zap.Error(err))
		return errorResponse(c, "Failed to load provider settings")
	}
	if !prov.IsUsable(cfg, order.Testmode) {
		return errorResponse(c, payment.MsgProviderDisabled)
	}

	amount := order.Total
	if req.Amount != "" {
		amount, err = utils.ParseAmount(req.Amount)
		if err != nil {
			return errorResponse(c, "Invalid amount")
		}
	}
	if amount <= 0 {
		return errorResponse(c, "Amount must be positive")
	}

	currency := ""
	if order.Event != nil {
		currency = order.Event.Currency
	}
	p := &models.OrderPayment{
		OrderID:  order.ID,
		Amount:   amount,
		Currency: currency,
		Provider: prov.Identifier(),
		State:    models.PaymentStateCreated,
	}
	if err := h.repos.Payments.Create(ctx, p); err != nil {
		h.logger.Error("Failed to create payment", zap.Uint("order_id", order.ID), zap.Error(err))
		return errorResponse(c, "Failed to create payment")
	}

	h.logger.Info("Payment created",
		zap.Uint("payment_id", p.ID),
		zap.String("order", order.Code),
		zap.String("provider", p.Provider))

	payURL := h.publicURL + payment.CallbackPath(req.Event, prov.Brand.Identifier, "pay", order.Code, order.Secret, p.ID)
	return successResponse(c, "Successful", map[string]interface{}{
		"payment": p,
		"pay_url": payURL,
	})
}

// getPayment returns the payment together with the stored gateway document.
// Payments that are still open also carry the callback hash.
func (h *PaymentHandler) getPayment(c echo.Context, req models.PaymentDetailRequest) error {
	if req.PaymentID == 0 {
		return errorResponse(c, "payment_id is required")
	}

	p, err := h.repos.Payments.FindByID(c.Request().Context(), req.PaymentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Error("Failed to load payment", zap.Uint("payment_id", req.PaymentID), zap.Error(err))
		}
		return errorResponse(c, "Payment not found")
	}

	obj := map[string]interface{}{
		"payment": p,
		"info":    payment.PayloadFromInfo(p.Info),
	}
	if prov, ok := h.registry.Provider(p.Provider); ok {
		obj["provider_name"] = prov.Name()
	}
	if p.IsActionable() && p.Order != nil {
		obj["payment_hash"] = payment.ComputeAccessToken(p.Order.Secret)
	}
	return successResponse(c, "Successful", obj)
}

func (h *PaymentHandler) listPayments(c echo.Context, req models.ListPaymentsRequest) error {
	ctx := c.Request().Context()
	limit, page := normalizePaging(req.Limit, req.Page)

	event, err := h.repos.Orders.FindEventBySlug(ctx, req.Event)
	if err != nil {
		return errorResponse(c, "Event not found")
	}

	payments, total, err := h.repos.Payments.FindAll(ctx, event.ID, req.State, limit, page)
	if err != nil {
		h.logger.Error("Failed to list payments", zap.Error(err))
		return errorResponse(c, "Failed to retrieve payments")
	}

	return successResponse(c, "Successful", paginatedNamedResponse("payments", payments, total, page, limit))
}
