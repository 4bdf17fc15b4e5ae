package api

import (
	"encoding/json"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"oppwapay/internal/models"
	"oppwapay/internal/payment"
	"oppwapay/internal/pkg/utils"
)

// RefundHandler handles refund API actions.
type RefundHandler struct {
	repos    *Repos
	adapter  *payment.Adapter
	registry *payment.Registry
	logger   *zap.Logger
}

func NewRefundHandler(repos *Repos, adapter *payment.Adapter, registry *payment.Registry, logger *zap.Logger) *RefundHandler {
	return &RefundHandler{repos: repos, adapter: adapter, registry: registry, logger: logger}
}

// Handle routes refund API requests.
// POST /api/refunds
func (h *RefundHandler) Handle(c echo.Context) error {
	action, raw, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "refund":
		var req models.CreateRefundRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return errorResponse(c, "Invalid request body")
		}
		return h.createRefund(c, req)
	case "refunds":
		var req models.ListRefundsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return errorResponse(c, "Invalid request body")
		}
		return h.listRefunds(c, req)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

// createRefund records a refund of (part of) a confirmed payment and sends it
// to the gateway.
func (h *RefundHandler) createRefund(c echo.Context, req models.CreateRefundRequest) error {
	ctx := c.Request().Context()
	if req.PaymentID == 0 {
		return errorResponse(c, "payment_id is required")
	}

	p, err := h.repos.Payments.FindByID(ctx, req.PaymentID)
	if err != nil {
		return errorResponse(c, "Payment not found")
	}
	if p.State != models.PaymentStateConfirmed {
		return errorResponse(c, "Only confirmed payments can be refunded")
	}
	if p.Order == nil {
		return errorResponse(c, "Payment not found")
	}

	prov, ok := h.registry.Provider(p.Provider)
	if !ok || !prov.RefundSupported() {
		return errorResponse(c, "Refunds are not supported for this payment")
	}

	amount, err := utils.ParseAmount(req.Amount)
	if err != nil || amount <= 0 {
		return errorResponse(c, "Invalid amount")
	}
	outstanding, err := h.repos.Refunds.SumOutstanding(ctx, p.ID)
	if err != nil {
		h.logger.Error("Failed to sum refunds", zap.Uint("payment_id", p.ID), zap.Error(err))
		return errorResponse(c, "Failed to create refund")
	}
	available := p.Amount - outstanding
	if amount > available {
		return errorResponse(c, "Amount exceeds refundable amount of "+utils.FormatAmount(available))
	}
	if amount < p.Amount && !prov.PartialRefundSupported() {
		return errorResponse(c, "Partial refunds are not supported for this payment")
	}

	cfg, err := h.repos.Settings.ProviderConfig(ctx, p.Order.EventID, prov.Brand.Identifier)
	if err != nil {
		h.logger.Error("Failed to load provider settings", zap.String("provider", p.Provider), zap.Error(err))
		return errorResponse(c, "Failed to load provider settings")
	}

	refund := &models.OrderRefund{
		PaymentID: p.ID,
		Amount:    amount,
		State:     models.RefundStateCreated,
	}
	if err := h.repos.Refunds.Create(ctx, refund); err != nil {
		h.logger.Error("Failed to create refund", zap.Uint("payment_id", p.ID), zap.Error(err))
		return errorResponse(c, "Failed to create refund")
	}
	refund.Payment = p

	if err := h.adapter.RequestRefund(ctx, refund, prov, cfg); err != nil {
		h.logger.Error("Refund request failed",
			zap.Uint("refund_id", refund.ID),
			zap.Uint("payment_id", p.ID),
			zap.Error(err))
		return errorResponse(c, payment.UserMessage(err, payment.MsgServiceUnavailable))
	}

	refund.Payment = nil
	return successResponse(c, "Successful", refund)
}

func (h *RefundHandler) listRefunds(c echo.Context, req models.ListRefundsRequest) error {
	if req.PaymentID == 0 {
		return errorResponse(c, "payment_id is required")
	}
	refunds, err := h.repos.Refunds.FindByPayment(c.Request().Context(), req.PaymentID)
	if err != nil {
		h.logger.Error("Failed to list refunds", zap.Uint("payment_id", req.PaymentID), zap.Error(err))
		return errorResponse(c, "Failed to retrieve refunds")
	}
	return successResponse(c, "Successful", map[string]interface{}{"refunds": refunds})
}
