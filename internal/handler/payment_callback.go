package handler

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"oppwapay/internal/models"
	"oppwapay/internal/payment"
	"oppwapay/internal/pkg/utils"
)

const (
	msgUnknownOrder   = "Unknown order"
	msgUnknownPayment = "Unknown payment"
)

// OrderStore resolves orders from callback paths.
type OrderStore interface {
	FindByEventAndCode(ctx context.Context, eventSlug, code string) (*models.Order, error)
}

// PaymentStore resolves a payment of an order.
type PaymentStore interface {
	FindForOrder(ctx context.Context, order *models.Order, id uint) (*models.OrderPayment, error)
}

// SettingsStore reads typed provider settings.
type SettingsStore interface {
	ProviderConfig(ctx context.Context, eventID uint, brand string) (payment.ProviderConfig, error)
}

// CallbackRepos bundles the stores the callbacks read from.
type CallbackRepos struct {
	Orders   OrderStore
	Payments PaymentStore
	Settings SettingsStore
}

// PaymentCallbackHandler serves the pay, return and notify routes of each brand.
type PaymentCallbackHandler struct {
	repos     *CallbackRepos
	adapter   *payment.Adapter
	registry  *payment.Registry
	publicURL string
	logger    *zap.Logger
}

// NewPaymentCallbackHandler creates a new payment callback handler.
func NewPaymentCallbackHandler(
	repos *CallbackRepos,
	adapter *payment.Adapter,
	registry *payment.Registry,
	publicURL string,
	logger *zap.Logger,
) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{
		repos:     repos,
		adapter:   adapter,
		registry:  registry,
		publicURL: publicURL,
		logger:    logger,
	}
}

// callbackTarget is what a verified callback path resolves to.
type callbackTarget struct {
	eventSlug string
	order     *models.Order
	payment   *models.OrderPayment
	provider  payment.Provider
}

// resolve loads the order and payment named by the path and checks the
// access token. Unknown orders and bad tokens answer the same 404.
func (h *PaymentCallbackHandler) resolve(c echo.Context, brand *payment.Brand) (*callbackTarget, error) {
	ctx := c.Request().Context()
	eventSlug := c.Param("event")
	hash := strings.ToLower(c.Param("hash"))

	order, err := h.repos.Orders.FindByEventAndCode(ctx, eventSlug, c.Param("order"))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Error("Failed to load order", zap.String("event", eventSlug), zap.Error(err))
		}
		payment.TokensEqual(payment.ComputeAccessToken("dummy"), hash)
		return nil, c.String(http.StatusNotFound, msgUnknownOrder)
	}
	if !payment.TokensEqual(payment.ComputeAccessToken(order.Secret), hash) {
		return nil, c.String(http.StatusNotFound, msgUnknownOrder)
	}

	paymentID, ok := utils.ParseUint(c.Param("payment"))
	if !ok {
		return nil, c.String(http.StatusNotFound, msgUnknownPayment)
	}
	p, err := h.repos.Payments.FindForOrder(ctx, order, paymentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Error("Failed to load payment", zap.Uint("payment_id", paymentID), zap.Error(err))
		}
		return nil, c.String(http.StatusNotFound, msgUnknownPayment)
	}

	prov, ok := h.registry.Provider(p.Provider)
	if !ok || prov.Brand.Identifier != brand.Identifier {
		return nil, c.String(http.StatusNotFound, msgUnknownPayment)
	}

	return &callbackTarget{eventSlug: eventSlug, order: order, payment: p, provider: prov}, nil
}

// Pay renders the hosted checkout page for an actionable payment.
func (h *PaymentCallbackHandler) Pay(brand *payment.Brand) echo.HandlerFunc {
	return func(c echo.Context) error {
		t, err := h.resolve(c, brand)
		if t == nil {
			return err
		}
		ctx := c.Request().Context()

		if !t.payment.IsActionable() {
			return h.redirectToOrder(c, t, "")
		}

		cfg, err := h.repos.Settings.ProviderConfig(ctx, t.order.EventID, brand.Identifier)
		if err != nil {
			h.logger.Error("Failed to load provider settings", zap.String("brand", brand.Identifier), zap.Error(err))
			return h.redirectToOrder(c, t, payment.MsgServiceUnavailable)
		}
		if !t.provider.IsUsable(cfg, t.order.Testmode) {
			return h.redirectToOrder(c, t, payment.MsgProviderDisabled)
		}

		widgetURL, err := h.adapter.BeginCheckout(ctx, t.payment, t.provider, cfg)
		if err != nil {
			h.logger.Error("Checkout failed",
				zap.Uint("payment_id", t.payment.ID),
				zap.String("provider", t.provider.Identifier()),
				zap.Error(err))
			return h.redirectToOrder(c, t, payment.UserMessage(err, payment.MsgServiceUnavailable))
		}

		returnURL := h.publicURL + payment.CallbackPath(t.eventSlug, brand.Identifier, "return",
			t.order.Code, t.order.Secret, t.payment.ID)

		return renderWidgetPage(c, widgetPageData{
			Title:     t.provider.Name(),
			Amount:    utils.FormatAmount(t.payment.Amount) + " " + t.payment.Currency,
			ScriptURL: widgetURL,
			Brands:    t.provider.Brands(),
			ReturnURL: returnURL,
			Ident:     t.provider.Identifier(),
		})
	}
}

// Return finalizes a payment after the buyer is redirected back.
func (h *PaymentCallbackHandler) Return(brand *payment.Brand) echo.HandlerFunc {
	return h.finalize(brand, "return")
}

// Notify is the server-to-server variant of Return.
func (h *PaymentCallbackHandler) Notify(brand *payment.Brand) echo.HandlerFunc {
	return h.finalize(brand, "notify")
}

func (h *PaymentCallbackHandler) finalize(brand *payment.Brand, action string) echo.HandlerFunc {
	return func(c echo.Context) error {
		t, err := h.resolve(c, brand)
		if t == nil {
			return err
		}
		ctx := c.Request().Context()

		resourcePath := c.FormValue("resourcePath")
		if resourcePath == "" {
			h.logger.Warn("Callback without resource path",
				zap.String("action", action), zap.Uint("payment_id", t.payment.ID))
			return h.redirectToOrder(c, t, payment.MsgValidationFailed)
		}

		cfg, err := h.repos.Settings.ProviderConfig(ctx, t.order.EventID, brand.Identifier)
		if err != nil {
			h.logger.Error("Failed to load provider settings", zap.String("brand", brand.Identifier), zap.Error(err))
			return h.redirectToOrder(c, t, payment.MsgValidationFailed)
		}

		payload, err := h.adapter.FetchPaymentResult(ctx, t.payment, t.provider, cfg, resourcePath)
		if err != nil {
			h.logger.Error("Failed to fetch payment result",
				zap.String("action", action),
				zap.Uint("payment_id", t.payment.ID),
				zap.Error(err))
			return h.redirectToOrder(c, t, payment.UserMessage(err, payment.MsgValidationFailed))
		}

		if err := h.adapter.ApplyPaymentResult(ctx, t.payment, payload); err != nil {
			h.logger.Error("Failed to apply payment result",
				zap.String("action", action),
				zap.Uint("payment_id", t.payment.ID),
				zap.Error(err))
			return h.redirectToOrder(c, t, payment.UserMessage(err, payment.MsgValidationFailed))
		}

		msg := ""
		if t.payment.State == models.PaymentStateFailed {
			msg = payload.ResultDescription()
		}
		return h.redirectToOrder(c, t, msg)
	}
}

// redirectToOrder sends the buyer to the order status page, reloading the
// order so a payment that just completed it shows as paid.
func (h *PaymentCallbackHandler) redirectToOrder(c echo.Context, t *callbackTarget, errMsg string) error {
	order := t.order
	if fresh, err := h.repos.Orders.FindByEventAndCode(c.Request().Context(), t.eventSlug, order.Code); err == nil {
		order = fresh
	}
	return c.Redirect(http.StatusFound, OrderStatusURL(h.publicURL, t.eventSlug, order, errMsg))
}

// OrderStatusURL is the buyer-facing page of an order.
func OrderStatusURL(publicURL, eventSlug string, order *models.Order, errMsg string) string {
	u := publicURL + "/" + url.PathEscape(eventSlug) + "/order/" + url.PathEscape(order.Code) + "/" + url.PathEscape(order.Secret) + "/"
	q := url.Values{}
	if order.IsPaid() {
		q.Set("paid", "yes")
	}
	if errMsg != "" {
		q.Set("error", errMsg)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

type widgetPageData struct {
	Title     string
	Amount    string
	ScriptURL string
	Brands    string
	ReturnURL string
	Ident     string
}

var widgetPage = template.Must(template.New("widget").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: sans-serif; background: #f2f2f2; margin: 0; padding: 20px; display: flex; justify-content: center; }
        .box { background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); padding: 40px; max-width: 520px; width: 100%; }
    </style>
    <script src="{{.ScriptURL}}"></script>
</head>
<body>
    <div class="box" id="{{.Ident}}">
        <h1>{{.Title}}</h1>
        <p>{{.Amount}}</p>
        <form action="{{.ReturnURL}}" class="paymentWidgets" data-brands="{{.Brands}}"></form>
    </div>
</body>
</html>`))

func renderWidgetPage(c echo.Context, data widgetPageData) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return widgetPage.Execute(c.Response().Writer, data)
}
