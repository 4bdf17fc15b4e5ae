package payment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"oppwapay/internal/models"
)

// Adapter drives payments and refunds through the OPPWA checkout flow.
type Adapter struct {
	ledger     Ledger
	gateway    Gateway
	classifier Classifier
	deduper    ResultDeduper
	alerter    Alerter
	logger     *zap.Logger

	matchCheckoutRef bool
}

// AdapterOption tunes an Adapter.
type AdapterOption func(*Adapter)

// WithCheckoutReferenceMatch also accepts status documents whose "ndc"
// checkout reference equals the stored checkout id. Off by default: the
// document id must match.
func WithCheckoutReferenceMatch() AdapterOption {
	return func(a *Adapter) {
		a.matchCheckoutRef = true
	}
}

// NewAdapter wires the adapter. deduper and alerter may be nil.
func NewAdapter(ledger Ledger, gateway Gateway, classifier Classifier, deduper ResultDeduper, alerter Alerter, logger *zap.Logger, opts ...AdapterOption) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		ledger:     ledger,
		gateway:    gateway,
		classifier: classifier,
		deduper:    deduper,
		alerter:    alerter,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) correlates(p *models.OrderPayment, payload Payload) bool {
	id := payload.ID()
	if id == "" {
		return false
	}
	if p.MatchesCorrelation(id) {
		return true
	}
	return a.matchCheckoutRef && p.MatchesCorrelation(payload.CheckoutReference())
}

func orderOf(p *models.OrderPayment) (*models.Order, *models.Event, error) {
	if p == nil || p.Order == nil || p.Order.Event == nil {
		return nil, nil, fmt.Errorf("%w: payment without order or event", ErrConfiguration)
	}
	return p.Order, p.Order.Event, nil
}

func currencyOf(p *models.OrderPayment, ev *models.Event) string {
	if p.Currency != "" {
		return p.Currency
	}
	return ev.Currency
}

// BeginCheckout creates the hosted checkout and returns the widget script URL.
// A payment that already carries a checkout id reuses it.
func (a *Adapter) BeginCheckout(ctx context.Context, p *models.OrderPayment, prov Provider, cfg ProviderConfig) (string, error) {
	order, ev, err := orderOf(p)
	if err != nil {
		return "", err
	}
	base := a.gateway.EndpointURL(order.Testmode)

	if p.CorrelationID != "" {
		return WidgetURL(base, p.CorrelationID), nil
	}

	entityID, ok := prov.ResolveEntityID(cfg, order.Testmode)
	if !ok {
		return "", fmt.Errorf("%w: no entity id for provider %s (endpoint %s, testmode %t)",
			ErrConfiguration, prov.Identifier(), cfg.Endpoint, order.Testmode)
	}

	resp, err := a.gateway.CreateCheckout(ctx, CheckoutRequest{
		AccessToken:           cfg.AccessToken,
		EntityID:              entityID,
		Amount:                p.Amount,
		Currency:              currencyOf(p, ev),
		MerchantTransactionID: MerchantTransactionID(ev.Slug, order.Code, p.LocalID),
		Testmode:              order.Testmode,
	})
	if err != nil {
		return "", &PaymentError{Message: MsgServiceUnavailable, Err: fmt.Errorf("%w: %w", ErrPaymentServiceUnavailable, err)}
	}

	p.Info = resp.Raw.JSON()
	if resp.CheckoutID == "" {
		if saveErr := a.ledger.SavePaymentInfo(ctx, p); saveErr != nil {
			a.logger.Error("Failed to store checkout response", zap.Uint("payment_id", p.ID), zap.Error(saveErr))
		}
		a.logger.Error("Checkout response without id",
			zap.Uint("payment_id", p.ID),
			zap.String("result_code", resp.Raw.ResultCode()),
			zap.String("result_description", resp.Raw.ResultDescription()))
		return "", &PaymentError{
			Message: MsgServiceUnavailable,
			Err:     fmt.Errorf("%w: checkout response without id", ErrGatewayProtocolError),
		}
	}

	p.CorrelationID = resp.CheckoutID
	if err := a.ledger.SavePaymentInfo(ctx, p); err != nil {
		return "", fmt.Errorf("store checkout id: %w", err)
	}

	a.logger.Info("Checkout created",
		zap.Uint("payment_id", p.ID),
		zap.String("provider", prov.Identifier()),
		zap.String("checkout_id", resp.CheckoutID))
	return WidgetURL(base, resp.CheckoutID), nil
}

// FetchPaymentResult loads the status document behind resourcePath and
// remembers the path on the payment for later reconciliation.
func (a *Adapter) FetchPaymentResult(ctx context.Context, p *models.OrderPayment, prov Provider, cfg ProviderConfig, resourcePath string) (Payload, error) {
	order, _, err := orderOf(p)
	if err != nil {
		return nil, err
	}
	entityID, ok := prov.ResolveEntityID(cfg, order.Testmode)
	if !ok {
		return nil, fmt.Errorf("%w: no entity id for provider %s", ErrConfiguration, prov.Identifier())
	}

	payload, err := a.gateway.FetchResource(ctx, ResourceRequest{
		AccessToken:  cfg.AccessToken,
		ResourcePath: resourcePath,
		EntityID:     entityID,
		Testmode:     order.Testmode,
	})
	if err != nil {
		return nil, err
	}
	p.ResourcePath = resourcePath
	return payload, nil
}

func resultKey(kind string, id uint, correlationID, code string) string {
	return fmt.Sprintf("%s:%d:%s:%s", kind, id, correlationID, code)
}

// claim records the key and reports whether the result was already applied.
func (a *Adapter) claim(ctx context.Context, key string) bool {
	if a.deduper == nil {
		return false
	}
	seen, err := a.deduper.Seen(ctx, key)
	if err != nil {
		a.logger.Warn("Result dedup unavailable", zap.String("key", key), zap.Error(err))
		return false
	}
	return seen
}

func (a *Adapter) release(ctx context.Context, key string) {
	if a.deduper == nil {
		return
	}
	if err := a.deduper.Release(ctx, key); err != nil {
		a.logger.Warn("Failed to release result dedup key", zap.String("key", key), zap.Error(err))
	}
}

// ApplyPaymentResult moves the payment according to a gateway status payload.
// It only acts on Created or Pending payments, and a repeated
// (payment, checkout id, result code) triple is ignored.
func (a *Adapter) ApplyPaymentResult(ctx context.Context, p *models.OrderPayment, payload Payload) error {
	if !p.IsActionable() {
		a.logger.Debug("Ignoring result for settled payment",
			zap.Uint("payment_id", p.ID), zap.String("state", p.State))
		return nil
	}

	if !a.correlates(p, payload) {
		a.logger.Warn("Payment result rejected",
			zap.Uint("payment_id", p.ID),
			zap.String("stored_id", p.CorrelationID),
			zap.String("payload_id", payload.ID()),
			zap.Error(ErrCorrelationMismatch))
		return a.transitionPayment(ctx, p, models.PaymentStateFailed)
	}

	code := payload.ResultCode()
	key := resultKey("payment", p.ID, p.CorrelationID, code)
	if a.claim(ctx, key) {
		a.logger.Info("Duplicate payment result ignored", zap.Uint("payment_id", p.ID), zap.String("result_code", code))
		return nil
	}

	p.Info = payload.JSON()
	if err := a.ledger.SavePaymentInfo(ctx, p); err != nil {
		a.release(ctx, key)
		return fmt.Errorf("store payment result: %w", err)
	}

	outcome := a.classifier.Classify(code)
	a.logger.Info("Payment result classified",
		zap.Uint("payment_id", p.ID),
		zap.String("result_code", code),
		zap.String("outcome", string(outcome)),
		zap.String("mode", string(a.classifier.Mode())))

	if err := a.transitionPayment(ctx, p, paymentStateFor(outcome)); err != nil {
		a.release(ctx, key)
		return err
	}
	return nil
}

// ApplyRefundResult moves the refund according to a gateway payload.
func (a *Adapter) ApplyRefundResult(ctx context.Context, r *models.OrderRefund, payload Payload) error {
	if !r.IsActionable() {
		a.logger.Debug("Ignoring result for settled refund",
			zap.Uint("refund_id", r.ID), zap.String("state", r.State))
		return nil
	}

	id := payload.ID()
	if r.CorrelationID == "" {
		r.CorrelationID = id
	}
	r.Info = payload.JSON()
	if err := a.ledger.SaveRefundInfo(ctx, r); err != nil {
		return fmt.Errorf("store refund result: %w", err)
	}

	if id == "" || id != r.CorrelationID {
		a.logger.Warn("Refund result rejected",
			zap.Uint("refund_id", r.ID),
			zap.String("stored_id", r.CorrelationID),
			zap.String("payload_id", id),
			zap.Error(ErrCorrelationMismatch))
		return a.transitionRefund(ctx, r, models.RefundStateFailed)
	}

	code := payload.ResultCode()
	key := resultKey("refund", r.ID, id, code)
	if a.claim(ctx, key) {
		a.logger.Info("Duplicate refund result ignored", zap.Uint("refund_id", r.ID), zap.String("result_code", code))
		return nil
	}

	outcome := a.classifier.Classify(code)
	a.logger.Info("Refund result classified",
		zap.Uint("refund_id", r.ID),
		zap.String("result_code", code),
		zap.String("outcome", string(outcome)))

	if err := a.transitionRefund(ctx, r, refundStateFor(outcome)); err != nil {
		a.release(ctx, key)
		return err
	}
	return nil
}

// RequestRefund issues the refund against the payment's gateway id and applies
// the answer.
func (a *Adapter) RequestRefund(ctx context.Context, r *models.OrderRefund, prov Provider, cfg ProviderConfig) error {
	if r == nil || r.Payment == nil {
		return fmt.Errorf("%w: refund without payment", ErrConfiguration)
	}
	p := r.Payment
	order, ev, err := orderOf(p)
	if err != nil {
		return err
	}

	gatewayID := PayloadFromInfo(p.Info).ID()
	if gatewayID == "" {
		return a.failRefund(ctx, r, &PaymentError{Message: MsgNoPaymentInfo, Err: ErrNoGatewayRecord})
	}

	entityID, ok := prov.ResolveEntityID(cfg, order.Testmode)
	if !ok {
		return fmt.Errorf("%w: no entity id for provider %s", ErrConfiguration, prov.Identifier())
	}

	payload, err := a.gateway.CreateRefund(ctx, RefundRequest{
		AccessToken:      cfg.AccessToken,
		EntityID:         entityID,
		Amount:           r.Amount,
		Currency:         currencyOf(p, ev),
		GatewayPaymentID: gatewayID,
		Testmode:         order.Testmode,
	})
	if err != nil {
		a.notify(ctx, fmt.Sprintf("Refund %d for order %s-%s could not be sent to %s: %v",
			r.ID, ev.Slug, order.Code, prov.Name(), err))
		return a.failRefund(ctx, r, &PaymentError{Message: MsgServiceUnavailable, Err: fmt.Errorf("%w: %w", ErrPaymentServiceUnavailable, err)})
	}

	return a.ApplyRefundResult(ctx, r, payload)
}

// failRefund marks a refund that never reached the gateway as failed, so its
// amount is released and the refund can be issued again.
func (a *Adapter) failRefund(ctx context.Context, r *models.OrderRefund, perr *PaymentError) error {
	if err := a.transitionRefund(ctx, r, models.RefundStateFailed); err != nil {
		a.logger.Error("Failed to mark refund failed", zap.Uint("refund_id", r.ID), zap.Error(err))
	}
	return perr
}

func (a *Adapter) notify(ctx context.Context, text string) {
	if a.alerter == nil {
		return
	}
	if err := a.alerter.Alert(ctx, text); err != nil {
		a.logger.Warn("Failed to send operator alert", zap.Error(err))
	}
}

func (a *Adapter) transitionPayment(ctx context.Context, p *models.OrderPayment, to string) error {
	err := a.ledger.TransitionPayment(ctx, p, to)
	if errors.Is(err, models.ErrInvalidTransition) {
		a.logger.Info("Payment transition ignored",
			zap.Uint("payment_id", p.ID), zap.String("state", p.State), zap.String("to", to))
		return nil
	}
	if err != nil {
		return fmt.Errorf("transition payment %d to %s: %w", p.ID, to, err)
	}
	return nil
}

func (a *Adapter) transitionRefund(ctx context.Context, r *models.OrderRefund, to string) error {
	err := a.ledger.TransitionRefund(ctx, r, to)
	if errors.Is(err, models.ErrInvalidTransition) {
		a.logger.Info("Refund transition ignored",
			zap.Uint("refund_id", r.ID), zap.String("state", r.State), zap.String("to", to))
		return nil
	}
	if err != nil {
		return fmt.Errorf("transition refund %d to %s: %w", r.ID, to, err)
	}
	return nil
}

func paymentStateFor(o Outcome) string {
	switch {
	case o == OutcomeConfirmed:
		return models.PaymentStateConfirmed
	case o.IsPending():
		return models.PaymentStatePending
	default:
		return models.PaymentStateFailed
	}
}

func refundStateFor(o Outcome) string {
	switch {
	case o == OutcomeConfirmed:
		return models.RefundStateDone
	case o.IsPending():
		return models.RefundStateTransit
	default:
		return models.RefundStateFailed
	}
}
