package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oppwapay/internal/config"
	"oppwapay/internal/models"
	"oppwapay/internal/payment"
)

type memPayments struct {
	pending []models.OrderPayment
	stale   []models.OrderPayment
	before  time.Time
	states  map[uint]string
}

func (m *memPayments) FindPendingWithResource(context.Context, int) ([]models.OrderPayment, error) {
	return m.pending, nil
}

func (m *memPayments) FindStaleCreated(_ context.Context, before time.Time, _ int) ([]models.OrderPayment, error) {
	m.before = before
	return m.stale, nil
}

func (m *memPayments) SavePaymentInfo(context.Context, *models.OrderPayment) error { return nil }

func (m *memPayments) TransitionPayment(_ context.Context, p *models.OrderPayment, to string) error {
	if !models.CanTransitionPayment(p.State, to) {
		return models.ErrInvalidTransition
	}
	p.State = to
	m.states[p.ID] = to
	return nil
}

func (m *memPayments) SaveRefundInfo(context.Context, *models.OrderRefund) error { return nil }

func (m *memPayments) TransitionRefund(context.Context, *models.OrderRefund, string) error {
	return nil
}

type staticSettings struct{}

func (staticSettings) ProviderConfig(context.Context, uint, string) (payment.ProviderConfig, error) {
	return payment.ProviderConfig{
		Enabled:          true,
		AccessToken:      "token",
		Endpoint:         payment.EndpointTest,
		EntityID:         "entity-all",
		EntityIDByMethod: map[string]string{},
		EnabledMethods:   map[string]bool{"VISA": true},
	}, nil
}

// flakyGateway fails the first `failures` fetches with err.
type flakyGateway struct {
	failures int
	err      error
	calls    int
	payload  payment.Payload
}

func (g *flakyGateway) EndpointURL(bool) string { return "https://test.oppwa.com" }

func (g *flakyGateway) CreateCheckout(context.Context, payment.CheckoutRequest) (*payment.CheckoutResponse, error) {
	return nil, errors.New("not used")
}

func (g *flakyGateway) FetchResource(context.Context, payment.ResourceRequest) (payment.Payload, error) {
	g.calls++
	if g.calls <= g.failures {
		return nil, g.err
	}
	return g.payload, nil
}

func (g *flakyGateway) CreateRefund(context.Context, payment.RefundRequest) (payment.Payload, error) {
	return nil, errors.New("not used")
}

func pendingPayment(id uint) models.OrderPayment {
	return models.OrderPayment{
		ID:            id,
		Amount:        1000,
		Provider:      "oppwa",
		State:         models.PaymentStatePending,
		CorrelationID: "chk-1",
		ResourcePath:  "/v1/checkouts/chk-1/payment",
		Order: &models.Order{
			ID: 1, EventID: 1, Code: "ABC1D", Testmode: true,
			Event: &models.Event{ID: 1, Slug: "myevent", Currency: "EUR"},
		},
	}
}

func newTestScheduler(store *memPayments, gw payment.Gateway) *Scheduler {
	adapter := payment.NewAdapter(store, gw, payment.NewClassifier(payment.ModeCorrected), nil, nil, zap.NewNop())
	s := New(config.CronConfig{
		ReconcileSpec: "0 */10 * * * *",
		ExpireSpec:    "0 0 * * * *",
		CheckoutTTL:   time.Hour,
	}, &CronRepos{Payments: store, Settings: staticSettings{}}, adapter, payment.DefaultRegistry(), zap.NewNop())
	s.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}
	return s
}

func TestReconcilePending_RetriesTransportErrors(t *testing.T) {
	store := &memPayments{pending: []models.OrderPayment{pendingPayment(1)}, states: map[uint]string{}}
	gw := &flakyGateway{
		failures: 2,
		err:      payment.ErrGatewayUnreachable,
		payload:  payment.Payload{"id": "chk-1", "result": map[string]interface{}{"code": "000.000.000"}},
	}
	s := newTestScheduler(store, gw)

	settled := s.ReconcilePending(context.Background())

	assert.Equal(t, 1, settled)
	assert.Equal(t, 3, gw.calls)
	assert.Equal(t, models.PaymentStateConfirmed, store.states[1])
}

func TestReconcilePending_ProtocolErrorIsNotRetried(t *testing.T) {
	store := &memPayments{pending: []models.OrderPayment{pendingPayment(1)}, states: map[uint]string{}}
	gw := &flakyGateway{failures: 5, err: payment.ErrGatewayProtocolError}
	s := newTestScheduler(store, gw)

	settled := s.ReconcilePending(context.Background())

	assert.Equal(t, 0, settled)
	assert.Equal(t, 1, gw.calls)
	assert.Empty(t, store.states)
}

func TestReconcilePending_StillPending(t *testing.T) {
	store := &memPayments{pending: []models.OrderPayment{pendingPayment(1)}, states: map[uint]string{}}
	gw := &flakyGateway{payload: payment.Payload{"id": "chk-1", "result": map[string]interface{}{"code": "000.200.000"}}}
	s := newTestScheduler(store, gw)

	assert.Equal(t, 0, s.ReconcilePending(context.Background()))
	assert.Equal(t, models.PaymentStatePending, store.pending[0].State)
}

func TestExpireStaleCheckouts(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store := &memPayments{
		stale: []models.OrderPayment{
			{ID: 1, State: models.PaymentStateCreated},
			{ID: 2, State: models.PaymentStateConfirmed},
		},
		states: map[uint]string{},
	}
	s := newTestScheduler(store, &flakyGateway{})
	s.now = func() time.Time { return now }

	expired := s.ExpireStaleCheckouts(context.Background())

	assert.Equal(t, 1, expired)
	assert.Equal(t, now.Add(-time.Hour), store.before)
	assert.Equal(t, models.PaymentStateCanceled, store.states[1])
	assert.NotContains(t, store.states, uint(2))
}

func TestStart_RejectsBadSpec(t *testing.T) {
	store := &memPayments{states: map[uint]string{}}
	s := newTestScheduler(store, &flakyGateway{})
	s.cfg.ReconcileSpec = "not a spec"

	require.Error(t, s.Start())
}
