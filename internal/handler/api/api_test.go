package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"oppwapay/internal/models"
	"oppwapay/internal/payment"
	"oppwapay/internal/repository"
)

type memRepos struct {
	event    *models.Event
	order    *models.Order
	payments map[uint]*models.OrderPayment
	refunds  []*models.OrderRefund
	settings []models.ProviderSetting
}

func newMemRepos() *memRepos {
	ev := &models.Event{ID: 1, Slug: "myevent", Currency: "EUR", Testmode: true}
	return &memRepos{
		event: ev,
		order: &models.Order{ID: 5, EventID: 1, Event: ev, Code: "ABC1D", Secret: "s3cr3t",
			Status: models.OrderStatusPending, Testmode: true, Total: 2500},
		payments: map[uint]*models.OrderPayment{},
		settings: []models.ProviderSetting{
			{EventID: 1, Brand: "oppwa", Name: "_enabled", Value: "true"},
			{EventID: 1, Brand: "oppwa", Name: "access_token", Value: "secret-token"},
			{EventID: 1, Brand: "oppwa", Name: "endpoint", Value: "test"},
			{EventID: 1, Brand: "oppwa", Name: "entityId", Value: "entity-all"},
			{EventID: 1, Brand: "oppwa", Name: "method_VISA", Value: "true"},
		},
	}
}

func (m *memRepos) FindEventBySlug(_ context.Context, slug string) (*models.Event, error) {
	if slug != m.event.Slug {
		return nil, gorm.ErrRecordNotFound
	}
	return m.event, nil
}

func (m *memRepos) FindByEventAndCode(_ context.Context, slug, code string) (*models.Order, error) {
	if slug != m.event.Slug || code != m.order.Code {
		return nil, gorm.ErrRecordNotFound
	}
	return m.order, nil
}

func (m *memRepos) FindAll(_ context.Context, _ uint, state string, _, _ int) ([]models.OrderPayment, int64, error) {
	var out []models.OrderPayment
	for _, p := range m.payments {
		if state == "" || p.State == state {
			out = append(out, *p)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memRepos) FindByID(_ context.Context, id uint) (*models.OrderPayment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	p.Order = m.order
	return p, nil
}

func (m *memRepos) Create(_ context.Context, p *models.OrderPayment) error {
	p.ID = uint(len(m.payments) + 1)
	p.LocalID = int(p.ID)
	m.payments[p.ID] = p
	return nil
}

func (m *memRepos) GetAll(_ context.Context, _ uint, brand string) ([]models.ProviderSetting, error) {
	var out []models.ProviderSetting
	for _, s := range m.settings {
		if s.Brand == brand {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepos) Set(_ context.Context, eventID uint, brand, name, value string) error {
	for i, s := range m.settings {
		if s.Brand == brand && s.Name == name {
			m.settings[i].Value = value
			return nil
		}
	}
	m.settings = append(m.settings, models.ProviderSetting{EventID: eventID, Brand: brand, Name: name, Value: value})
	return nil
}

func (m *memRepos) ProviderConfig(ctx context.Context, eventID uint, brand string) (payment.ProviderConfig, error) {
	rows, _ := m.GetAll(ctx, eventID, brand)
	return repository.ParseProviderConfig(rows), nil
}

// memRefunds implements RefundStore; Create collides with PaymentStore on memRepos.
type memRefunds struct{ m *memRepos }

func (r memRefunds) FindByPayment(_ context.Context, paymentID uint) ([]models.OrderRefund, error) {
	var out []models.OrderRefund
	for _, rf := range r.m.refunds {
		if rf.PaymentID == paymentID {
			out = append(out, *rf)
		}
	}
	return out, nil
}

func (r memRefunds) SumOutstanding(_ context.Context, paymentID uint) (int64, error) {
	var sum int64
	for _, rf := range r.m.refunds {
		if rf.PaymentID == paymentID && rf.State != models.RefundStateFailed && rf.State != models.RefundStateCanceled {
			sum += rf.Amount
		}
	}
	return sum, nil
}

func (r memRefunds) Create(_ context.Context, rf *models.OrderRefund) error {
	rf.ID = uint(len(r.m.refunds) + 1)
	rf.LocalID = int(rf.ID)
	r.m.refunds = append(r.m.refunds, rf)
	return nil
}

type stateLedger struct{}

func (stateLedger) SavePaymentInfo(context.Context, *models.OrderPayment) error { return nil }
func (stateLedger) TransitionPayment(_ context.Context, p *models.OrderPayment, to string) error {
	p.State = to
	return nil
}
func (stateLedger) SaveRefundInfo(context.Context, *models.OrderRefund) error { return nil }
func (stateLedger) TransitionRefund(_ context.Context, r *models.OrderRefund, to string) error {
	r.State = to
	return nil
}

type refundGateway struct {
	err  error
	last payment.RefundRequest
}

func (g *refundGateway) EndpointURL(bool) string { return "https://test.oppwa.com" }
func (g *refundGateway) CreateCheckout(context.Context, payment.CheckoutRequest) (*payment.CheckoutResponse, error) {
	return nil, errors.New("not used")
}
func (g *refundGateway) FetchResource(context.Context, payment.ResourceRequest) (payment.Payload, error) {
	return nil, errors.New("not used")
}
func (g *refundGateway) CreateRefund(_ context.Context, req payment.RefundRequest) (payment.Payload, error) {
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return payment.Payload{"id": "rf-1", "result": map[string]interface{}{"code": "000.100.110"}}, nil
}

type apiFixture struct {
	m        *memRepos
	gateway  *refundGateway
	payments *PaymentHandler
	refunds  *RefundHandler
	settings *SettingsHandler
}

func newAPIFixture() *apiFixture {
	m := newMemRepos()
	repos := &Repos{Orders: m, Payments: m, Refunds: memRefunds{m: m}, Settings: m}
	registry := payment.DefaultRegistry()
	gw := &refundGateway{}
	adapter := payment.NewAdapter(stateLedger{}, gw, payment.NewClassifier(payment.ModeCorrected), nil, nil, zap.NewNop())
	return &apiFixture{
		m:        m,
		gateway:  gw,
		payments: NewPaymentHandler(repos, registry, "https://tickets.example.com", zap.NewNop()),
		refunds:  NewRefundHandler(repos, adapter, registry, zap.NewNop()),
		settings: NewSettingsHandler(repos, registry, zap.NewNop()),
	}
}

func call(t *testing.T, h echo.HandlerFunc, body string) (models.APIResponse, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	obj, _ := resp.Obj.(map[string]interface{})
	return resp, obj
}

func (f *apiFixture) confirmedPayment(amount int64) *models.OrderPayment {
	p := &models.OrderPayment{
		OrderID:       5,
		Amount:        amount,
		Currency:      "EUR",
		Provider:      "oppwa",
		State:         models.PaymentStateConfirmed,
		CorrelationID: "chk-1",
		Info:          `{"id":"pay-9","ndc":"chk-1"}`,
	}
	_ = f.m.Create(context.Background(), p)
	return p
}

func TestPaymentAPI_Create(t *testing.T) {
	f := newAPIFixture()

	resp, obj := call(t, f.payments.Handle, `{"actions":"create","event":"myevent","order":"ABC1D","provider":"oppwa"}`)

	require.True(t, resp.Status, resp.Msg)
	payURL, _ := obj["pay_url"].(string)
	assert.Equal(t, "https://tickets.example.com"+payment.CallbackPath("myevent", "oppwa", "pay", "ABC1D", "s3cr3t", 1), payURL)
	require.Contains(t, f.m.payments, uint(1))
	assert.Equal(t, int64(2500), f.m.payments[1].Amount)
	assert.Equal(t, models.PaymentStateCreated, f.m.payments[1].State)
}

func TestPaymentAPI_CreateRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"unknown provider", `{"actions":"create","event":"myevent","order":"ABC1D","provider":"stripe"}`, "Unknown provider: stripe"},
		{"disabled method", `{"actions":"create","event":"myevent","order":"ABC1D","provider":"oppwa_paypal"}`, payment.MsgProviderDisabled},
		{"unknown order", `{"actions":"create","event":"myevent","order":"NOPE","provider":"oppwa"}`, "Order not found"},
		{"bad amount", `{"actions":"create","event":"myevent","order":"ABC1D","provider":"oppwa","amount":"1.234"}`, "Invalid amount"},
		{"unknown action", `{"actions":"delete"}`, "Unknown action: delete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture()
			resp, _ := call(t, f.payments.Handle, tt.body)
			assert.False(t, resp.Status)
			assert.Equal(t, tt.msg, resp.Msg)
		})
	}
}

func TestPaymentAPI_DetailIncludesHashWhileOpen(t *testing.T) {
	f := newAPIFixture()
	p := &models.OrderPayment{OrderID: 5, Amount: 100, Provider: "oppwa", State: models.PaymentStatePending,
		Info: `{"id":"chk-1","result":{"code":"000.200.000"}}`}
	_ = f.m.Create(context.Background(), p)

	resp, obj := call(t, f.payments.Handle, `{"actions":"payment","payment_id":1}`)

	require.True(t, resp.Status)
	assert.Equal(t, payment.ComputeAccessToken("s3cr3t"), obj["payment_hash"])
	assert.Equal(t, "OPPWA", obj["provider_name"])
	info, _ := obj["info"].(map[string]interface{})
	assert.Equal(t, "chk-1", info["id"])

	p.State = models.PaymentStateConfirmed
	_, obj = call(t, f.payments.Handle, `{"actions":"payment","payment_id":1}`)
	assert.NotContains(t, obj, "payment_hash")
}

func TestRefundAPI_FullRefund(t *testing.T) {
	f := newAPIFixture()
	f.confirmedPayment(2500)

	resp, obj := call(t, f.refunds.Handle, `{"actions":"refund","payment_id":1,"amount":"25.00"}`)

	require.True(t, resp.Status, resp.Msg)
	assert.Equal(t, models.RefundStateDone, obj["state"])
	assert.Equal(t, "pay-9", f.gateway.last.GatewayPaymentID)
	assert.Equal(t, int64(2500), f.gateway.last.Amount)
}

func TestRefundAPI_AmountLimits(t *testing.T) {
	f := newAPIFixture()
	f.confirmedPayment(2500)

	resp, _ := call(t, f.refunds.Handle, `{"actions":"refund","payment_id":1,"amount":"10.00"}`)
	require.True(t, resp.Status, resp.Msg)

	resp, _ = call(t, f.refunds.Handle, `{"actions":"refund","payment_id":1,"amount":"20.00"}`)
	assert.False(t, resp.Status)
	assert.Equal(t, "Amount exceeds refundable amount of 15.00", resp.Msg)

	resp, _ = call(t, f.refunds.Handle, `{"actions":"refund","payment_id":1,"amount":"0"}`)
	assert.False(t, resp.Status)
}

func TestRefundAPI_GatewayDown(t *testing.T) {
	f := newAPIFixture()
	f.confirmedPayment(2500)
	f.gateway.err = payment.ErrGatewayUnreachable

	resp, _ := call(t, f.refunds.Handle, `{"actions":"refund","payment_id":1,"amount":"5"}`)

	assert.False(t, resp.Status)
	assert.Equal(t, payment.MsgServiceUnavailable, resp.Msg)
	require.Len(t, f.m.refunds, 1)
	assert.Equal(t, models.RefundStateFailed, f.m.refunds[0].State)
}

func TestRefundAPI_RetryAfterGatewayDown(t *testing.T) {
	f := newAPIFixture()
	f.confirmedPayment(2500)
	f.gateway.err = payment.ErrGatewayUnreachable

	resp, _ := call(t, f.refunds.Handle, `{"actions":"refund","payment_id":1,"amount":"25.00"}`)
	require.False(t, resp.Status)

	f.gateway.err = nil
	resp, obj := call(t, f.refunds.Handle, `{"actions":"refund","payment_id":1,"amount":"25.00"}`)

	require.True(t, resp.Status, resp.Msg)
	assert.Equal(t, models.RefundStateDone, obj["state"])
	require.Len(t, f.m.refunds, 2)
	assert.Equal(t, models.RefundStateFailed, f.m.refunds[0].State)
	assert.Equal(t, models.RefundStateDone, f.m.refunds[1].State)
}

func TestRefundAPI_RequiresConfirmedPayment(t *testing.T) {
	f := newAPIFixture()
	p := f.confirmedPayment(2500)
	p.State = models.PaymentStatePending

	resp, _ := call(t, f.refunds.Handle, `{"actions":"refund","payment_id":1,"amount":"5"}`)
	assert.False(t, resp.Status)
	assert.Empty(t, f.m.refunds)
}

func TestSettingsAPI(t *testing.T) {
	f := newAPIFixture()

	resp, _ := call(t, f.settings.Handle, `{"actions":"set_setting","event":"myevent","brand":"oppwa","name":"method_PAYPAL","value":"true"}`)
	require.True(t, resp.Status, resp.Msg)

	resp, _ = call(t, f.settings.Handle, `{"actions":"set_setting","event":"myevent","brand":"oppwa","name":"colour","value":"red"}`)
	assert.False(t, resp.Status)

	resp, _ = call(t, f.settings.Handle, `{"actions":"set_setting","event":"myevent","brand":"oppwa","name":"endpoint","value":"staging"}`)
	assert.False(t, resp.Status)

	resp, obj := call(t, f.settings.Handle, `{"actions":"settings","event":"myevent","brand":"oppwa"}`)
	require.True(t, resp.Status)
	settings, _ := obj["settings"].(map[string]interface{})
	assert.Equal(t, maskedValue, settings["access_token"])
	assert.Equal(t, "entityId", obj["entity_id_key"])

	providers, _ := obj["providers"].([]interface{})
	usable := map[string]bool{}
	for _, raw := range providers {
		p, _ := raw.(map[string]interface{})
		usable[p["identifier"].(string)], _ = p["usable"].(bool)
	}
	assert.True(t, usable["oppwa"])
	assert.True(t, usable["oppwa_paypal"])
	assert.False(t, usable["oppwa_giropay"])
}
