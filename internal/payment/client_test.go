package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientOptions{Timeout: 5 * time.Second, TestURL: srv.URL, LiveURL: srv.URL + "/live"}, zap.NewNop())
}

func TestClient_EndpointURL(t *testing.T) {
	c := NewClient(ClientOptions{}, nil)
	assert.Equal(t, "https://test.oppwa.com", c.EndpointURL(true))
	assert.Equal(t, "https://oppwa.com", c.EndpointURL(false))
}

func TestClient_CreateCheckout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkouts", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "ent-1", r.PostForm.Get("entityId"))
		assert.Equal(t, "10.00", r.PostForm.Get("amount"))
		assert.Equal(t, "EUR", r.PostForm.Get("currency"))
		assert.Equal(t, "DB", r.PostForm.Get("paymentType"))
		assert.Equal(t, "MYEVENT-ABC1D-P-1", r.PostForm.Get("merchantTransactionId"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"8ac7a4a1","result":{"code":"000.200.100","description":"successfully created checkout"}}`))
	})

	resp, err := c.CreateCheckout(context.Background(), CheckoutRequest{
		AccessToken:           "tok",
		EntityID:              "ent-1",
		Amount:                1000,
		Currency:              "EUR",
		MerchantTransactionID: "MYEVENT-ABC1D-P-1",
		Testmode:              true,
	})
	require.NoError(t, err)
	assert.Equal(t, "8ac7a4a1", resp.CheckoutID)
	assert.Equal(t, "000.200.100", resp.Raw.ResultCode())
}

func TestClient_FetchResource(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/checkouts/8ac7a4a1/payment", r.URL.Path)
		assert.Equal(t, "ent-1", r.URL.Query().Get("entityId"))
		_, _ = w.Write([]byte(`{"id":"8ac7a4a1","result":{"code":"000.000.000"}}`))
	})

	payload, err := c.FetchResource(context.Background(), ResourceRequest{
		AccessToken:  "tok",
		ResourcePath: "/v1/checkouts/8ac7a4a1/payment",
		EntityID:     "ent-1",
		Testmode:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "8ac7a4a1", payload.ID())
	assert.Equal(t, "000.000.000", payload.ResultCode())
}

func TestClient_CreateRefund(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/live/v1/payments/8ac7", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "RF", r.PostForm.Get("paymentType"))
		assert.Equal(t, "10.00", r.PostForm.Get("amount"))
		_, _ = w.Write([]byte(`{"id":"refund-1","result":{"code":"000.000.000"}}`))
	})

	payload, err := c.CreateRefund(context.Background(), RefundRequest{
		AccessToken:      "tok",
		EntityID:         "ent-1",
		Amount:           1000,
		Currency:         "EUR",
		GatewayPaymentID: "8ac7",
		Testmode:         false,
	})
	require.NoError(t, err)
	assert.Equal(t, "refund-1", payload.ID())
}

func TestClient_ProtocolError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.CreateCheckout(context.Background(), CheckoutRequest{Testmode: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayProtocolError)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(ClientOptions{Timeout: time.Second, TestURL: url}, zap.NewNop())
	_, err := c.FetchResource(context.Background(), ResourceRequest{ResourcePath: "v1/checkouts/x/payment", Testmode: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnreachable)
}
