package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"oppwapay/internal/pkg/httpclient"
	"oppwapay/internal/pkg/utils"
)

const (
	defaultTestURL = "https://test.oppwa.com"
	defaultLiveURL = "https://oppwa.com"
)

// ClientOptions configures the OPPWA REST client.
type ClientOptions struct {
	Timeout    time.Duration
	RetryCount int
	// TestURL and LiveURL override the gateway hosts.
	TestURL string
	LiveURL string
}

// Client talks to the OPPWA REST API.
type Client struct {
	http    *httpclient.Client
	testURL string
	liveURL string
	logger  *zap.Logger
}

func NewClient(opts ClientOptions, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := httpclient.New().WithTimeout(opts.Timeout)
	if opts.RetryCount > 0 {
		hc.WithRetry(opts.RetryCount, time.Second, 5*time.Second)
	}

	c := &Client{
		http:    hc,
		testURL: defaultTestURL,
		liveURL: defaultLiveURL,
		logger:  logger,
	}
	if opts.TestURL != "" {
		c.testURL = strings.TrimRight(opts.TestURL, "/")
	}
	if opts.LiveURL != "" {
		c.liveURL = strings.TrimRight(opts.LiveURL, "/")
	}
	return c
}

// EndpointURL returns the gateway base for live or test orders.
func (c *Client) EndpointURL(testmode bool) string {
	if testmode {
		return c.testURL
	}
	return c.liveURL
}

// CreateCheckout opens a hosted checkout session (paymentType DB).
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	url := c.EndpointURL(req.Testmode) + "/v1/checkouts"
	form := map[string]string{
		"entityId":              req.EntityID,
		"amount":                utils.FormatAmount(req.Amount),
		"currency":              req.Currency,
		"paymentType":           "DB",
		"merchantTransactionId": req.MerchantTransactionID,
	}

	resp, err := c.http.PostForm(ctx, url, req.AccessToken, form)
	if err != nil {
		c.logger.Error("Error on creating checkout",
			zap.String("url", url),
			zap.String("merchant_transaction_id", req.MerchantTransactionID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: create checkout: %v", ErrGatewayUnreachable, err)
	}

	payload, err := c.decode("create checkout", url, resp)
	if err != nil {
		return nil, err
	}
	return &CheckoutResponse{CheckoutID: payload.ID(), Raw: payload}, nil
}

// FetchResource reads the status document behind a resource path.
func (c *Client) FetchResource(ctx context.Context, req ResourceRequest) (Payload, error) {
	path := req.ResourcePath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := c.EndpointURL(req.Testmode) + path

	resp, err := c.http.Get(ctx, url, req.AccessToken, map[string]string{"entityId": req.EntityID})
	if err != nil {
		c.logger.Error("Error on fetching payment status",
			zap.String("url", url),
			zap.Error(err))
		return nil, fmt.Errorf("%w: fetch resource: %v", ErrGatewayUnreachable, err)
	}
	return c.decode("fetch resource", url, resp)
}

// CreateRefund refunds (part of) a captured payment (paymentType RF).
func (c *Client) CreateRefund(ctx context.Context, req RefundRequest) (Payload, error) {
	url := c.EndpointURL(req.Testmode) + "/v1/payments/" + req.GatewayPaymentID
	form := map[string]string{
		"entityId":    req.EntityID,
		"amount":      utils.FormatAmount(req.Amount),
		"currency":    req.Currency,
		"paymentType": "RF",
	}

	resp, err := c.http.PostForm(ctx, url, req.AccessToken, form)
	if err != nil {
		c.logger.Error("Error on creating refund",
			zap.String("url", url),
			zap.Error(err))
		return nil, fmt.Errorf("%w: create refund: %v", ErrGatewayUnreachable, err)
	}
	return c.decode("create refund", url, resp)
}

func (c *Client) decode(op, url string, resp *httpclient.Response) (Payload, error) {
	payload, err := ParsePayload(resp.Body)
	if err != nil {
		c.logger.Error("Unparseable gateway response",
			zap.String("op", op),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Debug("Gateway response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.String("result_code", payload.ResultCode()))
	return payload, nil
}
