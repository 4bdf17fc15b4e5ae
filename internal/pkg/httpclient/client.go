package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty for HTTP requests to the payment gateway and alerting APIs.
type Client struct {
	r *resty.Client
}

// Response is the subset of an HTTP response callers care about.
type Response struct {
	StatusCode int
	Body       []byte
}

// New creates a new HTTP client with sensible defaults. Retries are off unless
// WithRetry is called.
func New() *Client {
	r := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(0)

	return &Client{r: r}
}

// WithTimeout sets a custom timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.r.SetTimeout(d)
	}
	return c
}

// WithRetry enables resty's transport-level retries.
func (c *Client) WithRetry(count int, wait, maxWait time.Duration) *Client {
	c.r.SetRetryCount(count).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(maxWait)
	return c
}

// Get sends a GET request with optional query parameters and bearer token.
func (c *Client) Get(ctx context.Context, url, token string, query map[string]string) (*Response, error) {
	req := c.request(ctx, token)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return toResponse(resp), nil
}

// PostForm sends a form-encoded POST request.
func (c *Client) PostForm(ctx context.Context, url, token string, data map[string]string) (*Response, error) {
	resp, err := c.request(ctx, token).SetFormData(data).Post(url)
	if err != nil {
		return nil, err
	}
	return toResponse(resp), nil
}

// PostJSON sends a POST request with JSON body.
func (c *Client) PostJSON(ctx context.Context, url string, body interface{}) (*Response, error) {
	req := c.request(ctx, "").SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(url)
	if err != nil {
		return nil, err
	}
	return toResponse(resp), nil
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	req := c.r.R()
	if ctx != nil {
		req.SetContext(ctx)
	}
	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

func toResponse(resp *resty.Response) *Response {
	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
	}
}
