package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"oppwapay/internal/models"
)

// Payload is a decoded gateway response, kept as a generic map so it can be
// stored verbatim on the payment or refund record.
type Payload map[string]interface{}

// ParsePayload decodes a raw gateway response body.
func ParsePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayProtocolError, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: empty document", ErrGatewayProtocolError)
	}
	return p, nil
}

// PayloadFromInfo decodes a stored info column. Empty or invalid input yields nil.
func PayloadFromInfo(info string) Payload {
	if info == "" {
		return nil
	}
	var p Payload
	if err := json.Unmarshal([]byte(info), &p); err != nil {
		return nil
	}
	return p
}

// ID returns the gateway id of the resource.
func (p Payload) ID() string {
	id, _ := p["id"].(string)
	return id
}

// CheckoutReference returns the checkout id ("ndc") a payment document refers to.
func (p Payload) CheckoutReference() string {
	ndc, _ := p["ndc"].(string)
	return ndc
}

// ResultCode returns result.code, or an empty string if absent.
func (p Payload) ResultCode() string {
	result, _ := p["result"].(map[string]interface{})
	code, _ := result["code"].(string)
	return code
}

// ResultDescription returns result.description, or an empty string if absent.
func (p Payload) ResultDescription() string {
	result, _ := p["result"].(map[string]interface{})
	desc, _ := result["description"].(string)
	return desc
}

// JSON serialises the payload for storage.
func (p Payload) JSON() string {
	if p == nil {
		return ""
	}
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

// CheckoutRequest carries the fields of a POST /v1/checkouts call.
type CheckoutRequest struct {
	AccessToken           string
	EntityID              string
	Amount                int64
	Currency              string
	MerchantTransactionID string
	Testmode              bool
}

// CheckoutResponse is the parsed answer of a checkout creation.
type CheckoutResponse struct {
	CheckoutID string
	Raw        Payload
}

// ResourceRequest carries the fields of a resource status lookup.
type ResourceRequest struct {
	AccessToken  string
	ResourcePath string
	EntityID     string
	Testmode     bool
}

// RefundRequest carries the fields of a POST /v1/payments/{id} refund call.
type RefundRequest struct {
	AccessToken      string
	EntityID         string
	Amount           int64
	Currency         string
	GatewayPaymentID string
	Testmode         bool
}

// Gateway is the OPPWA REST API as seen by the adapter.
type Gateway interface {
	EndpointURL(testmode bool) string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
	FetchResource(ctx context.Context, req ResourceRequest) (Payload, error)
	CreateRefund(ctx context.Context, req RefundRequest) (Payload, error)
}

// Ledger persists payment and refund records. Transition methods update the
// in-memory State only after the store accepted the change and return
// models.ErrInvalidTransition for moves the state machine forbids.
type Ledger interface {
	SavePaymentInfo(ctx context.Context, p *models.OrderPayment) error
	TransitionPayment(ctx context.Context, p *models.OrderPayment, to string) error
	SaveRefundInfo(ctx context.Context, r *models.OrderRefund) error
	TransitionRefund(ctx context.Context, r *models.OrderRefund, to string) error
}

// ResultDeduper remembers which gateway results were already applied.
type ResultDeduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Alerter pushes operator-facing notifications.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}
