package models

// APIResponse is the standard response envelope of the operator API.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

// PaginatedResponse wraps list results with pagination info.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// --- Payment API Request Payloads ---

// CreatePaymentRequest starts a new payment attempt for an order.
type CreatePaymentRequest struct {
	Actions  string `json:"actions"`
	Event    string `json:"event"`
	Order    string `json:"order"`
	Provider string `json:"provider"`
	Amount   string `json:"amount,omitempty"`
}

// PaymentDetailRequest selects one payment.
type PaymentDetailRequest struct {
	Actions   string `json:"actions"`
	PaymentID uint   `json:"payment_id"`
}

// ListPaymentsRequest lists payments of an event.
type ListPaymentsRequest struct {
	Actions string `json:"actions"`
	Event   string `json:"event"`
	State   string `json:"state,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Page    int    `json:"page,omitempty"`
}

// --- Refund API Request Payloads ---

// CreateRefundRequest refunds (part of) a confirmed payment.
type CreateRefundRequest struct {
	Actions   string `json:"actions"`
	PaymentID uint   `json:"payment_id"`
	Amount    string `json:"amount"`
}

// ListRefundsRequest lists refunds of a payment.
type ListRefundsRequest struct {
	Actions   string `json:"actions"`
	PaymentID uint   `json:"payment_id"`
}

// --- Settings API Request Payloads ---

// SetProviderSettingRequest writes one provider setting.
type SetProviderSettingRequest struct {
	Actions string `json:"actions"`
	Event   string `json:"event"`
	Brand   string `json:"brand"`
	Name    string `json:"name"`
	Value   string `json:"value"`
}

// ProviderSettingsRequest reads all settings of a brand.
type ProviderSettingsRequest struct {
	Actions string `json:"actions"`
	Event   string `json:"event"`
	Brand   string `json:"brand"`
}
