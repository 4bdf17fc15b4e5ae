package models

import (
	"errors"
	"time"
)

// Payment states.
const (
	PaymentStateCreated   = "created"
	PaymentStatePending   = "pending"
	PaymentStateConfirmed = "confirmed"
	PaymentStateFailed    = "failed"
	PaymentStateCanceled  = "canceled"
	PaymentStateRefunded  = "refunded"
)

// Refund states.
const (
	RefundStateCreated  = "created"
	RefundStateTransit  = "transit"
	RefundStateDone     = "done"
	RefundStateFailed   = "failed"
	RefundStateCanceled = "canceled"
)

// ErrInvalidTransition is returned when a state change would move a record
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid state transition")

var paymentTransitions = map[string][]string{
	PaymentStateCreated:   {PaymentStatePending, PaymentStateConfirmed, PaymentStateFailed, PaymentStateCanceled},
	PaymentStatePending:   {PaymentStatePending, PaymentStateConfirmed, PaymentStateFailed, PaymentStateCanceled},
	PaymentStateConfirmed: {PaymentStateRefunded},
}

var refundTransitions = map[string][]string{
	RefundStateCreated: {RefundStateTransit, RefundStateDone, RefundStateFailed, RefundStateCanceled},
	RefundStateTransit: {RefundStateTransit, RefundStateDone, RefundStateFailed, RefundStateCanceled},
}

// CanTransitionPayment reports whether a payment may move from one state to another.
func CanTransitionPayment(from, to string) bool {
	return contains(paymentTransitions[from], to)
}

// CanTransitionRefund reports whether a refund may move from one state to another.
func CanTransitionRefund(from, to string) bool {
	return contains(refundTransitions[from], to)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// OrderPayment maps to the `order_payments` table.
type OrderPayment struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID       uint      `gorm:"column:order_id;uniqueIndex:idx_payment_order_local" json:"order_id"`
	Order         *Order    `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	LocalID       int       `gorm:"column:local_id;uniqueIndex:idx_payment_order_local" json:"local_id"`
	Amount        int64     `gorm:"column:amount" json:"amount"`
	Currency      string    `gorm:"column:currency;size:3" json:"currency"`
	Provider      string    `gorm:"column:provider;size:100" json:"provider"`
	State         string    `gorm:"column:state;size:20;index" json:"state"`
	CorrelationID string    `gorm:"column:correlation_id;size:100;index" json:"correlation_id"`
	Info          string    `gorm:"column:info;type:text" json:"info"`
	ResourcePath  string    `gorm:"column:resource_path;size:500" json:"resource_path"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (OrderPayment) TableName() string {
	return "order_payments"
}

// IsActionable reports whether gateway results may still change the payment.
func (p *OrderPayment) IsActionable() bool {
	return p.State == PaymentStateCreated || p.State == PaymentStatePending
}

// MatchesCorrelation reports whether id equals the stored checkout id.
func (p *OrderPayment) MatchesCorrelation(id string) bool {
	return p.CorrelationID != "" && id == p.CorrelationID
}

// OrderRefund maps to the `order_refunds` table.
type OrderRefund struct {
	ID            uint          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PaymentID     uint          `gorm:"column:payment_id;index" json:"payment_id"`
	Payment       *OrderPayment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
	LocalID       int           `gorm:"column:local_id" json:"local_id"`
	Amount        int64         `gorm:"column:amount" json:"amount"`
	State         string        `gorm:"column:state;size:20;index" json:"state"`
	CorrelationID string        `gorm:"column:correlation_id;size:100" json:"correlation_id"`
	Info          string        `gorm:"column:info;type:text" json:"info"`
	CreatedAt     time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (OrderRefund) TableName() string {
	return "order_refunds"
}

// IsActionable reports whether gateway results may still change the refund.
func (r *OrderRefund) IsActionable() bool {
	return r.State == RefundStateCreated || r.State == RefundStateTransit
}
