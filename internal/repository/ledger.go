package repository

import (
	"context"

	"gorm.io/gorm"

	"oppwapay/internal/models"
)

// Ledger combines the payment and refund repositories into the store the
// payment adapter writes through.
type Ledger struct {
	Payments *PaymentRepository
	Refunds  *RefundRepository
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{
		Payments: NewPaymentRepository(db),
		Refunds:  NewRefundRepository(db),
	}
}

func (l *Ledger) SavePaymentInfo(ctx context.Context, p *models.OrderPayment) error {
	return l.Payments.SavePaymentInfo(ctx, p)
}

func (l *Ledger) TransitionPayment(ctx context.Context, p *models.OrderPayment, to string) error {
	return l.Payments.TransitionPayment(ctx, p, to)
}

func (l *Ledger) SaveRefundInfo(ctx context.Context, r *models.OrderRefund) error {
	return l.Refunds.SaveRefundInfo(ctx, r)
}

func (l *Ledger) TransitionRefund(ctx context.Context, r *models.OrderRefund, to string) error {
	return l.Refunds.TransitionRefund(ctx, r, to)
}
