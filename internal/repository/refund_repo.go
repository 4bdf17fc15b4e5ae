package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"oppwapay/internal/models"
)

// RefundRepository handles order refund database operations.
type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// FindByPayment returns all refunds of a payment.
func (r *RefundRepository) FindByPayment(ctx context.Context, paymentID uint) ([]models.OrderRefund, error) {
	var refunds []models.OrderRefund
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("local_id ASC").Find(&refunds).Error
	return refunds, err
}

// SumOutstanding returns the amount of refunds that are done or still in flight.
func (r *RefundRepository) SumOutstanding(ctx context.Context, paymentID uint) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&models.OrderRefund{}).
		Where("payment_id = ? AND state IN ?", paymentID,
			[]string{models.RefundStateCreated, models.RefundStateTransit, models.RefundStateDone}).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error
	return sum, err
}

// Create inserts a refund in state created with the next local id of its payment.
func (r *RefundRepository) Create(ctx context.Context, refund *models.OrderRefund) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxLocal int
		if err := tx.Model(&models.OrderRefund{}).
			Where("payment_id = ?", refund.PaymentID).
			Select("COALESCE(MAX(local_id), 0)").Scan(&maxLocal).Error; err != nil {
			return err
		}
		refund.LocalID = maxLocal + 1
		if refund.State == "" {
			refund.State = models.RefundStateCreated
		}
		return tx.Omit(clause.Associations).Create(refund).Error
	})
}

// SaveRefundInfo persists the gateway fields of a refund.
func (r *RefundRepository) SaveRefundInfo(ctx context.Context, refund *models.OrderRefund) error {
	return r.db.WithContext(ctx).Model(&models.OrderRefund{}).Where("id = ?", refund.ID).
		Updates(map[string]interface{}{
			"correlation_id": refund.CorrelationID,
			"info":           refund.Info,
			"updated_at":     time.Now(),
		}).Error
}

// TransitionRefund moves a refund to a new state under a row lock. When done
// refunds cover the payment amount the payment becomes refunded.
func (r *RefundRepository) TransitionRefund(ctx context.Context, refund *models.OrderRefund, to string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.OrderRefund
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, refund.ID).Error; err != nil {
			return err
		}
		if !models.CanTransitionRefund(current.State, to) {
			refund.State = current.State
			return fmt.Errorf("%w: refund %d %s -> %s", models.ErrInvalidTransition, refund.ID, current.State, to)
		}
		if err := tx.Model(&current).Updates(map[string]interface{}{
			"state":      to,
			"updated_at": time.Now(),
		}).Error; err != nil {
			return err
		}
		if to == models.RefundStateDone {
			return markPaymentRefundedIfCovered(tx, current.PaymentID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	refund.State = to
	return nil
}

func markPaymentRefundedIfCovered(tx *gorm.DB, paymentID uint) error {
	var p models.OrderPayment
	if err := tx.First(&p, paymentID).Error; err != nil {
		return err
	}
	var done int64
	if err := tx.Model(&models.OrderRefund{}).
		Where("payment_id = ? AND state = ?", paymentID, models.RefundStateDone).
		Select("COALESCE(SUM(amount), 0)").Scan(&done).Error; err != nil {
		return err
	}
	if done < p.Amount || !models.CanTransitionPayment(p.State, models.PaymentStateRefunded) {
		return nil
	}
	return tx.Model(&p).Update("state", models.PaymentStateRefunded).Error
}
