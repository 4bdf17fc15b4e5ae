package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"oppwapay/internal/models"
)

// PaymentRepository handles order payment database operations.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindAll returns payments of an event with pagination and an optional state filter.
func (r *PaymentRepository) FindAll(ctx context.Context, eventID uint, state string, limit, page int) ([]models.OrderPayment, int64, error) {
	var payments []models.OrderPayment
	var total int64

	db := r.db.WithContext(ctx).Model(&models.OrderPayment{}).
		Joins("JOIN orders ON orders.id = order_payments.order_id").
		Where("orders.event_id = ?", eventID)
	if state != "" {
		db = db.Where("order_payments.state = ?", state)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Preload("Order").Limit(limit).Offset(offset).
		Order("order_payments.created_at DESC").Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// FindByID returns a payment with its order and event loaded.
func (r *PaymentRepository) FindByID(ctx context.Context, id uint) (*models.OrderPayment, error) {
	var p models.OrderPayment
	if err := r.db.WithContext(ctx).Preload("Order.Event").First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindForOrder returns a payment that belongs to the given order.
func (r *PaymentRepository) FindForOrder(ctx context.Context, order *models.Order, id uint) (*models.OrderPayment, error) {
	var p models.OrderPayment
	if err := r.db.WithContext(ctx).Where("id = ? AND order_id = ?", id, order.ID).First(&p).Error; err != nil {
		return nil, err
	}
	p.Order = order
	return &p, nil
}

// FindPendingWithResource returns pending payments that can be re-polled.
func (r *PaymentRepository) FindPendingWithResource(ctx context.Context, limit int) ([]models.OrderPayment, error) {
	var payments []models.OrderPayment
	err := r.db.WithContext(ctx).Preload("Order.Event").
		Where("state = ? AND resource_path <> ''", models.PaymentStatePending).
		Order("updated_at ASC").Limit(limit).Find(&payments).Error
	return payments, err
}

// FindStaleCreated returns created payments last touched before the cutoff.
func (r *PaymentRepository) FindStaleCreated(ctx context.Context, before time.Time, limit int) ([]models.OrderPayment, error) {
	var payments []models.OrderPayment
	err := r.db.WithContext(ctx).Preload("Order.Event").
		Where("state = ? AND updated_at < ?", models.PaymentStateCreated, before).
		Order("updated_at ASC").Limit(limit).Find(&payments).Error
	return payments, err
}

// Create inserts a payment in state created with the next local id of its order.
func (r *PaymentRepository) Create(ctx context.Context, p *models.OrderPayment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxLocal int
		if err := tx.Model(&models.OrderPayment{}).
			Where("order_id = ?", p.OrderID).
			Select("COALESCE(MAX(local_id), 0)").Scan(&maxLocal).Error; err != nil {
			return err
		}
		p.LocalID = maxLocal + 1
		if p.State == "" {
			p.State = models.PaymentStateCreated
		}
		return tx.Omit(clause.Associations).Create(p).Error
	})
}

// SavePaymentInfo persists the gateway correlation fields of a payment.
func (r *PaymentRepository) SavePaymentInfo(ctx context.Context, p *models.OrderPayment) error {
	return r.db.WithContext(ctx).Model(&models.OrderPayment{}).Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"correlation_id": p.CorrelationID,
			"info":           p.Info,
			"resource_path":  p.ResourcePath,
			"updated_at":     time.Now(),
		}).Error
}

// TransitionPayment moves a payment to a new state under a row lock. A
// confirmed payment marks its order paid once confirmed payments cover the total.
func (r *PaymentRepository) TransitionPayment(ctx context.Context, p *models.OrderPayment, to string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.OrderPayment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, p.ID).Error; err != nil {
			return err
		}
		if !models.CanTransitionPayment(current.State, to) {
			p.State = current.State
			return fmt.Errorf("%w: payment %d %s -> %s", models.ErrInvalidTransition, p.ID, current.State, to)
		}
		if err := tx.Model(&current).Updates(map[string]interface{}{
			"state":      to,
			"updated_at": time.Now(),
		}).Error; err != nil {
			return err
		}
		if to == models.PaymentStateConfirmed {
			return markOrderPaidIfCovered(tx, current.OrderID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.State = to
	return nil
}

func markOrderPaidIfCovered(tx *gorm.DB, orderID uint) error {
	var order models.Order
	if err := tx.First(&order, orderID).Error; err != nil {
		return err
	}
	var paid int64
	if err := tx.Model(&models.OrderPayment{}).
		Where("order_id = ? AND state = ?", orderID, models.PaymentStateConfirmed).
		Select("COALESCE(SUM(amount), 0)").Scan(&paid).Error; err != nil {
		return err
	}
	if paid < order.Total || order.Status == models.OrderStatusPaid {
		return nil
	}
	return tx.Model(&order).Update("status", models.OrderStatusPaid).Error
}
