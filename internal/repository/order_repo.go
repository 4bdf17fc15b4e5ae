package repository

import (
	"context"

	"gorm.io/gorm"

	"oppwapay/internal/models"
)

// OrderRepository handles event and order database operations.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindEventBySlug returns an event by its slug.
func (r *OrderRepository) FindEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	var ev models.Event
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

// FindByEventAndCode returns an order of an event with the event loaded.
func (r *OrderRepository) FindByEventAndCode(ctx context.Context, eventSlug, code string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Event").
		Joins("JOIN events ON events.id = orders.event_id").
		Where("events.slug = ? AND orders.code = ?", eventSlug, code).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
