package models

import "time"

// Order statuses.
const (
	OrderStatusPending  = "pending"
	OrderStatusPaid     = "paid"
	OrderStatusCanceled = "canceled"
)

// Event maps to the `events` table.
type Event struct {
	ID       uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Slug     string `gorm:"column:slug;size:50;uniqueIndex" json:"slug"`
	Name     string `gorm:"column:name;size:200" json:"name"`
	Currency string `gorm:"column:currency;size:3" json:"currency"`
	Testmode bool   `gorm:"column:testmode" json:"testmode"`
}

func (Event) TableName() string {
	return "events"
}

// Order maps to the `orders` table.
type Order struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EventID   uint      `gorm:"column:event_id;uniqueIndex:idx_order_event_code" json:"event_id"`
	Event     *Event    `gorm:"foreignKey:EventID" json:"event,omitempty"`
	Code      string    `gorm:"column:code;size:16;uniqueIndex:idx_order_event_code" json:"code"`
	Secret    string    `gorm:"column:secret;size:32" json:"-"`
	Status    string    `gorm:"column:status;size:20;default:pending" json:"status"`
	Testmode  bool      `gorm:"column:testmode" json:"testmode"`
	Total     int64     `gorm:"column:total" json:"total"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Order) TableName() string {
	return "orders"
}

// IsPaid reports whether the order has been paid in full.
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}
