package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"oppwapay/internal/models"
	"oppwapay/internal/payment"
)

// Response helpers.
func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		limit = 50
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return pages
}

// paginatedNamedResponse returns list payloads shaped as
// { "<key>": [...], "pagination": {...} }.
func paginatedNamedResponse(key string, data interface{}, total int64, page, limit int) map[string]interface{} {
	return map[string]interface{}{
		key: data,
		"pagination": map[string]interface{}{
			"total_record": total,
			"total_pages":  totalPages(total, limit),
			"current_page": page,
			"per_page":     limit,
		},
	}
}

func normalizePaging(limit, page int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if page <= 0 {
		page = 1
	}
	return limit, page
}

// parseBodyAction reads the request body once and extracts its "actions"
// field. Every operator API request is routed on that field.
func parseBodyAction(c echo.Context) (string, []byte, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return "", nil, err
	}
	var envelope struct {
		Actions string `json:"actions"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", nil, err
	}
	c.Set("api_actions", envelope.Actions) // for the request logger
	return envelope.Actions, raw, nil
}

// OrderStore is the order lookup the API needs.
type OrderStore interface {
	FindEventBySlug(ctx context.Context, slug string) (*models.Event, error)
	FindByEventAndCode(ctx context.Context, eventSlug, code string) (*models.Order, error)
}

// PaymentStore is the payment persistence the API needs.
type PaymentStore interface {
	FindAll(ctx context.Context, eventID uint, state string, limit, page int) ([]models.OrderPayment, int64, error)
	FindByID(ctx context.Context, id uint) (*models.OrderPayment, error)
	Create(ctx context.Context, p *models.OrderPayment) error
}

// RefundStore is the refund persistence the API needs.
type RefundStore interface {
	FindByPayment(ctx context.Context, paymentID uint) ([]models.OrderRefund, error)
	SumOutstanding(ctx context.Context, paymentID uint) (int64, error)
	Create(ctx context.Context, r *models.OrderRefund) error
}

// SettingStore is the provider settings access the API needs.
type SettingStore interface {
	GetAll(ctx context.Context, eventID uint, brand string) ([]models.ProviderSetting, error)
	Set(ctx context.Context, eventID uint, brand, name, value string) error
	ProviderConfig(ctx context.Context, eventID uint, brand string) (payment.ProviderConfig, error)
}

// Repos bundles all repositories needed by API handlers.
type Repos struct {
	Orders   OrderStore
	Payments PaymentStore
	Refunds  RefundStore
	Settings SettingStore
}
