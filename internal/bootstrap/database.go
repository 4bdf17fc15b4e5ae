package bootstrap

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"oppwapay/internal/models"
	"oppwapay/internal/payment"
	"oppwapay/internal/pkg/utils"
)

// DemoEventSlug is the event seeded for a fresh database.
const DemoEventSlug = "demo"

// MigrateAndSeed ensures required tables exist and inserts baseline rows.
func MigrateAndSeed(db *gorm.DB, registry *payment.Registry) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db, registry); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.Event{},
		&models.Order{},
		&models.OrderPayment{},
		&models.OrderRefund{},
		&models.ProviderSetting{},
	}
}

func seedDefaults(db *gorm.DB, registry *payment.Registry) error {
	return db.Transaction(func(tx *gorm.DB) error {
		event, err := ensureDemoEvent(tx)
		if err != nil {
			return err
		}
		if err := ensureDemoOrder(tx, event); err != nil {
			return err
		}
		for _, brand := range registry.All() {
			if err := ensureDefaultProviderSettings(tx, event.ID, brand); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureDemoEvent(tx *gorm.DB) (*models.Event, error) {
	var event models.Event
	err := tx.Where("slug = ?", DemoEventSlug).First(&event).Error
	if err == nil {
		return &event, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	event = models.Event{
		Slug:     DemoEventSlug,
		Name:     "Demo event",
		Currency: "EUR",
		Testmode: true,
	}
	if err := tx.Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func ensureDemoOrder(tx *gorm.DB, event *models.Event) error {
	var count int64
	if err := tx.Model(&models.Order{}).Where("event_id = ?", event.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Omit(clause.Associations).Create(&models.Order{
		EventID:  event.ID,
		Code:     utils.GenerateOrderCode(),
		Secret:   utils.GenerateSecret(),
		Status:   models.OrderStatusPending,
		Testmode: event.Testmode,
		Total:    1000,
	}).Error
}

// ensureDefaultProviderSettings inserts a disabled, test-mode configuration
// for a brand. Existing values are left alone.
func ensureDefaultProviderSettings(tx *gorm.DB, eventID uint, brand *payment.Brand) error {
	defaults := map[string]string{
		"_enabled":                 "false",
		"access_token":             "",
		"endpoint":                 string(payment.EndpointTest),
		brand.EntityIDSettingKey(): "",
	}
	for _, m := range brand.Methods {
		defaults["method_"+m.Code] = "false"
	}

	rows := make([]models.ProviderSetting, 0, len(defaults))
	for name, value := range defaults {
		rows = append(rows, models.ProviderSetting{EventID: eventID, Brand: brand.Identifier, Name: name, Value: value})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}
