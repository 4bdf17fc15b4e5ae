package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"oppwapay/internal/models"
	"oppwapay/internal/payment"
)

// SettingRepository reads and writes per-event provider settings.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// GetAll returns every setting of a brand for an event.
func (r *SettingRepository) GetAll(ctx context.Context, eventID uint, brand string) ([]models.ProviderSetting, error) {
	var rows []models.ProviderSetting
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND brand = ?", eventID, brand).
		Order("name ASC").Find(&rows).Error
	return rows, err
}

// Set upserts one setting.
func (r *SettingRepository) Set(ctx context.Context, eventID uint, brand, name, value string) error {
	row := models.ProviderSetting{EventID: eventID, Brand: brand, Name: name, Value: value}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "brand"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
}

// ProviderConfig loads the typed configuration of a brand for an event.
func (r *SettingRepository) ProviderConfig(ctx context.Context, eventID uint, brand string) (payment.ProviderConfig, error) {
	rows, err := r.GetAll(ctx, eventID, brand)
	if err != nil {
		return payment.ProviderConfig{}, err
	}
	return ParseProviderConfig(rows), nil
}

// ParseProviderConfig turns key-value rows into a ProviderConfig.
func ParseProviderConfig(rows []models.ProviderSetting) payment.ProviderConfig {
	cfg := payment.ProviderConfig{
		Endpoint:         payment.EndpointLive,
		EntityIDByMethod: make(map[string]string),
		EnabledMethods:   make(map[string]bool),
	}

	for _, row := range rows {
		value := strings.TrimSpace(row.Value)
		switch {
		case row.Name == "_enabled":
			cfg.Enabled = parseBool(value)
		case row.Name == "access_token":
			cfg.AccessToken = value
		case row.Name == "endpoint":
			if strings.EqualFold(value, string(payment.EndpointTest)) {
				cfg.Endpoint = payment.EndpointTest
			}
		case row.Name == "entityId":
			cfg.EntityID = value
		case strings.HasPrefix(row.Name, "entityId_"):
			if value != "" {
				cfg.EntityIDByMethod[strings.ToLower(strings.TrimPrefix(row.Name, "entityId_"))] = value
			}
		case strings.HasPrefix(row.Name, "method_"):
			cfg.EnabledMethods[strings.ToUpper(strings.TrimPrefix(row.Name, "method_"))] = parseBool(value)
		}
	}
	return cfg
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
