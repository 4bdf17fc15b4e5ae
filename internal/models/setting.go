package models

// ProviderSetting maps to the `provider_settings` table (key-value per event and brand).
type ProviderSetting struct {
	ID      uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EventID uint   `gorm:"column:event_id;uniqueIndex:idx_setting_event_brand_name" json:"event_id"`
	Brand   string `gorm:"column:brand;size:50;uniqueIndex:idx_setting_event_brand_name" json:"brand"`
	Name    string `gorm:"column:name;size:100;uniqueIndex:idx_setting_event_brand_name" json:"name"`
	Value   string `gorm:"column:value;type:text" json:"value"`
}

func (ProviderSetting) TableName() string {
	return "provider_settings"
}
