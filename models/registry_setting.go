package models

import "time"

// Registry setting keys
const (
	RegistrySettingPaused = "paused"
)

// RegistrySetting is a single key/value flag of the campaign registry
type RegistrySetting struct {
	Key       string    `gorm:"column:setting_key;primaryKey;size:64" json:"key"`
	Value     string    `gorm:"size:255;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RegistrySetting) TableName() string { return "registry_settings" }
