package models

import "time"

// AppStatePO is the GORM model for widget app state.
type AppStatePO struct {
	ConversationID string    `gorm:"primaryKey;type:varchar(128)"`
	AppID          string    `gorm:"primaryKey;type:varchar(128)"`
	State          string    `gorm:"type:jsonb;not null"`
	Version        int64     `gorm:"not null;default:1"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for AppStatePO
func (AppStatePO) TableName() string {
	return "app_states"
}
