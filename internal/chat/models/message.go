package models

import "time"

// MessagePO is the GORM model for messages. The attachment descriptor
// is flattened into nullable columns.
type MessagePO struct {
	ID                 string    `gorm:"primaryKey;type:varchar(36)"`
	ConversationID     string    `gorm:"type:varchar(128);not null;index:idx_messages_conv_created,priority:1"`
	Role               string    `gorm:"type:varchar(16);not null"`
	Type               string    `gorm:"type:varchar(16);not null;default:'message'"`
	Content            string    `gorm:"type:text;not null"`
	Name               string    `gorm:"type:varchar(128)"`
	AttachmentFilename *string   `gorm:"type:varchar(512)"`
	AttachmentMimetype *string   `gorm:"type:varchar(128)"`
	AttachmentSize     *int64    ``
	CreatedAt          time.Time `gorm:"not null;index:idx_messages_conv_created,priority:2"`
}

// TableName returns the table name for MessagePO
func (MessagePO) TableName() string {
	return "messages"
}
