package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// MessageType enumerates the logical kinds of outbound broadcasts
type MessageType string

const (
	MessageTypePage             MessageType = "page"
	MessageTypePageAnnouncement MessageType = "page-announcement"
	MessageTypeAccount          MessageType = "account"
	MessageTypeDepartmentText   MessageType = "department-text"
	MessageTypeDepartmentAnnc   MessageType = "department-announcement"
	MessageTypeDepartmentAlert  MessageType = "department-alert"
	MessageTypeAlert            MessageType = "alert"
	MessageTypeTranscript       MessageType = "transcript"
)

// DeliveryMark pairs a provider callback time with the recipient it concerns
type DeliveryMark struct {
	Time  time.Time `json:"time"`
	Phone string    `json:"phone"`
}

// DeliveryMarks is a jsonb-backed append-only list of delivery outcomes
type DeliveryMarks []DeliveryMark

func (d DeliveryMarks) Value() (driver.Value, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d)
}

func (d *DeliveryMarks) Scan(src any) error {
	if src == nil {
		*d = DeliveryMarks{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into DeliveryMarks", src)
	}
	return json.Unmarshal(data, d)
}

// MessageRecord is the durable audit row for one logical broadcast.
// MessageKey is the dispatch timestamp in milliseconds and doubles as the
// provider correlation token, so redelivered events overwrite rather than
// duplicate.
type MessageRecord struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	MessageKey int64       `gorm:"not null;uniqueIndex:uk_message_records_key" json:"message_key"`
	Type       MessageType `gorm:"size:32;not null;index:idx_message_records_type" json:"type"`

	RecipientCount int            `gorm:"not null;default:0" json:"recipient_count"`
	Body           string         `gorm:"type:text;not null" json:"body"`
	Media          pq.StringArray `gorm:"type:text[]" json:"media"`

	FileKey    *string `gorm:"size:64;index:idx_message_records_file_key" json:"file_key,omitempty"`
	Talkgroup  *int64  `gorm:"index:idx_message_records_talkgroup" json:"talkgroup,omitempty"`
	Department *string `gorm:"size:64;index:idx_message_records_department" json:"department,omitempty"`
	TestMode   *bool   `gorm:"default:false" json:"test_mode"`

	Sent        DeliveryMarks `gorm:"type:jsonb;not null;default:'[]'" json:"sent"`
	Delivered   DeliveryMarks `gorm:"type:jsonb;not null;default:'[]'" json:"delivered"`
	Undelivered DeliveryMarks `gorm:"type:jsonb;not null;default:'[]'" json:"undelivered"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_message_records_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (MessageRecord) TableName() string { return "message_records" }

// MessageRecordFilter provides filter fields for repository queries
type MessageRecordFilter struct {
	ID            *uint
	MessageKey    *int64
	Type          *MessageType
	Department    *string
	Talkgroup     *int64
	TestMode      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
