package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Message struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SenderID    uuid.UUID `json:"sender_id" gorm:"type:uuid;not null;index"`
	RecipientID uuid.UUID `json:"recipient_id" gorm:"type:uuid;not null;index:idx_messages_recipient_created,priority:1"`
	Body        string    `json:"body" gorm:"size:140;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"index:idx_messages_recipient_created,priority:2"`

	Sender    User `json:"sender" gorm:"foreignKey:SenderID"`
	Recipient User `json:"recipient" gorm:"foreignKey:RecipientID"`
}

// Notification holds the latest value of a named per-user signal, such as
// the unread message count or an export's progress.
type Notification struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"size:128;index;not null"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Timestamp   time.Time `json:"timestamp" gorm:"column:issued_at;index"`
	PayloadJSON string    `json:"-" gorm:"type:text"`
}

func (Message) TableName() string {
	return "messages"
}

func (Notification) TableName() string {
	return "notifications"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	return assignID(&m.ID)
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	return assignID(&n.ID)
}

// Payload decodes PayloadJSON into dest.
func (n *Notification) Payload(dest interface{}) error {
	if err := json.Unmarshal([]byte(n.PayloadJSON), dest); err != nil {
		return fmt.Errorf("failed to decode notification payload: %w", err)
	}
	return nil
}

func assignID(id *uuid.UUID) error {
	if *id != uuid.Nil {
		return nil
	}
	v, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate ID: %w", err)
	}
	*id = v
	return nil
}
