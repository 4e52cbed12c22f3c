// Package visitor holds the registered-user entity and its relational store.
package visitor

import (
	"fmt"
	"time"
)

// Status is the admission state of a visitor.
// Values match the original table contents, do not renumber.
type Status int

const (
	StatusProcessing Status = 1
	StatusDeclined   Status = 2
	StatusVerified   Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusProcessing:
		return "processing"
	case StatusDeclined:
		return "declined"
	case StatusVerified:
		return "verified"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Visitor is one row per Telegram chat. ChatID is assigned by the transport
// and never reassigned; rows are created lazily on first contact and never
// deleted.
type Visitor struct {
	ChatID    int64     `gorm:"column:chat_id;primaryKey;autoIncrement:false"`
	IsAdmin   bool      `gorm:"column:is_admin;default:false"`
	Model     string    `gorm:"column:model;default:gpt-4o-mini"`
	Status    Status    `gorm:"column:status;default:1"`
	UserID    int64     `gorm:"column:user_id"`
	FullName  string    `gorm:"column:full_name"`
	Username  string    `gorm:"column:username"`
	Comment   string    `gorm:"column:comment"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName keeps the original table name.
func (Visitor) TableName() string {
	return "visitor"
}

// Short returns the compact display form used in admin-facing lists.
func (v *Visitor) Short() string {
	return fmt.Sprintf("%s @%s", v.FullName, v.Username)
}

func (v *Visitor) String() string {
	return fmt.Sprintf("%s @%s со статусом %s и моделью %s", v.FullName, v.Username, v.Status, v.Model)
}
