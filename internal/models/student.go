package models

import (
	"time"

	"gorm.io/datatypes"
)

// Student is a verified cohort member: a college student id bound to a platform user.
type Student struct {
	EntryID   uint              `gorm:"primaryKey" json:"entry_id"`
	StudentID string            `gorm:"size:7;uniqueIndex;not null" json:"student_id"`
	UserID    string            `gorm:"size:32;uniqueIndex;not null" json:"user_id"`
	Name      string            `gorm:"size:32;not null" json:"name"`
	IPInfo    datatypes.JSONMap `gorm:"type:json" json:"-"`
	CreatedAt time.Time         `json:"created_at"`
}
