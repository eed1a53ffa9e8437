package models

import "time"

// TokenLength is the number of random bytes in a verification token; the
// transmitted code is its hex form, twice as many characters.
const TokenLength = 16

// VerifyCode is a one-time emailed verification token binding a pending
// platform user to a college student id.
type VerifyCode struct {
	EntryID   uint      `gorm:"primaryKey" json:"entry_id"`
	Code      string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Bind      string    `gorm:"size:32;not null" json:"bind"`
	StudentID string    `gorm:"size:7;not null" json:"student_id"`
	Name      string    `gorm:"size:32" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
