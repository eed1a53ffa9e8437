package models

import (
	"time"

	"gorm.io/datatypes"
)

// Assignment is a tracked piece of coursework with its reminder delivery state.
// Reminders holds the milestone names already fired; Assignees holds platform
// user ids, an empty set meaning the whole cohort.
type Assignment struct {
	EntryID     uint                        `gorm:"primaryKey" json:"entry_id"`
	Title       string                      `gorm:"size:2000;not null" json:"title"`
	Classroom   string                      `gorm:"size:4000" json:"classroom,omitempty"`
	SharedDoc   string                      `gorm:"size:4000" json:"shared_doc,omitempty"`
	Tutor       string                      `gorm:"size:64;not null" json:"tutor"`
	CreatedAt   time.Time                   `gorm:"not null" json:"created_at"`
	DueBy       time.Time                   `gorm:"not null" json:"due_by"`
	CreatedByID *uint                       `json:"created_by,omitempty"`
	CreatedBy   *Student                    `gorm:"foreignKey:CreatedByID" json:"-"`
	Assignees   datatypes.JSONSlice[string] `gorm:"type:json" json:"assignees"`
	Finished    bool                        `gorm:"not null;default:false" json:"finished"`
	Submitted   bool                        `gorm:"not null;default:false" json:"submitted"`
	Reminders   datatypes.JSONSlice[string] `gorm:"type:json" json:"reminders"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// HasReminder reports whether the named milestone has already been recorded.
func (a Assignment) HasReminder(name string) bool {
	for _, sent := range a.Reminders {
		if sent == name {
			return true
		}
	}
	return false
}

// IsPastDue returns true when the deadline has already passed at the reference instant.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueBy)
}
