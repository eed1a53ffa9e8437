package dto

import (
	"time"

	"github.com/noah-isme/cohort-assistant/internal/models"
)

// DueByLayout is the accepted due-date input form (two or four digit year).
const (
	DueByLayout     = "02/01/06 15:04"
	DueByLayoutLong = "02/01/2006 15:04"
)

// AssignmentCreateRequest is the add-flow payload.
type AssignmentCreateRequest struct {
	Title     string   `json:"title" validate:"required,min=2,max=2000"`
	Classroom string   `json:"classroom" validate:"omitempty,max=4000,url"`
	SharedDoc string   `json:"shared_doc" validate:"omitempty,max=4000,url"`
	Tutor     string   `json:"tutor" validate:"required"`
	DueBy     string   `json:"due_by" validate:"required,min=14,max=16"`
	Assignees []string `json:"assignees" validate:"max=20"`
	CreatedBy string   `json:"created_by" validate:"required"`
}

// AssignmentUpdateRequest is the edit-flow payload; nil fields are untouched.
type AssignmentUpdateRequest struct {
	Title     *string `json:"title" validate:"omitempty,min=2,max=2000"`
	Classroom *string `json:"classroom" validate:"omitempty,max=4000"`
	SharedDoc *string `json:"shared_doc" validate:"omitempty,max=4000"`
	Tutor     *string `json:"tutor"`
	DueBy     *string `json:"due_by" validate:"omitempty,min=14,max=16"`
	Finished  *bool   `json:"finished"`
	Submitted *bool   `json:"submitted"`
}

// AssignmentResponse is the list-item rendering of an assignment.
type AssignmentResponse struct {
	EntryID   uint      `json:"entry_id"`
	Title     string    `json:"title"`
	Tutor     string    `json:"tutor"`
	DueBy     time.Time `json:"due_by"`
	Finished  bool      `json:"finished"`
	Submitted bool      `json:"submitted"`
}

// AssignmentDetail is the full view rendering.
type AssignmentDetail struct {
	EntryID       uint      `json:"entry_id"`
	Title         string    `json:"title"`
	Classroom     string    `json:"classroom,omitempty"`
	SharedDoc     string    `json:"shared_doc,omitempty"`
	Tutor         string    `json:"tutor"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     string    `json:"created_by,omitempty"`
	DueBy         time.Time `json:"due_by"`
	Assignees     []string  `json:"assignees"`
	Finished      bool      `json:"finished"`
	Submitted     bool      `json:"submitted"`
	RemindersSent []string  `json:"reminders_sent"`
}

// NewAssignmentResponse maps a model row to its list rendering.
func NewAssignmentResponse(a models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		EntryID:   a.EntryID,
		Title:     a.Title,
		Tutor:     a.Tutor,
		DueBy:     a.DueBy,
		Finished:  a.Finished,
		Submitted: a.Submitted,
	}
}

// NewAssignmentResponseSlice maps a slice of rows.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	out := make([]AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, NewAssignmentResponse(a))
	}
	return out
}

// NewAssignmentDetail maps a model row to its full rendering.
func NewAssignmentDetail(a models.Assignment) AssignmentDetail {
	detail := AssignmentDetail{
		EntryID:       a.EntryID,
		Title:         a.Title,
		Classroom:     a.Classroom,
		SharedDoc:     a.SharedDoc,
		Tutor:         a.Tutor,
		CreatedAt:     a.CreatedAt,
		DueBy:         a.DueBy,
		Assignees:     a.Assignees,
		Finished:      a.Finished,
		Submitted:     a.Submitted,
		RemindersSent: a.Reminders,
	}
	if a.CreatedBy != nil {
		detail.CreatedBy = a.CreatedBy.UserID
	}
	if detail.Assignees == nil {
		detail.Assignees = []string{}
	}
	if detail.RemindersSent == nil {
		detail.RemindersSent = []string{}
	}
	return detail
}
