package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/cohort-assistant/internal/clock"
	"github.com/noah-isme/cohort-assistant/internal/dto"
	"github.com/noah-isme/cohort-assistant/internal/models"
	"github.com/noah-isme/cohort-assistant/internal/repository"
)

var tutors = []string{"jay", "zach", "ian", "rebecca", "lupupa", "other"}

func assignmentFixture(repo *memAssignmentRepo, students *memStudentRepo, now time.Time) AssignmentService {
	return NewAssignmentService(repo, students, tutors, clock.Fixed(now), testLogger())
}

func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestCreateAssignment(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemAssignmentRepo()
	students := &memStudentRepo{items: []models.Student{
		{EntryID: 1, StudentID: "B123456", UserID: "42", Name: "Noah"},
	}}
	svc := assignmentFixture(repo, students, now)

	detail, err := svc.Create(context.Background(), dto.AssignmentCreateRequest{
		Title:     "networking report",
		Tutor:     "Jay",
		DueBy:     "10/01/24 12:00",
		Assignees: []string{"42"},
		CreatedBy: "42",
	})
	require.NoError(t, err)

	assert.Equal(t, "networking report", detail.Title)
	assert.Equal(t, "jay", detail.Tutor, "tutor is stored lowercased")
	assert.Equal(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC), detail.DueBy)
	assert.Equal(t, now, detail.CreatedAt)

	stored, err := repo.GetByID(context.Background(), detail.EntryID)
	require.NoError(t, err)
	require.NotNil(t, stored.CreatedByID)
	assert.Equal(t, uint(1), *stored.CreatedByID)
}

func TestCreateAssignmentAcceptsLongYearForm(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := assignmentFixture(newMemAssignmentRepo(), &memStudentRepo{}, now)

	detail, err := svc.Create(context.Background(), dto.AssignmentCreateRequest{
		Title:     "databases coursework",
		Tutor:     "zach",
		DueBy:     "10/01/2024 12:00",
		CreatedBy: "42",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC), detail.DueBy)
}

func TestCreateAssignmentStripsMarkup(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := assignmentFixture(newMemAssignmentRepo(), &memStudentRepo{}, now)

	detail, err := svc.Create(context.Background(), dto.AssignmentCreateRequest{
		Title:     `report <script>alert("x")</script>`,
		Tutor:     "jay",
		DueBy:     "10/01/24 12:00",
		CreatedBy: "42",
	})
	require.NoError(t, err)
	assert.NotContains(t, detail.Title, "<script>")
}

func TestCreateAssignmentRejectsUnknownTutor(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := assignmentFixture(newMemAssignmentRepo(), &memStudentRepo{}, now)

	_, err := svc.Create(context.Background(), dto.AssignmentCreateRequest{
		Title:     "report",
		Tutor:     "nobody",
		DueBy:     "10/01/24 12:00",
		CreatedBy: "42",
	})
	require.ErrorIs(t, err, ErrUnknownTutor)
}

func TestCreateAssignmentRejectsBadDueDate(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := assignmentFixture(newMemAssignmentRepo(), &memStudentRepo{}, now)

	_, err := svc.Create(context.Background(), dto.AssignmentCreateRequest{
		Title:     "report",
		Tutor:     "jay",
		DueBy:     "2024-01-10 12:00",
		CreatedBy: "42",
	})
	require.ErrorIs(t, err, ErrBadDueDate)
}

func TestCreateAssignmentRejectsPastDueDate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := assignmentFixture(newMemAssignmentRepo(), &memStudentRepo{}, now)

	_, err := svc.Create(context.Background(), dto.AssignmentCreateRequest{
		Title:     "report",
		Tutor:     "jay",
		DueBy:     "10/01/24 12:00",
		CreatedBy: "42",
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateAssignmentSurfacesStorageFailure(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemAssignmentRepo()
	repo.createErr = fmt.Errorf("%w: disk I/O error", repository.ErrStorage)
	svc := assignmentFixture(repo, &memStudentRepo{}, now)

	_, err := svc.Create(context.Background(), dto.AssignmentCreateRequest{
		Title:     "report",
		Tutor:     "jay",
		DueBy:     "10/01/24 12:00",
		CreatedBy: "42",
	})
	require.ErrorIs(t, err, repository.ErrStorage)
	assert.Contains(t, err.Error(), "SQL Error:")
	assert.Contains(t, err.Error(), "Assignment not saved.")
}

func TestUpdateSubmittedImpliesFinished(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemAssignmentRepo()
	svc := assignmentFixture(repo, &memStudentRepo{}, now)

	a := baseAssignment()
	id := seedAssignment(repo, a)

	detail, err := svc.Update(context.Background(), id, dto.AssignmentUpdateRequest{
		Submitted: boolPtr(true),
	})
	require.NoError(t, err)
	assert.True(t, detail.Submitted)
	assert.True(t, detail.Finished, "submitting marks the assignment finished")
}

func TestUpdateRejectsUnfinishWhileSubmitted(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemAssignmentRepo()
	svc := assignmentFixture(repo, &memStudentRepo{}, now)

	a := baseAssignment()
	a.Submitted = true
	a.Finished = true
	id := seedAssignment(repo, a)

	_, err := svc.Update(context.Background(), id, dto.AssignmentUpdateRequest{
		Finished: boolPtr(false),
	})
	require.ErrorIs(t, err, ErrValidation)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, stored.Finished, "the rejected update must not persist")
}

func TestUpdateDueDateChangeResetsReminders(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemAssignmentRepo()
	svc := assignmentFixture(repo, &memStudentRepo{}, now)

	a := baseAssignment()
	a.Reminders = datatypes.JSONSlice[string]{"1 week", "2 days"}
	id := seedAssignment(repo, a)

	detail, err := svc.Update(context.Background(), id, dto.AssignmentUpdateRequest{
		DueBy: strPtr("20/01/24 12:00"),
	})
	require.NoError(t, err)
	assert.Empty(t, detail.RemindersSent, "a moved deadline re-arms every milestone")

	unchanged, err := svc.Update(context.Background(), id, dto.AssignmentUpdateRequest{
		Title: strPtr("renamed report"),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed report", unchanged.Title)
}

func TestUpdateSameDueDateKeepsReminders(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemAssignmentRepo()
	svc := assignmentFixture(repo, &memStudentRepo{}, now)

	a := baseAssignment()
	a.Reminders = datatypes.JSONSlice[string]{"1 week"}
	id := seedAssignment(repo, a)

	detail, err := svc.Update(context.Background(), id, dto.AssignmentUpdateRequest{
		DueBy: strPtr("10/01/24 12:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1 week"}, detail.RemindersSent)
}

func TestDeleteAssignment(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemAssignmentRepo()
	svc := assignmentFixture(repo, &memStudentRepo{}, now)

	id := seedAssignment(repo, baseAssignment())
	require.NoError(t, svc.Delete(context.Background(), id))

	_, err := svc.Get(context.Background(), id)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.ErrorIs(t, svc.Delete(context.Background(), id), repository.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemAssignmentRepo()
	svc := assignmentFixture(repo, &memStudentRepo{}, now)

	finished := baseAssignment()
	finished.Finished = true
	seedAssignment(repo, finished)

	open := baseAssignment()
	open.Tutor = "zach"
	seedAssignment(repo, open)

	all, err := svc.List(context.Background(), repository.AssignmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	unfinished, err := svc.List(context.Background(), repository.AssignmentFilter{UnfinishedOnly: true})
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, "zach", unfinished[0].Tutor)
}
