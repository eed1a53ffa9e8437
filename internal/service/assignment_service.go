package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cohort-assistant/internal/clock"
	"github.com/noah-isme/cohort-assistant/internal/dto"
	"github.com/noah-isme/cohort-assistant/internal/models"
	"github.com/noah-isme/cohort-assistant/internal/repository"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnknownTutor = errors.New("unknown tutor")
	ErrBadDueDate   = errors.New("due date must be dd/mm/yy hh:mm")
)

// AssignmentService owns the assignment command surface: list, view, add,
// edit and remove.
type AssignmentService interface {
	List(ctx context.Context, filter repository.AssignmentFilter) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, id uint) (dto.AssignmentDetail, error)
	Create(ctx context.Context, req dto.AssignmentCreateRequest) (dto.AssignmentDetail, error)
	Update(ctx context.Context, id uint, req dto.AssignmentUpdateRequest) (dto.AssignmentDetail, error)
	Delete(ctx context.Context, id uint) error
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	students  repository.StudentRepository
	tutors    map[string]struct{}
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	clk       clock.Clock
	logger    zerolog.Logger
}

// NewAssignmentService wires the assignment command surface.
func NewAssignmentService(
	repo repository.AssignmentRepository,
	students repository.StudentRepository,
	tutors []string,
	clk clock.Clock,
	logger zerolog.Logger,
) AssignmentService {
	set := make(map[string]struct{}, len(tutors))
	for _, tutor := range tutors {
		set[strings.ToLower(tutor)] = struct{}{}
	}
	return &assignmentService{
		repo:      repo,
		students:  students,
		tutors:    set,
		validate:  validator.New(),
		sanitizer: bluemonday.StrictPolicy(),
		clk:       clk,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) List(ctx context.Context, filter repository.AssignmentFilter) ([]dto.AssignmentResponse, error) {
	assignments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewAssignmentResponseSlice(assignments), nil
}

func (s *assignmentService) Get(ctx context.Context, id uint) (dto.AssignmentDetail, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.AssignmentDetail{}, err
	}
	return dto.NewAssignmentDetail(assignment), nil
}

func (s *assignmentService) Create(ctx context.Context, req dto.AssignmentCreateRequest) (dto.AssignmentDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.AssignmentDetail{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, ok := s.tutors[strings.ToLower(req.Tutor)]; !ok {
		return dto.AssignmentDetail{}, fmt.Errorf("%w: %s", ErrUnknownTutor, req.Tutor)
	}
	dueBy, err := parseDueBy(req.DueBy)
	if err != nil {
		return dto.AssignmentDetail{}, err
	}
	createdAt := s.clk.Now().UTC()
	if dueBy.Before(createdAt) {
		return dto.AssignmentDetail{}, fmt.Errorf("%w: due date %q is already in the past", ErrValidation, req.DueBy)
	}

	assignment := models.Assignment{
		Title:     s.sanitizer.Sanitize(req.Title),
		Classroom: req.Classroom,
		SharedDoc: req.SharedDoc,
		Tutor:     strings.ToLower(req.Tutor),
		CreatedAt: createdAt,
		DueBy:     dueBy,
		Assignees: req.Assignees,
	}

	if student, err := s.students.GetByUserID(ctx, req.CreatedBy); err == nil {
		assignment.CreatedByID = &student.EntryID
		assignment.CreatedBy = &student
	} else if !errors.Is(err, repository.ErrNotFound) {
		return dto.AssignmentDetail{}, err
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentDetail{}, fmt.Errorf("SQL Error: %w. Assignment not saved.", err)
	}
	s.logger.Info().Uint("entry_id", assignment.EntryID).Str("title", assignment.Title).Msg("assignment created")
	return dto.NewAssignmentDetail(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, req dto.AssignmentUpdateRequest) (dto.AssignmentDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.AssignmentDetail{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.AssignmentDetail{}, err
	}

	if req.Title != nil {
		assignment.Title = s.sanitizer.Sanitize(*req.Title)
	}
	if req.Classroom != nil {
		assignment.Classroom = *req.Classroom
	}
	if req.SharedDoc != nil {
		assignment.SharedDoc = *req.SharedDoc
	}
	if req.Tutor != nil {
		if _, ok := s.tutors[strings.ToLower(*req.Tutor)]; !ok {
			return dto.AssignmentDetail{}, fmt.Errorf("%w: %s", ErrUnknownTutor, *req.Tutor)
		}
		assignment.Tutor = strings.ToLower(*req.Tutor)
	}
	if req.DueBy != nil {
		dueBy, err := parseDueBy(*req.DueBy)
		if err != nil {
			return dto.AssignmentDetail{}, err
		}
		if !dueBy.Equal(assignment.DueBy) {
			// A moved deadline re-arms every milestone.
			assignment.DueBy = dueBy
			assignment.Reminders = nil
		}
	}
	if req.Finished != nil {
		assignment.Finished = *req.Finished
	}
	if req.Submitted != nil {
		assignment.Submitted = *req.Submitted
		if assignment.Submitted {
			assignment.Finished = true
		}
	}
	if assignment.Submitted && !assignment.Finished {
		return dto.AssignmentDetail{}, fmt.Errorf("%w: a submitted assignment cannot be unfinished", ErrValidation)
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentDetail{}, fmt.Errorf("SQL Error: %w. Assignment not saved.", err)
	}
	return dto.NewAssignmentDetail(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}

// parseDueBy accepts the short and long year forms of the due-date input.
func parseDueBy(raw string) (time.Time, error) {
	for _, layout := range []string{dto.DueByLayout, dto.DueByLayoutLong} {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDueDate, raw)
}
