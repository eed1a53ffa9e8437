package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/cohort-assistant/internal/models"
)

// AssignmentFilter describes the list options exposed by the command surface.
type AssignmentFilter struct {
	Limit           int
	DueAfter        *time.Time
	Tutor           string
	UnfinishedOnly  bool
	UnsubmittedOnly bool
}

// AssignmentRepository defines persistence operations for assignments.
type AssignmentRepository interface {
	List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error)
	ListUnsubmitted(ctx context.Context) ([]models.Assignment, error)
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	AppendReminder(ctx context.Context, id uint, milestone string) error
	Delete(ctx context.Context, id uint) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error) {
	query := r.db.WithContext(ctx).Model(&models.Assignment{}).Order("due_by DESC")

	if filter.DueAfter != nil {
		query = query.Where("due_by >= ?", *filter.DueAfter)
	}
	if filter.Tutor != "" {
		query = query.Where("LOWER(tutor) = ?", strings.ToLower(filter.Tutor))
	}
	if filter.UnfinishedOnly {
		query = query.Where("finished = ?", false)
	}
	if filter.UnsubmittedOnly {
		query = query.Where("submitted = ?", false)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var assignments []models.Assignment
	if err := query.Find(&assignments).Error; err != nil {
		return nil, storageErr(err)
	}
	return assignments, nil
}

func (r *assignmentRepository) ListUnsubmitted(ctx context.Context) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("submitted = ?", false).
		Order("entry_id ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return assignments, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).Preload("CreatedBy").First(&assignment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrNotFound
		}
		return models.Assignment{}, storageErr(err)
	}
	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	if err := r.db.WithContext(ctx).Save(assignment).Error; err != nil {
		return storageErr(err)
	}
	return nil
}

// AppendReminder durably records a fired milestone. The read and write run in
// one transaction so concurrent ticks cannot drop a marker.
func (r *assignmentRepository) AppendReminder(ctx context.Context, id uint, milestone string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assignment models.Assignment
		if err := tx.First(&assignment, id).Error; err != nil {
			return err
		}
		if assignment.HasReminder(milestone) {
			return nil
		}
		assignment.Reminders = append(assignment.Reminders, milestone)
		return tx.Model(&assignment).Update("reminders", assignment.Reminders).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return storageErr(err)
	}
	return nil
}

func (r *assignmentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Assignment{}, id)
	if result.Error != nil {
		return storageErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
