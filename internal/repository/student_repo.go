package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/cohort-assistant/internal/models"
)

// StudentRepository stores verified cohort members.
type StudentRepository interface {
	GetByUserID(ctx context.Context, userID string) (models.Student, error)
	GetByStudentID(ctx context.Context, studentID string) (models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository instantiates a GORM-backed student store.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByUserID(ctx context.Context, userID string) (models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&student).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, ErrNotFound
		}
		return models.Student{}, storageErr(err)
	}
	return student, nil
}

func (r *studentRepository) GetByStudentID(ctx context.Context, studentID string) (models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&student).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, ErrNotFound
		}
		return models.Student{}, storageErr(err)
	}
	return student, nil
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	if err := r.db.WithContext(ctx).Create(student).Error; err != nil {
		return storageErr(err)
	}
	return nil
}
