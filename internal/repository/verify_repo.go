package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/cohort-assistant/internal/models"
)

// VerifyCodeRepository stores pending one-time verification codes.
type VerifyCodeRepository interface {
	Create(ctx context.Context, code *models.VerifyCode) error
	GetByCode(ctx context.Context, code string) (models.VerifyCode, error)
	Delete(ctx context.Context, id uint) error
}

type verifyCodeRepository struct {
	db *gorm.DB
}

// NewVerifyCodeRepository instantiates a GORM-backed code store.
func NewVerifyCodeRepository(db *gorm.DB) VerifyCodeRepository {
	return &verifyCodeRepository{db: db}
}

func (r *verifyCodeRepository) Create(ctx context.Context, code *models.VerifyCode) error {
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *verifyCodeRepository) GetByCode(ctx context.Context, code string) (models.VerifyCode, error) {
	var row models.VerifyCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.VerifyCode{}, ErrNotFound
		}
		return models.VerifyCode{}, storageErr(err)
	}
	return row, nil
}

func (r *verifyCodeRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.VerifyCode{}, id).Error; err != nil {
		return storageErr(err)
	}
	return nil
}
