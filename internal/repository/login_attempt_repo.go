package repository

import (
	"context"
	"errors"
	"time"

	"fundadmin/internal/entity"

	"gorm.io/gorm"
)

type LoginAttemptRepository interface {
	Create(ctx context.Context, attempt *entity.LoginAttempt) error
	CountRecentFailures(ctx context.Context, email string, since time.Time) (int64, error)
	FindLatestLocked(ctx context.Context, email string) (*entity.LoginAttempt, error)
}

type loginAttemptRepository struct {
	db *gorm.DB
}

func NewLoginAttemptRepository(db *gorm.DB) LoginAttemptRepository {
	return &loginAttemptRepository{db: db}
}

func (r *loginAttemptRepository) Create(ctx context.Context, a *entity.LoginAttempt) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *loginAttemptRepository) CountRecentFailures(ctx context.Context, email string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.LoginAttempt{}).
		Where("email = ? AND success = false AND created_at >= ?", email, since).
		Count(&count).Error
	return count, err
}

func (r *loginAttemptRepository) FindLatestLocked(ctx context.Context, email string) (*entity.LoginAttempt, error) {
	var attempt entity.LoginAttempt
	err := r.db.WithContext(ctx).
		Where("email = ? AND account_locked = true", email).
		Order("created_at DESC").
		First(&attempt).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}
