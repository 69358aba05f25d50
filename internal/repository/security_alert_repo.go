package repository

import (
	"context"

	"fundadmin/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SecurityAlertRepository interface {
	Create(ctx context.Context, alert *entity.SecurityAlert) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.SecurityAlert, error)
}

type securityAlertRepository struct {
	db *gorm.DB
}

func NewSecurityAlertRepository(db *gorm.DB) SecurityAlertRepository {
	return &securityAlertRepository{db: db}
}

func (r *securityAlertRepository) Create(ctx context.Context, alert *entity.SecurityAlert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *securityAlertRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.SecurityAlert, error) {
	var alerts []entity.SecurityAlert
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
