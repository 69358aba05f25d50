package repository

import (
	"context"
	"time"

	"fundadmin/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditFilter narrows audit queries. Zero values mean "no constraint".
type AuditFilter struct {
	TenantID   *uuid.UUID
	UserID     *uuid.UUID
	EventTypes []entity.EventType
	Severities []entity.Severity
	Resource   *string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// AuditEventRepository is append-only by design: no update or delete exists
// for persisted events.
type AuditEventRepository interface {
	CreateBatch(ctx context.Context, events []*entity.AuditEvent) error
	// ListOrdered returns events in ascending timestamp order within the
	// optional bounds, for chain verification.
	ListOrdered(ctx context.Context, from, to *time.Time) ([]entity.AuditEvent, error)
	Search(ctx context.Context, filter AuditFilter) ([]entity.AuditEvent, error)
}

type auditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) AuditEventRepository {
	return &auditEventRepository{db: db}
}

func (r *auditEventRepository) CreateBatch(ctx context.Context, events []*entity.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(events).Error
}

func (r *auditEventRepository) ListOrdered(ctx context.Context, from, to *time.Time) ([]entity.AuditEvent, error) {
	query := r.db.WithContext(ctx).Model(&entity.AuditEvent{})
	if from != nil {
		query = query.Where("timestamp >= ?", *from)
	}
	if to != nil {
		query = query.Where("timestamp <= ?", *to)
	}
	var events []entity.AuditEvent
	if err := query.Order("timestamp ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *auditEventRepository) Search(ctx context.Context, filter AuditFilter) ([]entity.AuditEvent, error) {
	query := r.db.WithContext(ctx).Model(&entity.AuditEvent{})
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if len(filter.EventTypes) > 0 {
		query = query.Where("event_type IN ?", filter.EventTypes)
	}
	if len(filter.Severities) > 0 {
		query = query.Where("severity IN ?", filter.Severities)
	}
	if filter.Resource != nil {
		query = query.Where("resource = ?", *filter.Resource)
	}
	if filter.From != nil {
		query = query.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("timestamp <= ?", *filter.To)
	}
	query = query.Order("timestamp DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var events []entity.AuditEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
