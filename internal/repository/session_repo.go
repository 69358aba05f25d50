package repository

import (
	"context"
	"errors"
	"time"

	"fundadmin/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindByTokenHash(ctx context.Context, hash string) (*entity.Session, error)
	FindActiveByTokenHash(ctx context.Context, hash string) (*entity.Session, error)
	Touch(ctx context.Context, sessionID uuid.UUID, lastActivity, expiresAt time.Time) error
	Terminate(ctx context.Context, sessionID uuid.UUID, at time.Time, reason string) error
	TerminateAllByUser(ctx context.Context, userID uuid.UUID, except *uuid.UUID, at time.Time, reason string) (int64, error)
	// CreateWithLimit inserts the session and closes the user's oldest
	// active sessions so that at most max remain, all in one transaction
	// serialized per user. Splitting the eviction from the insert would let
	// two concurrent logins both observe room and both insert past the
	// limit. Returns the number of sessions evicted.
	CreateWithLimit(ctx context.Context, session *entity.Session, max int, at time.Time, reason string) (int64, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Session, error)
	TerminateExpired(ctx context.Context, now time.Time, reason string) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *entity.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepository) FindByTokenHash(ctx context.Context, hash string) (*entity.Session, error) {
	var session entity.Session
	err := r.db.WithContext(ctx).
		Where("token_hash = ?", hash).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) FindActiveByTokenHash(ctx context.Context, hash string) (*entity.Session, error) {
	var session entity.Session
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND is_active = true", hash).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Touch(ctx context.Context, sessionID uuid.UUID, lastActivity, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("id = ? AND is_active = true", sessionID).
		Updates(map[string]any{
			"last_activity_at": lastActivity,
			"expires_at":       expiresAt,
		}).
		Error
}

func (r *sessionRepository) Terminate(ctx context.Context, sessionID uuid.UUID, at time.Time, reason string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("id = ? AND is_active = true", sessionID).
		Updates(map[string]any{
			"is_active":          false,
			"terminated_at":      &at,
			"termination_reason": reason,
		}).
		Error
}

func (r *sessionRepository) TerminateAllByUser(
	ctx context.Context,
	userID uuid.UUID,
	except *uuid.UUID,
	at time.Time,
	reason string,
) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("user_id = ? AND is_active = true", userID)
	if except != nil {
		query = query.Where("id <> ?", *except)
	}
	result := query.Updates(map[string]any{
		"is_active":          false,
		"terminated_at":      &at,
		"termination_reason": reason,
	})
	return result.RowsAffected, result.Error
}

func (r *sessionRepository) CreateWithLimit(
	ctx context.Context,
	session *entity.Session,
	max int,
	at time.Time,
	reason string,
) (int64, error) {
	var evicted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row locks alone cannot stop two logins from both seeing room:
		// under READ COMMITTED neither transaction sees the other's
		// not-yet-committed insert. The advisory lock serializes the whole
		// count-evict-insert sequence per user.
		if err := tx.Exec(
			"SELECT pg_advisory_xact_lock(hashtextextended(?, 0))",
			session.UserID.String(),
		).Error; err != nil {
			return err
		}

		var active []entity.Session
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND is_active = true", session.UserID).
			Order("created_at ASC").
			Find(&active).Error; err != nil {
			return err
		}

		overflow := len(active) - (max - 1)
		if overflow > 0 {
			ids := make([]uuid.UUID, 0, overflow)
			for _, s := range active[:overflow] {
				ids = append(ids, s.ID)
			}
			result := tx.
				Model(&entity.Session{}).
				Where("id IN ?", ids).
				Updates(map[string]any{
					"is_active":          false,
					"terminated_at":      &at,
					"termination_reason": reason,
				})
			if result.Error != nil {
				return result.Error
			}
			evicted = result.RowsAffected
		}

		return tx.Create(session).Error
	})
	return evicted, err
}

func (r *sessionRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Session, error) {
	var sessions []entity.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = true", userID).
		Order("created_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) TerminateExpired(ctx context.Context, now time.Time, reason string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("is_active = true AND expires_at < ?", now).
		Updates(map[string]any{
			"is_active":          false,
			"terminated_at":      &now,
			"termination_reason": reason,
		})
	return result.RowsAffected, result.Error
}
