package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fundadmin/internal/entity"
	"fundadmin/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeAuditEventRepo struct {
	mu      sync.Mutex
	stored  []entity.AuditEvent
	batches int
	failErr error
}

func (r *fakeAuditEventRepo) CreateBatch(_ context.Context, events []*entity.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.batches++
	for _, event := range events {
		r.stored = append(r.stored, *event)
	}
	return nil
}

func (r *fakeAuditEventRepo) ListOrdered(_ context.Context, from, to *time.Time) ([]entity.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []entity.AuditEvent
	for _, event := range r.stored {
		if from != nil && event.Timestamp.Before(*from) {
			continue
		}
		if to != nil && event.Timestamp.After(*to) {
			continue
		}
		events = append(events, event)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

func (r *fakeAuditEventRepo) Search(_ context.Context, filter repository.AuditFilter) ([]entity.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []entity.AuditEvent
	for _, event := range r.stored {
		if filter.UserID != nil && (event.UserID == nil || *event.UserID != *filter.UserID) {
			continue
		}
		if filter.TenantID != nil && (event.TenantID == nil || *event.TenantID != *filter.TenantID) {
			continue
		}
		if len(filter.EventTypes) > 0 && !containsEventType(filter.EventTypes, event.EventType) {
			continue
		}
		if len(filter.Severities) > 0 && !containsSeverity(filter.Severities, event.Severity) {
			continue
		}
		if filter.Resource != nil && (event.Resource == nil || *event.Resource != *filter.Resource) {
			continue
		}
		if filter.From != nil && event.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && event.Timestamp.After(*filter.To) {
			continue
		}
		events = append(events, event)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(events) {
			return nil, nil
		}
		events = events[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(events) {
		events = events[:filter.Limit]
	}
	return events, nil
}

func (r *fakeAuditEventRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stored)
}

func (r *fakeAuditEventRepo) tamper(index int, mutate func(*entity.AuditEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mutate(&r.stored[index])
}

func containsEventType(types []entity.EventType, t entity.EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsSeverity(severities []entity.Severity, s entity.Severity) bool {
	for _, candidate := range severities {
		if candidate == s {
			return true
		}
	}
	return false
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions []*entity.Session
}

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *session
	r.sessions = append(r.sessions, &stored)
	return nil
}

func (r *fakeSessionRepo) FindByTokenHash(_ context.Context, hash string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.TokenHash == hash {
			found := *session
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindActiveByTokenHash(_ context.Context, hash string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.TokenHash == hash && session.IsActive {
			found := *session
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) Touch(_ context.Context, sessionID uuid.UUID, lastActivity, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.ID == sessionID && session.IsActive {
			session.LastActivityAt = lastActivity
			session.ExpiresAt = expiresAt
		}
	}
	return nil
}

func (r *fakeSessionRepo) Terminate(_ context.Context, sessionID uuid.UUID, at time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.ID == sessionID && session.IsActive {
			closeSession(session, at, reason)
		}
	}
	return nil
}

func (r *fakeSessionRepo) TerminateAllByUser(_ context.Context, userID uuid.UUID, except *uuid.UUID, at time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var closed int64
	for _, session := range r.sessions {
		if session.UserID != userID || !session.IsActive {
			continue
		}
		if except != nil && session.ID == *except {
			continue
		}
		closeSession(session, at, reason)
		closed++
	}
	return closed, nil
}

func (r *fakeSessionRepo) CreateWithLimit(_ context.Context, session *entity.Session, max int, at time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := r.activeByUserLocked(session.UserID)
	overflow := len(active) - (max - 1)
	var evicted int64
	for i := 0; i < overflow; i++ {
		closeSession(active[i], at, reason)
		evicted++
	}
	stored := *session
	r.sessions = append(r.sessions, &stored)
	return evicted, nil
}

func (r *fakeSessionRepo) ListActiveByUser(_ context.Context, userID uuid.UUID) ([]entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sessions []entity.Session
	for _, session := range r.activeByUserLocked(userID) {
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

func (r *fakeSessionRepo) TerminateExpired(_ context.Context, now time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var closed int64
	for _, session := range r.sessions {
		if session.IsActive && session.ExpiresAt.Before(now) {
			closeSession(session, now, reason)
			closed++
		}
	}
	return closed, nil
}

func (r *fakeSessionRepo) byID(id uuid.UUID) *entity.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.ID == id {
			found := *session
			return &found
		}
	}
	return nil
}

func (r *fakeSessionRepo) activeByUserLocked(userID uuid.UUID) []*entity.Session {
	var active []*entity.Session
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive {
			active = append(active, session)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active
}

func closeSession(session *entity.Session, at time.Time, reason string) {
	terminatedAt := at
	terminationReason := reason
	session.IsActive = false
	session.TerminatedAt = &terminatedAt
	session.TerminationReason = &terminationReason
}

type fakeLoginAttemptRepo struct {
	mu       sync.Mutex
	attempts []entity.LoginAttempt
}

func (r *fakeLoginAttemptRepo) Create(_ context.Context, attempt *entity.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, *attempt)
	return nil
}

func (r *fakeLoginAttemptRepo) CountRecentFailures(_ context.Context, email string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, attempt := range r.attempts {
		if attempt.Email == email && !attempt.Success && !attempt.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeLoginAttemptRepo) FindLatestLocked(_ context.Context, email string) (*entity.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entity.LoginAttempt
	for i := range r.attempts {
		attempt := &r.attempts[i]
		if attempt.Email != email || !attempt.AccountLocked {
			continue
		}
		if latest == nil || attempt.CreatedAt.After(latest.CreatedAt) {
			latest = attempt
		}
	}
	if latest == nil {
		return nil, nil
	}
	found := *latest
	return &found, nil
}

func (r *fakeLoginAttemptRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

func (r *fakeLoginAttemptRepo) last() entity.LoginAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[len(r.attempts)-1]
}

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts []entity.SecurityAlert
}

func (r *fakeAlertRepo) Create(_ context.Context, alert *entity.SecurityAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, *alert)
	return nil
}

func (r *fakeAlertRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]entity.SecurityAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var alerts []entity.SecurityAlert
	for _, alert := range r.alerts {
		if alert.UserID != nil && *alert.UserID == userID {
			alerts = append(alerts, alert)
		}
	}
	if limit > 0 && limit < len(alerts) {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

func (r *fakeAlertRepo) byType(alertType entity.AlertType) []entity.SecurityAlert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []entity.SecurityAlert
	for _, alert := range r.alerts {
		if alert.Type == alertType {
			matched = append(matched, alert)
		}
	}
	return matched
}

type fakeGeoResolver struct {
	locations map[string]*GeoLocation
}

func (r *fakeGeoResolver) Resolve(_ context.Context, ipAddress string) (*GeoLocation, error) {
	if r.locations == nil {
		return nil, nil
	}
	return r.locations[ipAddress], nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []entity.SecurityAlert
}

func (n *fakeNotifier) NotifyAlert(_ context.Context, alert *entity.SecurityAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, *alert)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users []entity.User
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, *user)
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.ID == id && user.IsActive {
			found := user
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email && user.IsActive {
			found := user
			return &found, nil
		}
	}
	return nil, nil
}

type fakeMFASecretRepo struct {
	mu      sync.Mutex
	secrets map[uuid.UUID]entity.MFASecret
}

func (r *fakeMFASecretRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*entity.MFASecret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if secret, ok := r.secrets[userID]; ok {
		found := secret
		return &found, nil
	}
	return nil, nil
}

func (r *fakeMFASecretRepo) Upsert(_ context.Context, secret *entity.MFASecret) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.secrets == nil {
		r.secrets = make(map[uuid.UUID]entity.MFASecret)
	}
	r.secrets[secret.UserID] = *secret
	return nil
}

func (r *fakeMFASecretRepo) Disable(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.secrets, userID)
	return nil
}

type fakePasswordHasher struct{}

func (fakePasswordHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakePasswordHasher) Verify(hash string, password string) bool {
	return hash == "hashed:"+password
}

type fakeMFAProvider struct {
	secret    string
	validCode string
}

func (p *fakeMFAProvider) GenerateSecret() (string, error) {
	return p.secret, nil
}

func (p *fakeMFAProvider) QRCodeURL(email, issuer, secret string) (string, error) {
	return "otpauth://totp/" + issuer + ":" + email, nil
}

func (p *fakeMFAProvider) ValidateCode(secret, code string) bool {
	return secret == p.secret && code == p.validCode
}
