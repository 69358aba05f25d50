package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"fundadmin/internal/entity"
	"fundadmin/internal/repository"
	"fundadmin/internal/utils"
)

// Validation failure reasons. Failed validation is an expected outcome and
// is reported as a value, never as an error.
const (
	ReasonNotFound           = "not found"
	ReasonExpired            = "expired"
	ReasonDeviceMismatch     = "device mismatch"
	ReasonSuspiciousIPChange = "suspicious IP change"
)

type SessionConfig struct {
	SessionTTL            time.Duration
	MaxConcurrentSessions int
	FailureWindow         time.Duration
	SuspiciousThreshold   int
	LockoutThreshold      int
	LockoutDuration       time.Duration
	TokenLength           int
}

const (
	defaultSessionTTL      = 24 * time.Hour
	defaultMaxSessions     = 5
	defaultFailureWindow   = 15 * time.Minute
	defaultSuspicious      = 3
	defaultLockout         = 5
	defaultLockoutDuration = 30 * time.Minute
	defaultTokenLength     = 48
)

// SessionSecurityService manages the authenticated-session lifecycle with
// concurrency limits, anomaly detection, and brute-force lockout. Every
// security-relevant outcome is recorded through the audit logger.
type SessionSecurityService struct {
	sessions repository.SessionRepository
	attempts repository.LoginAttemptRepository
	alerts   repository.SecurityAlertRepository
	audit    *AuditLogger
	geo      GeoResolver
	notifier AlertNotifier
	clock    Clock
	logger   logrus.FieldLogger
	config   SessionConfig
}

func NewSessionSecurityService(
	sessions repository.SessionRepository,
	attempts repository.LoginAttemptRepository,
	alerts repository.SecurityAlertRepository,
	audit *AuditLogger,
	geo GeoResolver,
	notifier AlertNotifier,
	clock Clock,
	logger logrus.FieldLogger,
	config SessionConfig,
) *SessionSecurityService {
	if config.SessionTTL <= 0 {
		config.SessionTTL = defaultSessionTTL
	}
	if config.MaxConcurrentSessions <= 0 {
		config.MaxConcurrentSessions = defaultMaxSessions
	}
	if config.FailureWindow <= 0 {
		config.FailureWindow = defaultFailureWindow
	}
	if config.SuspiciousThreshold <= 0 {
		config.SuspiciousThreshold = defaultSuspicious
	}
	if config.LockoutThreshold <= 0 {
		config.LockoutThreshold = defaultLockout
	}
	if config.LockoutDuration <= 0 {
		config.LockoutDuration = defaultLockoutDuration
	}
	if config.TokenLength <= 0 {
		config.TokenLength = defaultTokenLength
	}
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionSecurityService{
		sessions: sessions,
		attempts: attempts,
		alerts:   alerts,
		audit:    audit,
		geo:      geo,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		config:   config,
	}
}

type CreateSessionInput struct {
	UserID            uuid.UUID
	TenantID          *uuid.UUID
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
	Duration          time.Duration
	AllowConcurrent   bool
}

// SessionCredentials is everything a caller needs to retain. Token is the
// only credential; it is never re-derivable from the session id.
type SessionCredentials struct {
	SessionID uuid.UUID
	Token     string
	ExpiresAt time.Time
}

// SessionValidation is the typed outcome of ValidateSession. Session is set
// only when Valid is true.
type SessionValidation struct {
	Valid   bool
	Reason  string
	Session *entity.Session
}

// CreateSession issues a new session for an authenticated user. With
// concurrent sessions disallowed every other active session of the user is
// closed first; otherwise the oldest sessions are evicted FIFO so the new
// one fits under the configured maximum. A session that cannot be persisted
// is a hard failure: it must not be treated as issued.
func (s *SessionSecurityService) CreateSession(ctx context.Context, in CreateSessionInput) (*SessionCredentials, error) {
	now := s.clock.Now().UTC()

	token, err := utils.GenerateRandomToken(s.config.TokenLength)
	if err != nil {
		return nil, err
	}

	duration := in.Duration
	if duration <= 0 {
		duration = s.config.SessionTTL
	}

	device := DescribeDevice(in.UserAgent)
	session := &entity.Session{
		ID:                uuid.New(),
		UserID:            in.UserID,
		TenantID:          in.TenantID,
		TokenHash:         utils.HashToken(token),
		DeviceFingerprint: in.DeviceFingerprint,
		DeviceName:        device.Name,
		Browser:           device.Browser,
		OS:                device.OS,
		IPAddress:         in.IPAddress,
		IsActive:          true,
		CreatedAt:         now,
		LastActivityAt:    now,
		ExpiresAt:         now.Add(duration),
	}

	// Geolocation is advisory: an unresolvable address is not an error.
	if s.geo != nil {
		location, err := s.geo.Resolve(ctx, in.IPAddress)
		if err != nil {
			s.logger.WithError(err).WithField("ip", in.IPAddress).Debug("geo resolution failed")
		} else if location != nil {
			session.Country = optionalString(location.Country)
			session.City = optionalString(location.City)
		}
	}

	var evicted int64
	if in.AllowConcurrent {
		// Eviction and insert happen in one repository call so concurrent
		// logins for the same user cannot both slip under the limit.
		evicted, err = s.sessions.CreateWithLimit(
			ctx, session, s.config.MaxConcurrentSessions, now, entity.TerminationMaxSessions)
		if err != nil {
			return nil, err
		}
		if evicted > 0 {
			s.logger.WithFields(logrus.Fields{"user_id": in.UserID, "evicted": evicted}).
				Info("evicted oldest sessions over concurrency limit")
		}
	} else {
		if _, err := s.sessions.TerminateAllByUser(
			ctx, in.UserID, nil, now, entity.TerminationByUser); err != nil {
			return nil, err
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, err
		}
	}

	if evicted > 0 {
		s.raiseAlert(ctx, session, entity.AlertConcurrentSessionLimit, entity.SeverityInfo,
			"Concurrent session limit reached",
			"Oldest sessions were closed to make room for a new sign-in.",
			map[string]any{
				"evicted":    evicted,
				"max_active": s.config.MaxConcurrentSessions,
			})
	}

	s.audit.LogLogin(s.eventContext(session), true, "")

	return &SessionCredentials{
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// ValidateSession checks an opaque secret against the caller's current
// network address and device fingerprint.
//
// A fingerprint mismatch is fatal: the session is terminated. A cross-country
// address change only fails this call; the session stays active and a retry
// from the original location still succeeds. The asymmetry is intentional.
func (s *SessionSecurityService) ValidateSession(ctx context.Context, token, ipAddress, fingerprint string) (*SessionValidation, error) {
	now := s.clock.Now().UTC()

	session, err := s.sessions.FindActiveByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &SessionValidation{Reason: ReasonNotFound}, nil
	}

	if session.ExpiresAt.Before(now) {
		if err := s.sessions.Terminate(ctx, session.ID, now, entity.TerminationExpired); err != nil {
			return nil, err
		}
		s.audit.Log(entity.EventSessionExpired, entity.SeverityInfo, s.eventContext(session), nil)
		return &SessionValidation{Reason: ReasonExpired}, nil
	}

	if fingerprint != session.DeviceFingerprint {
		s.raiseAlert(ctx, session, entity.AlertSessionHijacking, entity.SeverityWarning,
			"Possible session hijacking",
			"Session presented from a different device than it was issued to.",
			map[string]any{
				"expected_fingerprint": session.DeviceFingerprint,
				"observed_fingerprint": fingerprint,
				"ip_address":           ipAddress,
			})
		if err := s.sessions.Terminate(ctx, session.ID, now, entity.TerminationSuspiciousActivity); err != nil {
			return nil, err
		}
		return &SessionValidation{Reason: ReasonDeviceMismatch}, nil
	}

	if ipAddress != session.IPAddress && s.geo != nil {
		location, err := s.geo.Resolve(ctx, ipAddress)
		if err != nil {
			s.logger.WithError(err).WithField("ip", ipAddress).Debug("geo resolution failed")
		}
		if location != nil && location.Country != "" &&
			session.Country != nil && *session.Country != "" &&
			location.Country != *session.Country {
			s.raiseAlert(ctx, session, entity.AlertGeoAnomaly, entity.SeverityWarning,
				"Sign-in from a new country",
				"Session presented from a different country than it was issued in.",
				map[string]any{
					"expected_country": *session.Country,
					"observed_country": location.Country,
					"ip_address":       ipAddress,
				})
			return &SessionValidation{Reason: ReasonSuspiciousIPChange}, nil
		}
	}

	// Sliding window: the expiry only ever moves forward.
	newExpiry := now.Add(s.config.SessionTTL)
	if newExpiry.Before(session.ExpiresAt) {
		newExpiry = session.ExpiresAt
	}
	if err := s.sessions.Touch(ctx, session.ID, now, newExpiry); err != nil {
		return nil, err
	}
	session.LastActivityAt = now
	session.ExpiresAt = newExpiry

	return &SessionValidation{Valid: true, Session: session}, nil
}

// TerminateSession closes a session by its secret. Terminating a session
// that is already closed or unknown is a no-op.
func (s *SessionSecurityService) TerminateSession(ctx context.Context, token, reason string) error {
	session, err := s.sessions.FindByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		return err
	}
	if session == nil || !session.IsActive {
		return nil
	}
	now := s.clock.Now().UTC()
	if reason == "" {
		reason = entity.TerminationLogout
	}
	if err := s.sessions.Terminate(ctx, session.ID, now, reason); err != nil {
		return err
	}
	s.audit.Log(entity.EventLogout, entity.SeverityInfo, s.eventContext(session),
		&EventMetadata{Reason: reason})
	return nil
}

// TerminateOtherSessions closes every other active session of the user,
// optionally sparing the session behind exceptToken ("sign out everywhere
// else"). Returns the number of sessions closed.
func (s *SessionSecurityService) TerminateOtherSessions(ctx context.Context, userID uuid.UUID, exceptToken string) (int64, error) {
	now := s.clock.Now().UTC()

	var except *uuid.UUID
	if exceptToken != "" {
		current, err := s.sessions.FindActiveByTokenHash(ctx, utils.HashToken(exceptToken))
		if err != nil {
			return 0, err
		}
		if current != nil {
			except = &current.ID
		}
	}

	closed, err := s.sessions.TerminateAllByUser(ctx, userID, except, now, entity.TerminationByUser)
	if err != nil {
		return 0, err
	}
	if closed > 0 {
		s.audit.Log(entity.EventLogout, entity.SeverityInfo,
			&EventContext{UserID: &userID},
			&EventMetadata{
				Reason:         entity.TerminationByUser,
				AdditionalData: map[string]any{"sessions_closed": closed},
			})
	}
	return closed, nil
}

// GetUserSessions lists a user's active sessions for self-service device
// management, oldest first.
func (s *SessionSecurityService) GetUserSessions(ctx context.Context, userID uuid.UUID) ([]entity.Session, error) {
	return s.sessions.ListActiveByUser(ctx, userID)
}

// CleanupExpiredSessions closes every active session whose expiry has
// passed and returns the count. Meant to run on a schedule.
func (s *SessionSecurityService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	now := s.clock.Now().UTC()
	closed, err := s.sessions.TerminateExpired(ctx, now, entity.TerminationExpired)
	if err != nil {
		return 0, err
	}
	if closed > 0 {
		s.logger.WithField("sessions", closed).Info("closed expired sessions")
	}
	return closed, nil
}

type LoginAttemptInput struct {
	Email             string
	Success           bool
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	FailureReason     *string
	UserID            *uuid.UUID
	TenantID          *uuid.UUID
}

// RecordLoginAttempt persists one attempt, success or failure, and applies
// the brute-force policy: repeated failures inside the lookback window mark
// the attempt suspicious, and crossing the lockout threshold locks the
// account and raises a critical alert.
func (s *SessionSecurityService) RecordLoginAttempt(ctx context.Context, in LoginAttemptInput) (*entity.LoginAttempt, error) {
	now := s.clock.Now().UTC()
	email := utils.NormalizeEmail(in.Email)

	attempt := &entity.LoginAttempt{
		ID:                uuid.New(),
		Email:             email,
		UserID:            in.UserID,
		TenantID:          in.TenantID,
		Success:           in.Success,
		FailureReason:     in.FailureReason,
		IPAddress:         in.IPAddress,
		UserAgent:         in.UserAgent,
		DeviceFingerprint: in.DeviceFingerprint,
		CreatedAt:         now,
	}

	crossedLockout := false
	if !in.Success {
		prior, err := s.attempts.CountRecentFailures(ctx, email, now.Add(-s.config.FailureWindow))
		if err != nil {
			return nil, err
		}
		failures := int(prior) + 1

		attempt.RiskScore = riskScore(failures)
		reasons := []string{}
		if failures >= s.config.SuspiciousThreshold {
			attempt.Suspicious = true
			reasons = append(reasons, "repeated login failures")
		}
		if failures >= s.config.LockoutThreshold {
			attempt.AccountLocked = true
			attempt.RiskScore = entity.MaxRiskScore
			lockedUntil := now.Add(s.config.LockoutDuration)
			attempt.LockedUntil = &lockedUntil
			reasons = append(reasons, "failure threshold exceeded")
			crossedLockout = failures == s.config.LockoutThreshold
		}
		if len(reasons) > 0 {
			if data, err := json.Marshal(reasons); err == nil {
				attempt.SuspicionReasons = datatypes.JSON(data)
			}
		}
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	if crossedLockout {
		alert := &entity.SecurityAlert{
			ID:          uuid.New(),
			Type:        entity.AlertBruteForce,
			Severity:    entity.SeverityCritical,
			UserID:      in.UserID,
			TenantID:    in.TenantID,
			Title:       "Brute force attempt",
			Description: "Account locked after repeated failed login attempts within the lookback window.",
			Status:      entity.AlertStatusOpen,
			Metadata: marshalJSON(map[string]any{
				"email":        email,
				"ip_address":   in.IPAddress,
				"locked_until": attempt.LockedUntil,
			}),
		}
		s.materializeAlert(ctx, alert)
		s.audit.Log(entity.EventAccountLocked, entity.SeverityCritical,
			&EventContext{
				UserID:            in.UserID,
				TenantID:          in.TenantID,
				IPAddress:         optionalString(in.IPAddress),
				UserAgent:         optionalString(in.UserAgent),
				DeviceFingerprint: optionalString(in.DeviceFingerprint),
			},
			&EventMetadata{
				Reason:         "failure threshold exceeded",
				AdditionalData: map[string]any{"email": email},
			})
	}

	return attempt, nil
}

// LockStatus reports whether an account is under a lockout window.
type LockStatus struct {
	Locked bool
	Until  *time.Time
}

// IsAccountLocked is meant to be consulted by the authentication entry point
// before verifying credentials, to short-circuit further guesses.
func (s *SessionSecurityService) IsAccountLocked(ctx context.Context, email string) (*LockStatus, error) {
	attempt, err := s.attempts.FindLatestLocked(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if attempt == nil || attempt.LockedUntil == nil {
		return &LockStatus{}, nil
	}
	if attempt.LockedUntil.After(s.clock.Now().UTC()) {
		return &LockStatus{Locked: true, Until: attempt.LockedUntil}, nil
	}
	return &LockStatus{}, nil
}

// raiseAlert materializes a session anomaly: alert record, best-effort
// notification, and a chained audit event. Re-detection across repeated
// calls may create repeated alerts; that is acceptable noise.
func (s *SessionSecurityService) raiseAlert(
	ctx context.Context,
	session *entity.Session,
	alertType entity.AlertType,
	severity entity.Severity,
	title string,
	description string,
	metadata map[string]any,
) {
	alert := &entity.SecurityAlert{
		ID:          uuid.New(),
		Type:        alertType,
		Severity:    severity,
		UserID:      &session.UserID,
		TenantID:    session.TenantID,
		Title:       title,
		Description: description,
		Status:      entity.AlertStatusOpen,
		Metadata:    marshalJSON(metadata),
	}
	s.materializeAlert(ctx, alert)
	s.audit.LogSecurityAlert(s.eventContext(session), severity, title, metadata)
}

func (s *SessionSecurityService) materializeAlert(ctx context.Context, alert *entity.SecurityAlert) {
	if err := s.alerts.Create(ctx, alert); err != nil {
		s.logger.WithError(err).WithField("type", alert.Type).Error("failed to persist security alert")
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyAlert(ctx, alert); err != nil {
			s.logger.WithError(err).WithField("type", alert.Type).Warn("failed to deliver security alert")
		}
	}
}

func (s *SessionSecurityService) eventContext(session *entity.Session) *EventContext {
	return &EventContext{
		UserID:            &session.UserID,
		TenantID:          session.TenantID,
		IPAddress:         optionalString(session.IPAddress),
		Location:          session.Country,
		SessionID:         &session.ID,
		DeviceFingerprint: optionalString(session.DeviceFingerprint),
	}
}

// riskScore maps the failure count to a 0-100 score, saturating at the
// maximum.
func riskScore(failures int) int {
	score := failures * 20
	if score > entity.MaxRiskScore {
		return entity.MaxRiskScore
	}
	return score
}
