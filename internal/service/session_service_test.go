package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundadmin/internal/entity"
)

type securityHarness struct {
	service   *SessionSecurityService
	audit     *AuditLogger
	sessions  *fakeSessionRepo
	attempts  *fakeLoginAttemptRepo
	alerts    *fakeAlertRepo
	auditRepo *fakeAuditEventRepo
	notifier  *fakeNotifier
	clock     *fakeClock
}

func newSecurityHarness(t *testing.T, config SessionConfig, locations map[string]*GeoLocation) *securityHarness {
	t.Helper()
	clock := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	sessions := &fakeSessionRepo{}
	attempts := &fakeLoginAttemptRepo{}
	alerts := &fakeAlertRepo{}
	auditRepo := &fakeAuditEventRepo{}
	notifier := &fakeNotifier{}

	logger := logrus.New()
	logger.SetOutput(testWriter{t})
	audit := NewAuditLogger(auditRepo, clock, logger, AuditConfig{BatchSize: 100, FlushInterval: time.Hour})

	service := NewSessionSecurityService(
		sessions, attempts, alerts, audit,
		&fakeGeoResolver{locations: locations},
		notifier, clock, logger, config,
	)
	return &securityHarness{
		service:   service,
		audit:     audit,
		sessions:  sessions,
		attempts:  attempts,
		alerts:    alerts,
		auditRepo: auditRepo,
		notifier:  notifier,
		clock:     clock,
	}
}

func (h *securityHarness) createSession(t *testing.T, userID uuid.UUID, fingerprint, ip string) *SessionCredentials {
	t.Helper()
	credentials, err := h.service.CreateSession(context.Background(), CreateSessionInput{
		UserID:            userID,
		DeviceFingerprint: fingerprint,
		IPAddress:         ip,
		UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AllowConcurrent:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, credentials)
	return credentials
}

func TestCreateSessionIssuesOpaqueToken(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, map[string]*GeoLocation{
		"203.0.113.10": {Country: "NL", City: "Amsterdam"},
	})
	userID := uuid.New()

	credentials := h.createSession(t, userID, "fp-1", "203.0.113.10")
	assert.NotEmpty(t, credentials.Token)

	stored := h.sessions.byID(credentials.SessionID)
	require.NotNil(t, stored)
	assert.NotEqual(t, credentials.Token, stored.TokenHash)
	assert.Equal(t, "Chrome", stored.Browser)
	assert.Equal(t, "Mac OS X", stored.OS)
	require.NotNil(t, stored.Country)
	assert.Equal(t, "NL", *stored.Country)
	assert.Equal(t, h.clock.Now().UTC().Add(defaultSessionTTL), stored.ExpiresAt)
}

func TestValidateSessionHappyPath(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, nil)
	userID := uuid.New()
	credentials := h.createSession(t, userID, "fp-1", "203.0.113.10")

	h.clock.Advance(time.Minute)
	result, err := h.service.ValidateSession(context.Background(), credentials.Token, "203.0.113.10", "fp-1")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.NotNil(t, result.Session)
	assert.Equal(t, userID, result.Session.UserID)
	assert.Equal(t, h.clock.Now().UTC(), result.Session.LastActivityAt)
}

func TestValidateSessionUnknownToken(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, nil)

	result, err := h.service.ValidateSession(context.Background(), "no-such-token", "203.0.113.10", "fp-1")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonNotFound, result.Reason)
	assert.Nil(t, result.Session)
}

func TestValidateSessionExpiredTerminates(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{SessionTTL: time.Hour}, nil)
	userID := uuid.New()
	credentials := h.createSession(t, userID, "fp-1", "203.0.113.10")

	h.clock.Advance(2 * time.Hour)
	result, err := h.service.ValidateSession(context.Background(), credentials.Token, "203.0.113.10", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, ReasonExpired, result.Reason)

	stored := h.sessions.byID(credentials.SessionID)
	assert.False(t, stored.IsActive)
	require.NotNil(t, stored.TerminationReason)
	assert.Equal(t, entity.TerminationExpired, *stored.TerminationReason)

	// Once terminated the token no longer resolves at all.
	again, err := h.service.ValidateSession(context.Background(), credentials.Token, "203.0.113.10", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, ReasonNotFound, again.Reason)
}

func TestFingerprintMismatchIsFatal(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, nil)
	userID := uuid.New()
	credentials := h.createSession(t, userID, "fp-1", "203.0.113.10")

	result, err := h.service.ValidateSession(context.Background(), credentials.Token, "203.0.113.10", "fp-other")
	require.NoError(t, err)
	assert.Equal(t, ReasonDeviceMismatch, result.Reason)

	alerts := h.alerts.byType(entity.AlertSessionHijacking)
	require.Len(t, alerts, 1)
	assert.Equal(t, userID, *alerts[0].UserID)
	assert.Equal(t, 1, h.notifier.count())

	stored := h.sessions.byID(credentials.SessionID)
	assert.False(t, stored.IsActive)
	assert.Equal(t, entity.TerminationSuspiciousActivity, *stored.TerminationReason)

	// Even the legitimate device cannot resurrect a hijack-terminated
	// session.
	again, err := h.service.ValidateSession(context.Background(), credentials.Token, "203.0.113.10", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, ReasonNotFound, again.Reason)
}

func TestGeoAnomalyFailsCallButKeepsSession(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, map[string]*GeoLocation{
		"203.0.113.10": {Country: "NL"},
		"198.51.100.7": {Country: "BR"},
	})
	userID := uuid.New()
	credentials := h.createSession(t, userID, "fp-1", "203.0.113.10")

	result, err := h.service.ValidateSession(context.Background(), credentials.Token, "198.51.100.7", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, ReasonSuspiciousIPChange, result.Reason)

	alerts := h.alerts.byType(entity.AlertGeoAnomaly)
	require.Len(t, alerts, 1)

	stored := h.sessions.byID(credentials.SessionID)
	assert.True(t, stored.IsActive)

	// A retry from the original location still succeeds.
	again, err := h.service.ValidateSession(context.Background(), credentials.Token, "203.0.113.10", "fp-1")
	require.NoError(t, err)
	assert.True(t, again.Valid)
}

func TestIPChangeWithinCountryIsAllowed(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, map[string]*GeoLocation{
		"203.0.113.10": {Country: "NL", City: "Amsterdam"},
		"203.0.113.99": {Country: "NL", City: "Rotterdam"},
	})
	credentials := h.createSession(t, uuid.New(), "fp-1", "203.0.113.10")

	result, err := h.service.ValidateSession(context.Background(), credentials.Token, "203.0.113.99", "fp-1")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, h.alerts.byType(entity.AlertGeoAnomaly))
}

func TestUnresolvableIPChangeIsAllowed(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, map[string]*GeoLocation{
		"203.0.113.10": {Country: "NL"},
	})
	credentials := h.createSession(t, uuid.New(), "fp-1", "203.0.113.10")

	result, err := h.service.ValidateSession(context.Background(), credentials.Token, "192.168.1.50", "fp-1")
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestSlidingExpiryNeverDecreases(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{SessionTTL: 24 * time.Hour}, nil)
	userID := uuid.New()

	// A session issued with a longer explicit duration keeps it: the
	// sliding refresh never pulls the expiry back.
	credentials, err := h.service.CreateSession(context.Background(), CreateSessionInput{
		UserID:            userID,
		DeviceFingerprint: "fp-1",
		IPAddress:         "203.0.113.10",
		Duration:          72 * time.Hour,
		AllowConcurrent:   true,
	})
	require.NoError(t, err)
	issuedExpiry := credentials.ExpiresAt

	h.clock.Advance(time.Hour)
	result, err := h.service.ValidateSession(context.Background(), credentials.Token, "203.0.113.10", "fp-1")
	require.NoError(t, err)
	require.True(t, result.Valid)
	assert.Equal(t, issuedExpiry, result.Session.ExpiresAt)

	// Close to expiry the refresh extends it.
	h.clock.Advance(70 * time.Hour)
	result, err = h.service.ValidateSession(context.Background(), credentials.Token, "203.0.113.10", "fp-1")
	require.NoError(t, err)
	require.True(t, result.Valid)
	assert.Equal(t, h.clock.Now().UTC().Add(24*time.Hour), result.Session.ExpiresAt)
	assert.True(t, result.Session.ExpiresAt.After(issuedExpiry))
}

func TestConcurrencyLimitEvictsOldestFirst(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{MaxConcurrentSessions: 3}, nil)
	userID := uuid.New()

	var all []*SessionCredentials
	for i := 0; i < 4; i++ {
		all = append(all, h.createSession(t, userID, "fp-1", "203.0.113.10"))
		h.clock.Advance(time.Minute)
	}

	active, err := h.service.GetUserSessions(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, active, 3)

	oldest := h.sessions.byID(all[0].SessionID)
	assert.False(t, oldest.IsActive)
	assert.Equal(t, entity.TerminationMaxSessions, *oldest.TerminationReason)
	for _, credentials := range all[1:] {
		assert.True(t, h.sessions.byID(credentials.SessionID).IsActive)
	}

	alerts := h.alerts.byType(entity.AlertConcurrentSessionLimit)
	require.Len(t, alerts, 1)
	assert.Equal(t, entity.SeverityInfo, alerts[0].Severity)
}

func TestConcurrentLoginsNeverExceedSessionLimit(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{MaxConcurrentSessions: 3}, nil)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		h.createSession(t, userID, "fp-1", "203.0.113.10")
		h.clock.Advance(time.Minute)
	}

	// All logins race through the eviction check at once. Because the check
	// and the insert are one atomic repository call, no interleaving can put
	// the user above the limit.
	const logins = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.service.CreateSession(context.Background(), CreateSessionInput{
				UserID:            userID,
				DeviceFingerprint: "fp-race",
				IPAddress:         "203.0.113.20",
				AllowConcurrent:   true,
			})
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	active, err := h.service.GetUserSessions(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestExclusiveModeClosesEveryOtherSession(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, nil)
	userID := uuid.New()
	first := h.createSession(t, userID, "fp-1", "203.0.113.10")
	h.clock.Advance(time.Minute)

	second, err := h.service.CreateSession(context.Background(), CreateSessionInput{
		UserID:            userID,
		DeviceFingerprint: "fp-2",
		IPAddress:         "203.0.113.11",
		AllowConcurrent:   false,
	})
	require.NoError(t, err)

	closed := h.sessions.byID(first.SessionID)
	assert.False(t, closed.IsActive)
	assert.Equal(t, entity.TerminationByUser, *closed.TerminationReason)
	assert.True(t, h.sessions.byID(second.SessionID).IsActive)
}

func TestTerminateSessionIsIdempotent(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, nil)
	credentials := h.createSession(t, uuid.New(), "fp-1", "203.0.113.10")

	require.NoError(t, h.service.TerminateSession(context.Background(), credentials.Token, entity.TerminationLogout))
	stored := h.sessions.byID(credentials.SessionID)
	assert.False(t, stored.IsActive)
	assert.Equal(t, entity.TerminationLogout, *stored.TerminationReason)

	require.NoError(t, h.service.TerminateSession(context.Background(), credentials.Token, entity.TerminationLogout))
	require.NoError(t, h.service.TerminateSession(context.Background(), "unknown-token", entity.TerminationLogout))
}

func TestTerminateOtherSessionsSparesCurrent(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, nil)
	userID := uuid.New()
	first := h.createSession(t, userID, "fp-1", "203.0.113.10")
	h.clock.Advance(time.Minute)
	second := h.createSession(t, userID, "fp-2", "203.0.113.11")
	h.clock.Advance(time.Minute)
	current := h.createSession(t, userID, "fp-3", "203.0.113.12")

	closed, err := h.service.TerminateOtherSessions(context.Background(), userID, current.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), closed)
	assert.False(t, h.sessions.byID(first.SessionID).IsActive)
	assert.False(t, h.sessions.byID(second.SessionID).IsActive)
	assert.True(t, h.sessions.byID(current.SessionID).IsActive)
}

func TestCleanupExpiredSessions(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{SessionTTL: time.Hour}, nil)
	userA := uuid.New()
	userB := uuid.New()
	h.createSession(t, userA, "fp-1", "203.0.113.10")
	h.createSession(t, userB, "fp-2", "203.0.113.11")

	h.clock.Advance(30 * time.Minute)
	fresh := h.createSession(t, userA, "fp-3", "203.0.113.12")

	h.clock.Advance(45 * time.Minute)
	closed, err := h.service.CleanupExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), closed)
	assert.True(t, h.sessions.byID(fresh.SessionID).IsActive)
}

func TestRecordLoginAttemptRiskProgression(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, nil)

	for i, wantScore := range []int{20, 40} {
		attempt, err := h.service.RecordLoginAttempt(context.Background(), LoginAttemptInput{
			Email:     "Investor@Fund.example",
			Success:   false,
			IPAddress: "203.0.113.10",
		})
		require.NoError(t, err)
		assert.Equal(t, "investor@fund.example", attempt.Email)
		assert.Equal(t, wantScore, attempt.RiskScore, "attempt %d", i+1)
		assert.False(t, attempt.Suspicious)
		assert.False(t, attempt.AccountLocked)
	}

	third, err := h.service.RecordLoginAttempt(context.Background(), LoginAttemptInput{
		Email:   "investor@fund.example",
		Success: false,
	})
	require.NoError(t, err)
	assert.True(t, third.Suspicious)
	assert.False(t, third.AccountLocked)
	assert.Equal(t, 60, third.RiskScore)
}

func TestLockoutCrossedExactlyAtThreshold(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, nil)
	email := "investor@fund.example"
	userID := uuid.New()

	var locked *entity.LoginAttempt
	for i := 0; i < 5; i++ {
		attempt, err := h.service.RecordLoginAttempt(context.Background(), LoginAttemptInput{
			Email:   email,
			Success: false,
			UserID:  &userID,
		})
		require.NoError(t, err)
		locked = attempt
	}

	require.True(t, locked.AccountLocked)
	assert.Equal(t, entity.MaxRiskScore, locked.RiskScore)
	require.NotNil(t, locked.LockedUntil)
	assert.Equal(t, h.clock.Now().UTC().Add(defaultLockoutDuration), *locked.LockedUntil)

	alerts := h.alerts.byType(entity.AlertBruteForce)
	require.Len(t, alerts, 1)
	assert.Equal(t, entity.SeverityCritical, alerts[0].Severity)

	// Further failures stay locked but do not raise another alert.
	sixth, err := h.service.RecordLoginAttempt(context.Background(), LoginAttemptInput{
		Email:   email,
		Success: false,
		UserID:  &userID,
	})
	require.NoError(t, err)
	assert.True(t, sixth.AccountLocked)
	assert.Len(t, h.alerts.byType(entity.AlertBruteForce), 1)
}

func TestLockoutWindowExpires(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, nil)
	email := "investor@fund.example"

	for i := 0; i < 5; i++ {
		_, err := h.service.RecordLoginAttempt(context.Background(), LoginAttemptInput{
			Email:   email,
			Success: false,
		})
		require.NoError(t, err)
	}

	status, err := h.service.IsAccountLocked(context.Background(), "  INVESTOR@fund.example ")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	require.NotNil(t, status.Until)

	h.clock.Advance(defaultLockoutDuration + time.Minute)
	status, err = h.service.IsAccountLocked(context.Background(), email)
	require.NoError(t, err)
	assert.False(t, status.Locked)
}

func TestFailuresOutsideWindowDoNotLock(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{FailureWindow: 15 * time.Minute}, nil)
	email := "investor@fund.example"

	for i := 0; i < 4; i++ {
		_, err := h.service.RecordLoginAttempt(context.Background(), LoginAttemptInput{
			Email:   email,
			Success: false,
		})
		require.NoError(t, err)
	}

	// The window slides past the earlier failures.
	h.clock.Advance(20 * time.Minute)
	attempt, err := h.service.RecordLoginAttempt(context.Background(), LoginAttemptInput{
		Email:   email,
		Success: false,
	})
	require.NoError(t, err)
	assert.False(t, attempt.AccountLocked)
	assert.Equal(t, 20, attempt.RiskScore)
}

func TestSuccessfulAttemptCarriesNoRisk(t *testing.T) {
	h := newSecurityHarness(t, SessionConfig{}, nil)

	attempt, err := h.service.RecordLoginAttempt(context.Background(), LoginAttemptInput{
		Email:   "investor@fund.example",
		Success: true,
	})
	require.NoError(t, err)
	assert.True(t, attempt.Success)
	assert.Zero(t, attempt.RiskScore)
	assert.False(t, attempt.Suspicious)
	assert.False(t, attempt.AccountLocked)
}
