package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"fundadmin/internal/entity"
	"fundadmin/internal/repository"
	"fundadmin/internal/utils"
)

const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

type AuthConfig struct {
	SessionTTL              time.Duration
	AllowConcurrentSessions bool
	MFAIssuer               string
}

// AuthService is the authentication entry point: the canonical consumer of
// the session security service. It owns the anti-enumeration policy: a bad
// password and a locked account both surface as ErrInvalidCredentials.
type AuthService struct {
	users      repository.UserRepository
	mfaSecrets repository.MFASecretRepository

	security     *SessionSecurityService
	audit        *AuditLogger
	passwordHash PasswordHasher
	mfaTokens    MFATokenIssuer
	mfaProvider  MFAProvider
	clock        Clock
	config       AuthConfig
}

func NewAuthService(
	users repository.UserRepository,
	mfaSecrets repository.MFASecretRepository,
	security *SessionSecurityService,
	audit *AuditLogger,
	passwordHash PasswordHasher,
	mfaTokens MFATokenIssuer,
	mfaProvider MFAProvider,
	clock Clock,
	config AuthConfig,
) *AuthService {
	if clock == nil {
		clock = RealClock{}
	}
	return &AuthService{
		users:        users,
		mfaSecrets:   mfaSecrets,
		security:     security,
		audit:        audit,
		passwordHash: passwordHash,
		mfaTokens:    mfaTokens,
		mfaProvider:  mfaProvider,
		clock:        clock,
		config:       config,
	}
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Password) == "" ||
		strings.TrimSpace(input.DeviceFingerprint) == "" {
		return nil, ErrInvalidInput
	}
	email := utils.NormalizeEmail(input.Email)

	// Lockout short-circuits before any credential work so a locked account
	// cannot be probed further.
	lock, err := s.security.IsAccountLocked(ctx, email)
	if err != nil {
		return nil, err
	}
	if lock.Locked {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == nil {
		// Constant-time-ish path for unknown accounts.
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		if _, err := s.security.RecordLoginAttempt(ctx, s.attemptInput(input, email, false, "unknown account", nil, nil)); err != nil {
			return nil, err
		}
		s.audit.LogLogin(s.loginContext(input, nil, nil), false, "unknown account")
		return nil, ErrInvalidCredentials
	}

	if !s.passwordHash.Verify(*user.PasswordHash, input.Password) {
		if _, err := s.security.RecordLoginAttempt(ctx, s.attemptInput(input, email, false, "invalid password", &user.ID, user.TenantID)); err != nil {
			return nil, err
		}
		s.audit.LogLogin(s.loginContext(input, &user.ID, user.TenantID), false, "invalid password")
		return nil, ErrInvalidCredentials
	}

	if s.mfaProvider != nil && s.mfaSecrets != nil && s.mfaTokens != nil {
		secret, err := s.mfaSecrets.FindByUserID(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if secret != nil && secret.EnabledAt != nil {
			mfaToken, expiresIn, err := s.mfaTokens.IssueMFAToken(user.ID)
			if err != nil {
				return nil, err
			}
			return &LoginResult{
				MFARequired:       true,
				MFAToken:          mfaToken,
				MFATokenExpiresIn: int64(expiresIn.Seconds()),
			}, nil
		}
	}

	return s.openSession(ctx, user, input.DeviceFingerprint, input.IPAddress, input.UserAgent)
}

func (s *AuthService) LoginWithMFA(ctx context.Context, input LoginMFAInput) (*LoginResult, error) {
	if s.mfaProvider == nil || s.mfaTokens == nil || s.mfaSecrets == nil {
		return nil, ErrMFANotConfigured
	}
	if strings.TrimSpace(input.MFAToken) == "" || strings.TrimSpace(input.Code) == "" ||
		strings.TrimSpace(input.DeviceFingerprint) == "" {
		return nil, ErrInvalidInput
	}

	userID, err := s.mfaTokens.ParseMFAToken(input.MFAToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	secret, err := s.mfaSecrets.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if secret == nil || secret.EnabledAt == nil {
		return nil, ErrMFARequired
	}
	if !s.mfaProvider.ValidateCode(secret.Secret, input.Code) {
		failure := "invalid mfa code"
		if _, err := s.security.RecordLoginAttempt(ctx, LoginAttemptInput{
			Email:             user.Email,
			Success:           false,
			IPAddress:         input.IPAddress,
			UserAgent:         input.UserAgent,
			DeviceFingerprint: input.DeviceFingerprint,
			FailureReason:     &failure,
			UserID:            &user.ID,
			TenantID:          user.TenantID,
		}); err != nil {
			return nil, err
		}
		s.audit.Log(entity.EventMFAFailed, entity.SeverityWarning,
			&EventContext{
				UserID:            &user.ID,
				TenantID:          user.TenantID,
				IPAddress:         optionalString(input.IPAddress),
				DeviceFingerprint: optionalString(input.DeviceFingerprint),
			}, nil)
		return nil, ErrInvalidMFACode
	}

	return s.openSession(ctx, user, input.DeviceFingerprint, input.IPAddress, input.UserAgent)
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.security.TerminateSession(ctx, token, entity.TerminationLogout)
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID, exceptToken string) (int64, error) {
	return s.security.TerminateOtherSessions(ctx, userID, exceptToken)
}

func (s *AuthService) Sessions(ctx context.Context, userID uuid.UUID) ([]entity.Session, error) {
	return s.security.GetUserSessions(ctx, userID)
}

func (s *AuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *AuthService) EnableMFA(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.mfaProvider == nil || s.mfaSecrets == nil {
		return "", ErrMFANotConfigured
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	secret, err := s.mfaProvider.GenerateSecret()
	if err != nil {
		return "", err
	}
	if err := s.mfaSecrets.Upsert(ctx, &entity.MFASecret{
		UserID: user.ID,
		Secret: secret,
	}); err != nil {
		return "", err
	}

	issuer := s.config.MFAIssuer
	if strings.TrimSpace(issuer) == "" {
		issuer = "FundAdmin"
	}
	return s.mfaProvider.QRCodeURL(user.Email, issuer, secret)
}

func (s *AuthService) VerifyMFA(ctx context.Context, userID uuid.UUID, code string) error {
	if s.mfaProvider == nil || s.mfaSecrets == nil {
		return ErrMFANotConfigured
	}
	if strings.TrimSpace(code) == "" {
		return ErrInvalidInput
	}
	secret, err := s.mfaSecrets.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if secret == nil {
		return ErrMFARequired
	}
	if !s.mfaProvider.ValidateCode(secret.Secret, code) {
		return ErrInvalidMFACode
	}

	now := s.clock.Now()
	secret.EnabledAt = &now
	if err := s.mfaSecrets.Upsert(ctx, secret); err != nil {
		return err
	}
	s.audit.Log(entity.EventMFAEnabled, entity.SeverityInfo,
		&EventContext{UserID: &userID}, nil)
	return nil
}

func (s *AuthService) DisableMFA(ctx context.Context, userID uuid.UUID) error {
	if s.mfaSecrets == nil {
		return nil
	}
	return s.mfaSecrets.Disable(ctx, userID)
}

func (s *AuthService) openSession(
	ctx context.Context,
	user *entity.User,
	fingerprint string,
	ipAddress string,
	userAgent string,
) (*LoginResult, error) {
	credentials, err := s.security.CreateSession(ctx, CreateSessionInput{
		UserID:            user.ID,
		TenantID:          user.TenantID,
		DeviceFingerprint: fingerprint,
		IPAddress:         ipAddress,
		UserAgent:         userAgent,
		Duration:          s.config.SessionTTL,
		AllowConcurrent:   s.config.AllowConcurrentSessions,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.security.RecordLoginAttempt(ctx, LoginAttemptInput{
		Email:             user.Email,
		Success:           true,
		IPAddress:         ipAddress,
		UserAgent:         userAgent,
		DeviceFingerprint: fingerprint,
		UserID:            &user.ID,
		TenantID:          user.TenantID,
	}); err != nil {
		return nil, err
	}

	return &LoginResult{
		SessionToken: credentials.Token,
		SessionID:    credentials.SessionID.String(),
		ExpiresAt:    credentials.ExpiresAt,
	}, nil
}

func (s *AuthService) loginContext(input LoginInput, userID *uuid.UUID, tenantID *uuid.UUID) *EventContext {
	return &EventContext{
		UserID:            userID,
		TenantID:          tenantID,
		IPAddress:         optionalString(input.IPAddress),
		UserAgent:         optionalString(input.UserAgent),
		DeviceFingerprint: optionalString(input.DeviceFingerprint),
	}
}

func (s *AuthService) attemptInput(
	input LoginInput,
	email string,
	success bool,
	failureReason string,
	userID *uuid.UUID,
	tenantID *uuid.UUID,
) LoginAttemptInput {
	attempt := LoginAttemptInput{
		Email:             email,
		Success:           success,
		IPAddress:         input.IPAddress,
		UserAgent:         input.UserAgent,
		DeviceFingerprint: input.DeviceFingerprint,
		UserID:            userID,
		TenantID:          tenantID,
	}
	if failureReason != "" {
		attempt.FailureReason = &failureReason
	}
	return attempt
}
