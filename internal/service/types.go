package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fundadmin/internal/entity"
)

// GeoLocation is a coarse, best-effort resolution of a network address.
// Empty fields mean the resolver had no answer, not "resolved to empty".
type GeoLocation struct {
	Country string
	City    string
}

// GeoResolver resolves a network address to a coarse location. A nil result
// with a nil error means the address could not be resolved; callers treat
// that as unknown, never as an anomaly.
type GeoResolver interface {
	Resolve(ctx context.Context, ipAddress string) (*GeoLocation, error)
}

// AlertNotifier delivers a materialized SecurityAlert to the downstream
// triage channel. Delivery is best-effort.
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, alert *entity.SecurityAlert) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

type MFATokenIssuer interface {
	IssueMFAToken(userID uuid.UUID) (string, time.Duration, error)
	ParseMFAToken(token string) (uuid.UUID, error)
}

type MFAProvider interface {
	GenerateSecret() (string, error)
	QRCodeURL(email string, issuer string, secret string) (string, error)
	ValidateCode(secret string, code string) bool
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
