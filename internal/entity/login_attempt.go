package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const MaxRiskScore = 100

// LoginAttempt is an append-only record of one authentication attempt.
// Rows are never updated after creation.
type LoginAttempt struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email    string     `gorm:"type:varchar(255);not null;index"`
	UserID   *uuid.UUID `gorm:"type:uuid;index"`
	TenantID *uuid.UUID `gorm:"type:uuid"`

	Success       bool    `gorm:"not null"`
	FailureReason *string `gorm:"type:varchar(255)"`

	IPAddress         string `gorm:"type:varchar(45)"`
	UserAgent         string `gorm:"type:text"`
	DeviceFingerprint string `gorm:"type:varchar(255)"`

	Suspicious       bool           `gorm:"default:false"`
	SuspicionReasons datatypes.JSON // list of strings
	RiskScore        int            `gorm:"default:0"`

	AccountLocked bool `gorm:"default:false;index"`
	LockedUntil   *time.Time

	CreatedAt time.Time `gorm:"index"`
}
