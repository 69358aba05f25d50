package entity

import (
	"time"

	"github.com/google/uuid"
)

// Termination reasons recorded when a session's active flag flips to false.
// Exactly one of these is set alongside TerminatedAt.
const (
	TerminationLogout             = "logout"
	TerminationExpired            = "expired"
	TerminationSuspiciousActivity = "suspicious activity"
	TerminationMaxSessions        = "max sessions exceeded"
	TerminationByUser             = "terminated by user"
)

// Session is one authenticated device/browser pairing. The opaque session
// secret handed to the client is never stored, only its hash.
type Session struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	TenantID *uuid.UUID `gorm:"type:uuid;index"`

	TokenHash string `gorm:"type:text;not null;index"`

	DeviceFingerprint string  `gorm:"type:varchar(255);not null"`
	DeviceName        string  `gorm:"type:varchar(100)"`
	Browser           string  `gorm:"type:varchar(50)"`
	OS                string  `gorm:"type:varchar(50)"`
	IPAddress         string  `gorm:"type:varchar(45)"`
	Country           *string `gorm:"type:varchar(64)"`
	City              *string `gorm:"type:varchar(128)"`

	IsActive  bool `gorm:"default:true;index"`
	IsTrusted bool `gorm:"default:false"`

	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time

	TerminatedAt      *time.Time
	TerminationReason *string `gorm:"type:varchar(64)"`
}
