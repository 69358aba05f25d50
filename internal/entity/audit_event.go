package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EventType is the closed set of auditable actions. New values may be
// appended; existing values are part of the persisted chain and never change.
type EventType string

const (
	// Authentication
	EventLoginSuccess   EventType = "auth.login_success"
	EventLoginFailed    EventType = "auth.login_failed"
	EventLogout         EventType = "auth.logout"
	EventSessionExpired EventType = "auth.session_expired"
	EventMFAEnabled     EventType = "auth.mfa_enabled"
	EventMFAFailed      EventType = "auth.mfa_failed"

	// Data access
	EventDataViewed   EventType = "data.viewed"
	EventDataCreated  EventType = "data.created"
	EventDataUpdated  EventType = "data.updated"
	EventDataDeleted  EventType = "data.deleted"
	EventDataExported EventType = "data.exported"

	// Permissions
	EventPermissionGranted EventType = "permission.granted"
	EventPermissionRevoked EventType = "permission.revoked"
	EventRoleChanged       EventType = "permission.role_changed"

	// Security
	EventSecurityAlert      EventType = "security.alert"
	EventSuspiciousActivity EventType = "security.suspicious_activity"
	EventAccountLocked      EventType = "security.account_locked"

	// Compliance
	EventAuditExported   EventType = "compliance.audit_exported"
	EventReportGenerated EventType = "compliance.report_generated"

	// Administrative
	EventAdminAction     EventType = "admin.action"
	EventSettingsChanged EventType = "admin.settings_changed"

	// Financial
	EventCapitalCall  EventType = "financial.capital_call"
	EventDistribution EventType = "financial.distribution"
	EventNavUpdated   EventType = "financial.nav_updated"
	EventFundTransfer EventType = "financial.fund_transfer"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// AuditEvent is one immutable record in the tamper-evident chain.
// Hash covers every field except ID and Hash itself; PreviousHash links the
// event to its predecessor in arrival order. The repository exposes no
// update or delete for this entity.
type AuditEvent struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`
	Severity  Severity  `gorm:"type:varchar(16);not null;index"`
	Timestamp time.Time `gorm:"not null;index"`

	// Context (all optional)
	UserID            *uuid.UUID `gorm:"type:uuid;index"`
	TenantID          *uuid.UUID `gorm:"type:uuid;index"`
	IPAddress         *string    `gorm:"type:varchar(45)"`
	UserAgent         *string    `gorm:"type:text"`
	Location          *string    `gorm:"type:varchar(128)"`
	SessionID         *uuid.UUID `gorm:"type:uuid"`
	DeviceFingerprint *string    `gorm:"type:varchar(255)"`

	// Metadata (all optional)
	Resource       *string `gorm:"type:varchar(128);index"`
	ResourceID     *string `gorm:"type:varchar(128)"`
	Action         *string `gorm:"type:varchar(64)"`
	Changes        datatypes.JSON
	Reason         *string `gorm:"type:text"`
	AdditionalData datatypes.JSON

	PreviousHash string `gorm:"type:varchar(64);not null"`
	Hash         string `gorm:"type:varchar(64);not null"`
}
