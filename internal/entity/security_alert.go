package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AlertType string

const (
	AlertSessionHijacking       AlertType = "session_hijacking"
	AlertBruteForce             AlertType = "brute_force_attempt"
	AlertGeoAnomaly             AlertType = "geo_anomaly"
	AlertConcurrentSessionLimit AlertType = "concurrent_session_limit"
)

type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// SecurityAlert is materialized when an anomaly is confirmed. Triage
// (acknowledge/resolve) happens in a separate workflow.
type SecurityAlert struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	Type     AlertType `gorm:"type:varchar(64);not null;index"`
	Severity Severity  `gorm:"type:varchar(16);not null"`

	UserID   *uuid.UUID `gorm:"type:uuid;index"`
	TenantID *uuid.UUID `gorm:"type:uuid"`

	Title       string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`

	Metadata datatypes.JSON

	Status AlertStatus `gorm:"type:varchar(16);default:'open';not null;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
