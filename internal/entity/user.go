package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin       UserRole = "admin"
	UserRoleFundManager UserRole = "fund_manager"
	UserRoleInvestor    UserRole = "investor"
)

type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID     *uuid.UUID `gorm:"type:uuid;index"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash *string    `gorm:"type:text"`
	Role         UserRole   `gorm:"type:varchar(32);default:'investor';not null"`

	IsActive bool `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Sessions  []Session
	MFASecret *MFASecret
}
