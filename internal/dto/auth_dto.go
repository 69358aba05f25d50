package dto

import (
	"time"

	"fundadmin/internal/entity"
)

type LoginRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required"`
	DeviceFingerprint string `json:"device_fingerprint" validate:"required"`
}

type LoginMFARequest struct {
	MFAToken          string `json:"mfa_token" validate:"required"`
	Code              string `json:"code" validate:"required"`
	DeviceFingerprint string `json:"device_fingerprint" validate:"required"`
}

type LoginResponse struct {
	SessionToken      string     `json:"session_token,omitempty"`
	SessionID         string     `json:"session_id,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	MFARequired       bool       `json:"mfa_required,omitempty"`
	MFAToken          string     `json:"mfa_token,omitempty"`
	MFATokenExpiresIn int64      `json:"mfa_token_expires_in,omitempty"`
}

type MFAEnableResponse struct {
	QRCode string `json:"qr_code"`
}

type MFAVerifyRequest struct {
	Code string `json:"code" validate:"required"`
}

type SessionResponse struct {
	ID             string    `json:"id"`
	DeviceName     string    `json:"device_name"`
	Browser        string    `json:"browser"`
	OS             string    `json:"os"`
	IPAddress      string    `json:"ip_address"`
	Country        *string   `json:"country,omitempty"`
	City           *string   `json:"city,omitempty"`
	IsTrusted      bool      `json:"is_trusted"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func SessionResponseFromEntity(session *entity.Session) SessionResponse {
	return SessionResponse{
		ID:             session.ID.String(),
		DeviceName:     session.DeviceName,
		Browser:        session.Browser,
		OS:             session.OS,
		IPAddress:      session.IPAddress,
		Country:        session.Country,
		City:           session.City,
		IsTrusted:      session.IsTrusted,
		CreatedAt:      session.CreatedAt,
		LastActivityAt: session.LastActivityAt,
		ExpiresAt:      session.ExpiresAt,
	}
}

func SessionResponsesFromEntities(sessions []entity.Session) []SessionResponse {
	responses := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		responses = append(responses, SessionResponseFromEntity(&sessions[i]))
	}
	return responses
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	return UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		Role:      string(user.Role),
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}
