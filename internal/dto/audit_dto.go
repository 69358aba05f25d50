package dto

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"fundadmin/internal/entity"
)

type AuditEventResponse struct {
	ID                string         `json:"id"`
	EventType         string         `json:"event_type"`
	Severity          string         `json:"severity"`
	Timestamp         time.Time      `json:"timestamp"`
	UserID            *string        `json:"user_id,omitempty"`
	TenantID          *string        `json:"tenant_id,omitempty"`
	IPAddress         *string        `json:"ip_address,omitempty"`
	UserAgent         *string        `json:"user_agent,omitempty"`
	Location          *string        `json:"location,omitempty"`
	SessionID         *string        `json:"session_id,omitempty"`
	DeviceFingerprint *string        `json:"device_fingerprint,omitempty"`
	Resource          *string        `json:"resource,omitempty"`
	ResourceID        *string        `json:"resource_id,omitempty"`
	Action            *string        `json:"action,omitempty"`
	Changes           datatypes.JSON `json:"changes,omitempty"`
	Reason            *string        `json:"reason,omitempty"`
	AdditionalData    datatypes.JSON `json:"additional_data,omitempty"`
	PreviousHash      string         `json:"previous_hash"`
	Hash              string         `json:"hash"`
}

func AuditEventResponseFromEntity(event *entity.AuditEvent) AuditEventResponse {
	return AuditEventResponse{
		ID:                event.ID.String(),
		EventType:         string(event.EventType),
		Severity:          string(event.Severity),
		Timestamp:         event.Timestamp,
		UserID:            uuidStringPtr(event.UserID),
		TenantID:          uuidStringPtr(event.TenantID),
		IPAddress:         event.IPAddress,
		UserAgent:         event.UserAgent,
		Location:          event.Location,
		SessionID:         uuidStringPtr(event.SessionID),
		DeviceFingerprint: event.DeviceFingerprint,
		Resource:          event.Resource,
		ResourceID:        event.ResourceID,
		Action:            event.Action,
		Changes:           event.Changes,
		Reason:            event.Reason,
		AdditionalData:    event.AdditionalData,
		PreviousHash:      event.PreviousHash,
		Hash:              event.Hash,
	}
}

func AuditEventResponsesFromEntities(events []entity.AuditEvent) []AuditEventResponse {
	responses := make([]AuditEventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, AuditEventResponseFromEntity(&events[i]))
	}
	return responses
}

type ChainVerificationResponse struct {
	Valid    bool    `json:"valid"`
	Checked  int     `json:"checked"`
	BrokenAt *string `json:"broken_at,omitempty"`
}

func uuidStringPtr(value *uuid.UUID) *string {
	if value == nil {
		return nil
	}
	s := value.String()
	return &s
}
