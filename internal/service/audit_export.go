package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"fundadmin/internal/entity"
	"fundadmin/internal/repository"
)

type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// Query returns a filtered view of persisted events, newest first. Query
// results are views for reporting; they carry no chain semantics.
func (l *AuditLogger) Query(ctx context.Context, filter repository.AuditFilter) ([]entity.AuditEvent, error) {
	return l.events.Search(ctx, filter)
}

// Export serializes a filtered result set for compliance reporting.
func (l *AuditLogger) Export(ctx context.Context, filter repository.AuditFilter, format ExportFormat) ([]byte, error) {
	events, err := l.events.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	switch format {
	case ExportJSON:
		return json.MarshalIndent(events, "", "  ")
	case ExportCSV:
		return exportCSV(events)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func exportCSV(events []entity.AuditEvent) ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	header := []string{
		"id", "event_type", "severity", "timestamp",
		"user_id", "tenant_id", "ip_address", "session_id",
		"resource", "resource_id", "action", "reason",
		"previous_hash", "hash",
	}
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for i := range events {
		event := &events[i]
		record := []string{
			event.ID.String(),
			string(event.EventType),
			string(event.Severity),
			event.Timestamp.UTC().Format(time.RFC3339Nano),
			uuidOrEmpty(event.UserID),
			uuidOrEmpty(event.TenantID),
			stringOrEmpty(event.IPAddress),
			uuidOrEmpty(event.SessionID),
			stringOrEmpty(event.Resource),
			stringOrEmpty(event.ResourceID),
			stringOrEmpty(event.Action),
			stringOrEmpty(event.Reason),
			event.PreviousHash,
			event.Hash,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func uuidOrEmpty(value *uuid.UUID) string {
	if value == nil {
		return ""
	}
	return value.String()
}
