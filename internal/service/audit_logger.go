package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"fundadmin/internal/entity"
	"fundadmin/internal/repository"
	"fundadmin/internal/utils"
)

// EventContext describes the acting principal. Every field is optional;
// unknown stays nil.
type EventContext struct {
	UserID            *uuid.UUID
	TenantID          *uuid.UUID
	IPAddress         *string
	UserAgent         *string
	Location          *string
	SessionID         *uuid.UUID
	DeviceFingerprint *string
}

// EventMetadata describes what was acted on. Callers are expected to set
// Resource for data-access events.
type EventMetadata struct {
	Resource       string
	ResourceID     string
	Action         string
	Changes        map[string]any
	Reason         string
	AdditionalData map[string]any
}

type AuditConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

const (
	defaultAuditBatchSize     = 20
	defaultAuditFlushInterval = 5 * time.Second
)

// AuditLogger appends hash-chained audit events and batches them to the
// store. The chain pointer is process-wide state guarded by a mutex: the
// read-previous/compute/advance sequence must be atomic or two concurrent
// events would link to the same predecessor and fork the chain. For a
// multi-instance deployment the pointer has to move into the store behind a
// conditional write; a single in-memory pointer covers one process only.
type AuditLogger struct {
	events repository.AuditEventRepository
	clock  Clock
	logger logrus.FieldLogger
	config AuditConfig

	mu       sync.Mutex
	lastHash string
	batch    []*entity.AuditEvent
	timer    *time.Timer
}

func NewAuditLogger(
	events repository.AuditEventRepository,
	clock Clock,
	logger logrus.FieldLogger,
	config AuditConfig,
) *AuditLogger {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultAuditBatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = defaultAuditFlushInterval
	}
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuditLogger{
		events: events,
		clock:  clock,
		logger: logger,
		config: config,
	}
}

// Log chains and buffers one audit event. It never fails: persistence
// problems are reported asynchronously so that auditing can not block or
// break the operation being audited. The returned event is already chained
// when Log returns.
func (l *AuditLogger) Log(
	eventType entity.EventType,
	severity entity.Severity,
	ectx *EventContext,
	meta *EventMetadata,
) *entity.AuditEvent {
	event := &entity.AuditEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Severity:  severity,
		// Truncated to the store's timestamp precision so a verification
		// pass recomputes the same hash after a round-trip.
		Timestamp: l.clock.Now().UTC().Truncate(time.Microsecond),
	}
	applyContext(event, ectx)
	applyMetadata(event, meta)

	l.mu.Lock()
	event.PreviousHash = l.lastHash
	event.Hash = utils.ChainDigest(chainPayload(event))
	l.lastHash = event.Hash

	l.batch = append(l.batch, event)
	if len(l.batch) >= l.config.BatchSize {
		batch := l.takeBatchLocked()
		l.mu.Unlock()
		l.persist(batch)
		return event
	}
	if l.timer == nil {
		l.timer = time.AfterFunc(l.config.FlushInterval, l.flushOnTimer)
	}
	l.mu.Unlock()
	return event
}

// Flush persists anything still buffered. Used on shutdown and in tests.
func (l *AuditLogger) Flush(ctx context.Context) error {
	l.mu.Lock()
	batch := l.takeBatchLocked()
	l.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return l.events.CreateBatch(ctx, batch)
}

// takeBatchLocked hands ownership of the current batch to the caller and
// disarms the pending timer. Callers must hold l.mu.
func (l *AuditLogger) takeBatchLocked() []*entity.AuditEvent {
	batch := l.batch
	l.batch = nil
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	return batch
}

func (l *AuditLogger) flushOnTimer() {
	l.mu.Lock()
	batch := l.takeBatchLocked()
	l.mu.Unlock()
	l.persist(batch)
}

// persist writes one batch. A failed batch is dropped after one attempt:
// retrying would re-order inserts behind newer batches and risks unbounded
// buffering during a store outage.
func (l *AuditLogger) persist(batch []*entity.AuditEvent) {
	if len(batch) == 0 {
		return
	}
	if err := l.events.CreateBatch(context.Background(), batch); err != nil {
		l.logger.WithError(err).WithField("events", len(batch)).
			Error("audit batch flush failed, batch dropped")
	}
}

// LogLogin records an authentication outcome.
func (l *AuditLogger) LogLogin(ectx *EventContext, success bool, reason string) *entity.AuditEvent {
	if success {
		return l.Log(entity.EventLoginSuccess, entity.SeverityInfo, ectx, nil)
	}
	return l.Log(entity.EventLoginFailed, entity.SeverityWarning, ectx, &EventMetadata{Reason: reason})
}

// LogDataAccess records a sensitive read or write against a business
// resource. action is one of view/create/update/delete/export.
func (l *AuditLogger) LogDataAccess(
	resource string,
	resourceID string,
	action string,
	ectx *EventContext,
	changes map[string]any,
) *entity.AuditEvent {
	eventType := entity.EventDataViewed
	switch action {
	case "create":
		eventType = entity.EventDataCreated
	case "update":
		eventType = entity.EventDataUpdated
	case "delete":
		eventType = entity.EventDataDeleted
	case "export":
		eventType = entity.EventDataExported
	}
	return l.Log(eventType, entity.SeverityInfo, ectx, &EventMetadata{
		Resource:   resource,
		ResourceID: resourceID,
		Action:     action,
		Changes:    changes,
	})
}

// LogPermissionChange records a grant, revoke, or role change.
func (l *AuditLogger) LogPermissionChange(
	eventType entity.EventType,
	resource string,
	resourceID string,
	ectx *EventContext,
	changes map[string]any,
) *entity.AuditEvent {
	return l.Log(eventType, entity.SeverityWarning, ectx, &EventMetadata{
		Resource:   resource,
		ResourceID: resourceID,
		Action:     "permission_change",
		Changes:    changes,
	})
}

// LogSecurityAlert records a confirmed anomaly alongside its SecurityAlert.
func (l *AuditLogger) LogSecurityAlert(
	ectx *EventContext,
	severity entity.Severity,
	reason string,
	additional map[string]any,
) *entity.AuditEvent {
	return l.Log(entity.EventSecurityAlert, severity, ectx, &EventMetadata{
		Reason:         reason,
		AdditionalData: additional,
	})
}

// LogFinancialEvent records a fund-accounting action (capital call,
// distribution, NAV update, transfer).
func (l *AuditLogger) LogFinancialEvent(
	eventType entity.EventType,
	resource string,
	resourceID string,
	ectx *EventContext,
	changes map[string]any,
) *entity.AuditEvent {
	return l.Log(eventType, entity.SeverityInfo, ectx, &EventMetadata{
		Resource:   resource,
		ResourceID: resourceID,
		Action:     "financial",
		Changes:    changes,
	})
}

func applyContext(event *entity.AuditEvent, ectx *EventContext) {
	if ectx == nil {
		return
	}
	event.UserID = ectx.UserID
	event.TenantID = ectx.TenantID
	event.IPAddress = ectx.IPAddress
	event.UserAgent = ectx.UserAgent
	event.Location = ectx.Location
	event.SessionID = ectx.SessionID
	event.DeviceFingerprint = ectx.DeviceFingerprint
}

func applyMetadata(event *entity.AuditEvent, meta *EventMetadata) {
	if meta == nil {
		return
	}
	event.Resource = optionalString(meta.Resource)
	event.ResourceID = optionalString(meta.ResourceID)
	event.Action = optionalString(meta.Action)
	event.Reason = optionalString(meta.Reason)
	event.Changes = marshalJSON(meta.Changes)
	event.AdditionalData = marshalJSON(meta.AdditionalData)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// marshalJSON produces the stored (and hashed) byte form of a metadata map.
// encoding/json sorts map keys, so the serialization is order-stable.
func marshalJSON(values map[string]any) datatypes.JSON {
	if len(values) == 0 {
		return nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
