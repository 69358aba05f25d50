package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"fundadmin/api/middleware"
	"fundadmin/internal/dto"
	"fundadmin/internal/entity"
	"fundadmin/internal/repository"
	"fundadmin/internal/service"
)

// AuditHandler exposes the audit trail to administrators: filtered search,
// compliance export, and chain verification.
type AuditHandler struct {
	Audit *service.AuditLogger
}

func NewAuditHandler(audit *service.AuditLogger) *AuditHandler {
	return &AuditHandler{Audit: audit}
}

func (h *AuditHandler) Search(c echo.Context) error {
	filter, err := parseAuditFilter(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	events, err := h.Audit.Query(c.Request().Context(), filter)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AuditEventResponsesFromEntities(events))
}

func (h *AuditHandler) Export(c echo.Context) error {
	filter, err := parseAuditFilter(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	format := service.ExportFormat(c.QueryParam("format"))
	if format == "" {
		format = service.ExportJSON
	}

	payload, err := h.Audit.Export(c.Request().Context(), filter, format)
	if err != nil {
		return writeServiceError(c, err)
	}

	// The export itself is an auditable compliance event.
	h.Audit.Log(entity.EventAuditExported, entity.SeverityInfo, exportContext(c), &service.EventMetadata{
		Resource: "audit_events",
		Action:   "export",
		AdditionalData: map[string]any{
			"format": string(format),
		},
	})

	switch format {
	case service.ExportCSV:
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="audit_export.csv"`)
		return c.Blob(http.StatusOK, "text/csv", payload)
	default:
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="audit_export.json"`)
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, payload)
	}
}

func (h *AuditHandler) Verify(c echo.Context) error {
	from, err := parseTimeParam(c, "from")
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	to, err := parseTimeParam(c, "to")
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}

	result, err := h.Audit.VerifyChain(c.Request().Context(), from, to)
	if err != nil {
		return writeServiceError(c, err)
	}
	response := dto.ChainVerificationResponse{
		Valid:   result.Valid,
		Checked: result.Checked,
	}
	if result.BrokenAt != nil {
		broken := result.BrokenAt.String()
		response.BrokenAt = &broken
	}
	return c.JSON(http.StatusOK, response)
}

func parseAuditFilter(c echo.Context) (repository.AuditFilter, error) {
	var filter repository.AuditFilter

	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid user_id")
		}
		filter.UserID = &id
	}
	if raw := c.QueryParam("tenant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid tenant_id")
		}
		filter.TenantID = &id
	}
	for _, raw := range c.QueryParams()["event_type"] {
		for _, value := range strings.Split(raw, ",") {
			value = strings.TrimSpace(value)
			if value != "" {
				filter.EventTypes = append(filter.EventTypes, entity.EventType(value))
			}
		}
	}
	for _, raw := range c.QueryParams()["severity"] {
		for _, value := range strings.Split(raw, ",") {
			value = strings.TrimSpace(value)
			if value != "" {
				filter.Severities = append(filter.Severities, entity.Severity(value))
			}
		}
	}
	if raw := strings.TrimSpace(c.QueryParam("resource")); raw != "" {
		filter.Resource = &raw
	}

	from, err := parseTimeParam(c, "from")
	if err != nil {
		return filter, err
	}
	to, err := parseTimeParam(c, "to")
	if err != nil {
		return filter, err
	}
	filter.From = from
	filter.To = to

	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	return filter, nil
}

func parseTimeParam(c echo.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: expected RFC3339 timestamp", name)
	}
	return &parsed, nil
}

func exportContext(c echo.Context) *service.EventContext {
	ectx := &service.EventContext{}
	if userID, ok := middleware.UserIDFromContext(c); ok {
		ectx.UserID = &userID
	}
	if tenantID, ok := middleware.TenantIDFromContext(c); ok {
		ectx.TenantID = tenantID
	}
	if sessionID, ok := middleware.SessionIDFromContext(c); ok {
		ectx.SessionID = &sessionID
	}
	if ip := c.RealIP(); ip != "" {
		ectx.IPAddress = &ip
	}
	return ectx
}
