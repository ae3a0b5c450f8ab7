package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopdesk/backoffice/internal/audit"
	"github.com/shopdesk/backoffice/internal/platform/httpx"
	"github.com/shopdesk/backoffice/internal/shared"
)

const (
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
	maxPageSize       = 50
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the audit trail of catalog and profile changes.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, r, "load audit timeline", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Success", result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, r, "export audit timeline", err)
		return
	}
	csvBytes, err := audit.WriteCSV(rows)
	if err != nil {
		h.handleServerError(w, r, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-timeline.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.WarnContext(r.Context(), "write csv", slog.Any("error", err))
	}
}

func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	toTime := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return audit.TimelineFilters{}, invalid("to", "must be a date (YYYY-MM-DD)")
		}
		toTime = parsed.Add(24 * time.Hour)
	}
	fromTime := toTime.Add(-defaultDateRange)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return audit.TimelineFilters{}, invalid("from", "must be a date (YYYY-MM-DD)")
		}
		fromTime = parsed
	}
	if !fromTime.Before(toTime) {
		return audit.TimelineFilters{}, invalid("range", "from must be before to")
	}
	if toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, invalid("range", "must not exceed 90 days")
	}

	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, invalid("page", "must be a positive integer")
		}
		page = parsed
	}
	pageSize := 0
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, invalid("page_size", "must be a positive integer")
		}
		pageSize = min(parsed, maxPageSize)
	}

	return audit.TimelineFilters{
		From:     fromTime,
		To:       toTime,
		Actor:    strings.TrimSpace(q.Get("actor")),
		Entity:   strings.TrimSpace(q.Get("entity")),
		EntityID: strings.TrimSpace(q.Get("entity_id")),
		Action:   strings.TrimSpace(q.Get("action")),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func invalid(field, message string) *shared.Failure {
	return shared.Invalid("Invalid audit filter", map[string]string{field: message})
}

func (h *Handler) handleServerError(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.logger.DebugContext(r.Context(), "audit request failed", slog.String("step", message))
	httpx.RespondError(w, shared.NewFailure(r.Context(), h.logger, err, "Could not load the audit trail"))
}
