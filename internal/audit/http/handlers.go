// Package audithttp exposes the audit trail to administrators.
package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-auth/atlas-auth/internal/audit"
	"github.com/atlas-auth/atlas-auth/internal/platform/httpx"
)

const maxDateRange = 90 * 24 * time.Hour

// Trail reads persisted audit events.
type Trail interface {
	List(ctx context.Context, filters audit.Filters) ([]audit.Event, audit.PageInfo, error)
}

// Handler serves the audit trail listing.
type Handler struct {
	logger *slog.Logger
	trail  Trail
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, trail Trail) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, trail: trail}
}

// MountRoutes registers the trail endpoint. The caller is expected to guard
// the router group with authentication and an admin role check.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/events", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	events, paging, err := h.trail.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list audit events", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{
		"events": events,
		"paging": paging,
	})
}

func parseFilters(r *http.Request) (audit.Filters, error) {
	q := r.URL.Query()
	filters := audit.Filters{
		Kind:   strings.TrimSpace(q.Get("kind")),
		Email:  strings.TrimSpace(q.Get("email")),
		UserID: strings.TrimSpace(q.Get("user")),
	}

	if raw := q.Get("from"); raw != "" {
		from, err := parseTimestamp(raw)
		if err != nil {
			return audit.Filters{}, fmt.Errorf("Invalid from timestamp")
		}
		filters.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := parseTimestamp(raw)
		if err != nil {
			return audit.Filters{}, fmt.Errorf("Invalid to timestamp")
		}
		filters.To = to
	}
	if !filters.From.IsZero() && !filters.To.IsZero() {
		if filters.To.Before(filters.From) {
			return audit.Filters{}, fmt.Errorf("Date range is inverted")
		}
		if filters.To.Sub(filters.From) > maxDateRange {
			return audit.Filters{}, fmt.Errorf("Date range exceeds 90 days")
		}
	}

	var err error
	if filters.Page, err = parsePositive(q.Get("page")); err != nil {
		return audit.Filters{}, fmt.Errorf("Invalid page")
	}
	if filters.PageSize, err = parsePositive(q.Get("pageSize")); err != nil {
		return audit.Filters{}, fmt.Errorf("Invalid pageSize")
	}
	return filters, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parsePositive(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("not a positive integer")
	}
	return value, nil
}
