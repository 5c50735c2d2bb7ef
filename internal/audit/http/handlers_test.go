package audithttp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/atlas-auth/atlas-auth/internal/audit"
	audithttp "github.com/atlas-auth/atlas-auth/internal/audit/http"
	_ "github.com/atlas-auth/atlas-auth/testing"
)

type stubTrail struct {
	filters audit.Filters
	events  []audit.Event
	paging  audit.PageInfo
	err     error
}

func (s *stubTrail) List(ctx context.Context, filters audit.Filters) ([]audit.Event, audit.PageInfo, error) {
	s.filters = filters
	return s.events, s.paging, s.err
}

func newTrailRouter(trail *stubTrail) chi.Router {
	router := chi.NewRouter()
	audithttp.NewHandler(nil, trail).MountRoutes(router)
	return router
}

func get(t *testing.T, router chi.Router, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestListEvents(t *testing.T) {
	trail := &stubTrail{
		events: []audit.Event{{Kind: audit.KindLoginFail, Email: "a@x.com", At: time.Now().UTC()}},
		paging: audit.PageInfo{Page: 1, PageSize: 20},
	}
	res := get(t, newTrailRouter(trail), "/events?kind=login_fail&email=a@x.com&page=1")
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			Events []audit.Event  `json:"events"`
			Paging audit.PageInfo `json:"paging"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.True(t, payload.Success)
	require.Len(t, payload.Data.Events, 1)
	require.Equal(t, "login_fail", trail.filters.Kind)
	require.Equal(t, "a@x.com", trail.filters.Email)
	require.Equal(t, 1, trail.filters.Page)
}

func TestListEventsDateWindow(t *testing.T) {
	trail := &stubTrail{}
	router := newTrailRouter(trail)

	res := get(t, router, "/events?from=2026-01-01&to=2026-01-08")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), trail.filters.From)
	require.Equal(t, 7*24*time.Hour, trail.filters.To.Sub(trail.filters.From))
}

func TestListEventsBadFilters(t *testing.T) {
	router := newTrailRouter(&stubTrail{})

	for _, target := range []string{
		"/events?from=yesterday",
		"/events?from=2026-01-08&to=2026-01-01",
		"/events?from=2026-01-01&to=2026-06-01",
		"/events?page=0",
		"/events?pageSize=-5",
	} {
		res := get(t, router, target)
		require.Equal(t, http.StatusBadRequest, res.Code, target)
	}
}

func TestListEventsStoreFailure(t *testing.T) {
	trail := &stubTrail{err: errors.New("pool closed")}
	res := get(t, newTrailRouter(trail), "/events")
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Contains(t, res.Body.String(), "Something went wrong")
}
