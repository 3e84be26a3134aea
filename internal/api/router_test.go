package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/reid/internal/api/handlers"
	"github.com/your-org/reid/internal/models"
	"github.com/your-org/reid/pkg/dto"
)

type fakeStore struct {
	stats    models.VisitStats
	closed   int64
	resetAt  time.Time
	visitors []models.Visitor
	visits   map[int64][]models.VisitEvent
	err      error
}

func (f *fakeStore) Stats(context.Context, time.Time) (models.VisitStats, error) {
	return f.stats, f.err
}

func (f *fakeStore) CloseOpenVisits(_ context.Context, at time.Time) (int64, error) {
	f.resetAt = at
	return f.closed, f.err
}

func (f *fakeStore) ListVisitors(_ context.Context, limit, offset int) ([]models.Visitor, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	end := min(offset+limit, len(f.visitors))
	if offset >= end {
		return nil, len(f.visitors), nil
	}
	return f.visitors[offset:end], len(f.visitors), nil
}

func (f *fakeStore) GetVisitor(_ context.Context, gid string) (*models.Visitor, error) {
	for _, v := range f.visitors {
		if v.GlobalID == gid {
			return &v, nil
		}
	}
	return nil, f.err
}

func (f *fakeStore) ListVisits(_ context.Context, id int64, _ int) ([]models.VisitEvent, error) {
	return f.visits[id], f.err
}

func newStore() *fakeStore {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := t0.Add(time.Minute)
	return &fakeStore{
		stats:  models.VisitStats{ActiveVisitors: 2, TotalToday: 7},
		closed: 2,
		visitors: []models.Visitor{
			{ID: 1, GlobalID: "G1", FirstSeenAt: t0, LastSeenAt: out},
			{ID: 2, GlobalID: "G2", FirstSeenAt: t0, LastSeenAt: t0},
		},
		visits: map[int64][]models.VisitEvent{
			1: {
				{ID: uuid.New(), VisitorID: 1, CameraID: "cam2", InTime: out},
				{ID: uuid.New(), VisitorID: 1, CameraID: "cam1", InTime: t0, OutTime: &out},
			},
		},
	}
}

func do(t *testing.T, h http.Handler, method, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(apiKeyHeader, key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatsAndReset(t *testing.T) {
	store := newStore()
	r := NewRouter(RouterConfig{Visits: store})

	w := do(t, r, http.MethodGet, "/v1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var st dto.StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.ActiveVisitors != 2 || st.TotalToday != 7 {
		t.Errorf("stats = %+v", st)
	}

	w = do(t, r, http.MethodPost, "/v1/reset-daily", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	var rr dto.ResetResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rr)
	if rr.Status != "reset_ok" || rr.Closed != 2 || store.resetAt.IsZero() {
		t.Errorf("reset = %+v", rr)
	}
}

func TestStoreErrors(t *testing.T) {
	store := newStore()
	store.err = errors.New("db down")
	r := NewRouter(RouterConfig{Visits: store})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/stats"},
		{http.MethodPost, "/v1/reset-daily"},
		{http.MethodGet, "/v1/visitors"},
	} {
		if w := do(t, r, tc.method, tc.path, ""); w.Code != http.StatusInternalServerError {
			t.Errorf("%s %s = %d, want 500", tc.method, tc.path, w.Code)
		}
	}
}

func TestVisitors(t *testing.T) {
	r := NewRouter(RouterConfig{Visits: newStore()})

	w := do(t, r, http.MethodGet, "/v1/visitors?limit=1&offset=1", "")
	var list dto.VisitorListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 2 || len(list.Visitors) != 1 || list.Visitors[0].GlobalID != "G2" {
		t.Errorf("list = %+v", list)
	}

	w = do(t, r, http.MethodGet, "/v1/visitors/G1/visits", "")
	if w.Code != http.StatusOK {
		t.Fatalf("visits status = %d", w.Code)
	}
	var visits dto.VisitListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &visits)
	if len(visits.Visits) != 2 || !visits.Visits[0].Open || visits.Visits[1].Open || visits.Visits[1].OutTime == "" {
		t.Errorf("visits = %+v", visits)
	}

	if w := do(t, r, http.MethodGet, "/v1/visitors/G9/visits", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown visitor status = %d", w.Code)
	}
}

func TestAPIKey(t *testing.T) {
	r := NewRouter(RouterConfig{APIKey: "secret", Visits: newStore()})

	tests := []struct {
		name string
		path string
		key  string
		want int
	}{
		{"missing", "/v1/stats", "", http.StatusUnauthorized},
		{"wrong", "/v1/stats", "nope", http.StatusForbidden},
		{"header", "/v1/stats", "secret", http.StatusOK},
		{"query", "/v1/stats?api_key=secret", "", http.StatusOK},
		{"health is public", "/healthz", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, r, http.MethodGet, tt.path, tt.key); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestReadyz(t *testing.T) {
	ok := handlers.PingFunc(func(context.Context) error { return nil })
	down := handlers.PingFunc(func(context.Context) error { return errors.New("refused") })

	r := NewRouter(RouterConfig{Visits: newStore(), Checks: map[string]handlers.Pinger{"postgres": ok, "nats": ok}})
	if w := do(t, r, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Errorf("ready status = %d", w.Code)
	}

	r = NewRouter(RouterConfig{Visits: newStore(), Checks: map[string]handlers.Pinger{"postgres": ok, "nats": down}})
	w := do(t, r, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("not-ready status = %d", w.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Status != "not ready" || body.Checks["nats"] != "refused" || body.Checks["postgres"] != "ok" {
		t.Errorf("body = %+v", body)
	}
}
