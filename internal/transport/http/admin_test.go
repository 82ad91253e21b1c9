package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/app"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
)

func TestHandleAdminEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "create",
			method:         http.MethodPost,
			body:           `{"name":"Concert","starts_at":"2025-01-05T10:00:00Z","pool_size":3}`,
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"pool_size":3`,
		},
		{
			name:           "create without start",
			method:         http.MethodPost,
			body:           `{"name":"Concert","pool_size":1}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing name",
			method:         http.MethodPost,
			body:           `{"name":"  ","pool_size":3}`,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeEventNameRequired,
		},
		{
			name:           "zero pool",
			method:         http.MethodPost,
			body:           `{"name":"Concert","pool_size":0}`,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeInvalidPoolSize,
		},
		{
			name:           "bad starts_at",
			method:         http.MethodPost,
			body:           `{"name":"Concert","starts_at":"tomorrow","pool_size":3}`,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeInvalidStartsAt,
		},
		{
			name:           "list",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectedSubstr: `"name":"Concert"`,
		},
		{
			name:           "delete not allowed",
			method:         http.MethodDelete,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &stubAdmin{}
			req := httptest.NewRequest(tt.method, "/admin/events", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			HandleAdminEvents(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected body to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleAdminResources(t *testing.T) {
	t.Parallel()

	svc := &stubAdmin{}

	req := httptest.NewRequest(http.MethodGet, "/admin/events/e1/resources", nil)
	rec := httptest.NewRecorder()
	HandleAdminResources(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp poolResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PoolSize != 3 || resp.Free != 1 || resp.Held != 1 || resp.Allocated != 1 {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	if resp.Resources[1].HoldExpiry == nil {
		t.Fatalf("expected hold expiry on held seat")
	}
	if resp.Resources[0].HoldExpiry != nil {
		t.Fatalf("expected no hold expiry on free seat")
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/events/missing/resources", nil)
	rec = httptest.NewRecorder()
	HandleAdminResources(svc).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/events/e1/zones", nil)
	rec = httptest.NewRecorder()
	HandleAdminResources(svc).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

type stubAdmin struct{}

func (s *stubAdmin) CreateEvent(_ context.Context, in app.CreateEventInput) (domain.Event, error) {
	startsAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if in.StartsAt != nil {
		startsAt = *in.StartsAt
	}
	return domain.Event{ID: "e1", Name: in.Name, StartsAt: startsAt, PoolSize: in.PoolSize}, nil
}

func (s *stubAdmin) ListEvents(_ context.Context) ([]domain.Event, error) {
	return []domain.Event{{ID: "e1", Name: "Concert", PoolSize: 3}}, nil
}

func (s *stubAdmin) Resources(_ context.Context, eventID string) ([]domain.Resource, error) {
	if eventID != "e1" {
		return nil, domain.ErrEventNotFound
	}
	expiry := time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC)
	return []domain.Resource{
		{EventID: "e1", ID: "1", State: domain.ResourceStateFree},
		{EventID: "e1", ID: "2", State: domain.ResourceStateHeld, HolderToken: "h1", HoldExpiry: expiry},
		{EventID: "e1", ID: "3", State: domain.ResourceStateAllocated, HolderToken: "h0"},
	}, nil
}
