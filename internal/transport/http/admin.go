package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/app"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
)

// AdminEventService is the minimal interface needed for admin event endpoints.
type AdminEventService interface {
	CreateEvent(ctx context.Context, in app.CreateEventInput) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

// AdminResourceService is the minimal interface needed to inspect a pool.
type AdminResourceService interface {
	Resources(ctx context.Context, eventID string) ([]domain.Resource, error)
}

// HandleAdminEvents returns an HTTP handler for admin event creation/listing.
func HandleAdminEvents(svc AdminEventService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			events, err := svc.ListEvents(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			resp := make([]eventResponse, 0, len(events))
			for _, event := range events {
				resp = append(resp, newEventResponse(event))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req createEventRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if strings.TrimSpace(req.Name) == "" {
				writeError(w, http.StatusBadRequest, codeEventNameRequired, domain.ErrEventNameRequired.Error())
				return
			}
			if req.PoolSize <= 0 {
				writeError(w, http.StatusBadRequest, codeInvalidPoolSize, domain.ErrInvalidPoolSize.Error())
				return
			}

			var startsAt *time.Time
			if req.StartsAt != "" {
				parsed, err := time.Parse(time.RFC3339, req.StartsAt)
				if err != nil {
					writeError(w, http.StatusBadRequest, codeInvalidStartsAt, "invalid starts_at format")
					return
				}
				startsAt = &parsed
			}

			event, err := svc.CreateEvent(r.Context(), app.CreateEventInput{
				Name:     req.Name,
				StartsAt: startsAt,
				PoolSize: req.PoolSize,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, newEventResponse(event))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminResources serves GET /admin/events/{id}/resources: every seat
// with its state plus the counts per state.
func HandleAdminResources(svc AdminResourceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, ok := parseAdminEventResourcesPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		resources, err := svc.Resources(r.Context(), eventID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		avail := domain.CountStates(eventID, resources)
		resp := poolResponse{
			EventID:   eventID,
			PoolSize:  avail.PoolSize,
			Free:      avail.Free,
			Held:      avail.Held,
			Allocated: avail.Allocated,
			Resources: make([]resourceResponse, 0, len(resources)),
		}
		for _, res := range resources {
			item := resourceResponse{ID: res.ID, State: string(res.State)}
			if res.State == domain.ResourceStateHeld {
				expiry := res.HoldExpiry
				item.HoldExpiry = &expiry
			}
			resp.Resources = append(resp.Resources, item)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type createEventRequest struct {
	Name     string `json:"name"`
	StartsAt string `json:"starts_at,omitempty"`
	PoolSize int    `json:"pool_size"`
}

type eventResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"starts_at"`
	PoolSize int       `json:"pool_size"`
}

func newEventResponse(e domain.Event) eventResponse {
	return eventResponse{
		ID:       e.ID,
		Name:     e.Name,
		StartsAt: e.StartsAt,
		PoolSize: e.PoolSize,
	}
}

type poolResponse struct {
	EventID   string             `json:"event_id"`
	PoolSize  int                `json:"pool_size"`
	Free      int                `json:"free"`
	Held      int                `json:"held"`
	Allocated int                `json:"allocated"`
	Resources []resourceResponse `json:"resources"`
}

type resourceResponse struct {
	ID         string     `json:"id"`
	State      string     `json:"state"`
	HoldExpiry *time.Time `json:"hold_expiry,omitempty"`
}

func parseAdminEventResourcesPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		return "", false
	}
	if parts[0] != "admin" || parts[1] != "events" || parts[3] != "resources" {
		return "", false
	}
	if parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
