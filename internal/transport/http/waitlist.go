package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/app"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
)

// WaitlistService is the minimal interface needed for waitlist endpoints.
type WaitlistService interface {
	Enqueue(ctx context.Context, in app.EnqueueInput) (domain.WaitlistEntry, error)
	Fulfill(ctx context.Context, entryID string) (app.ConfirmResult, error)
	Decline(ctx context.Context, entryID string) error
	CancelEntry(ctx context.Context, entryID string) error
}

// HandleEnqueue returns an HTTP handler for joining a waitlist.
func HandleEnqueue(svc WaitlistService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req enqueueRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.EventID == "" || req.RequesterID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "event_id and requester_id are required")
			return
		}

		entry, err := svc.Enqueue(r.Context(), app.EnqueueInput{
			EventID:       req.EventID,
			RequesterID:   req.RequesterID,
			ResourceCount: req.ResourceCount,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entryResponse{
			ID:            entry.ID,
			EventID:       entry.EventID,
			RequesterID:   entry.RequesterID,
			ResourceCount: entry.ResourceCount,
			Status:        string(entry.Status),
			EnqueuedAt:    entry.EnqueuedAt,
		})
	}
}

// HandleWaitlistAction serves POST /waitlist/{id}/{fulfill,decline,cancel}.
func HandleWaitlistAction(svc WaitlistService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, action, ok := parseActionPath(r.URL.Path, "waitlist")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		switch action {
		case "fulfill":
			res, err := svc.Fulfill(r.Context(), entryID)
			if err != nil {
				writeOfferError(w, err)
				return
			}
			writeConfirmResult(w, res)
		case "decline":
			if err := svc.Decline(r.Context(), entryID); err != nil {
				writeOfferError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, statusResponse{ID: entryID, Status: string(domain.WaitlistStatusExpired)})
		case "cancel":
			if err := svc.CancelEntry(r.Context(), entryID); err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, statusResponse{ID: entryID, Status: string(domain.WaitlistStatusCancelled)})
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

type enqueueRequest struct {
	EventID       string `json:"event_id"`
	RequesterID   string `json:"requester_id"`
	ResourceCount int    `json:"resource_count"`
}

type entryResponse struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	RequesterID   string    `json:"requester_id"`
	ResourceCount int       `json:"resource_count"`
	Status        string    `json:"status"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}
