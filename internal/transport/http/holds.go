package http

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/app"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
)

// maxTTLSeconds is the largest ttl_seconds that converts to a time.Duration
// without overflowing.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// HoldAcquirer is the minimal interface needed to create a hold.
type HoldAcquirer interface {
	Acquire(ctx context.Context, in app.AcquireInput) (domain.Hold, error)
}

// HoldReleaser is the minimal interface needed to release a hold.
type HoldReleaser interface {
	Release(ctx context.Context, holdID string) error
}

// HandleCreateHold returns an HTTP handler for creating holds.
func HandleCreateHold(svc HoldAcquirer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createHoldRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.EventID == "" || req.RequesterID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "event_id and requester_id are required")
			return
		}
		if req.TTLSeconds < 0 || int64(req.TTLSeconds) > maxTTLSeconds {
			writeError(w, http.StatusBadRequest, codeInvalidTTL, domain.ErrInvalidTTL.Error())
			return
		}

		hold, err := svc.Acquire(r.Context(), app.AcquireInput{
			EventID:     req.EventID,
			ResourceIDs: req.ResourceIDs,
			RequesterID: req.RequesterID,
			TTL:         time.Duration(req.TTLSeconds) * time.Second,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newHoldResponse(hold))
	}
}

// HandleHoldAction serves POST /holds/{id}/confirm and /holds/{id}/release.
func HandleHoldAction(confirmer HoldConfirmer, releaser HoldReleaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		holdID, action, ok := parseActionPath(r.URL.Path, "holds")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		switch action {
		case "confirm":
			res, err := confirmer.Confirm(r.Context(), holdID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeConfirmResult(w, res)
		case "release":
			if err := releaser.Release(r.Context(), holdID); err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, statusResponse{ID: holdID, Status: string(domain.HoldStatusReleased)})
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

type createHoldRequest struct {
	EventID     string   `json:"event_id"`
	ResourceIDs []string `json:"resource_ids"`
	RequesterID string   `json:"requester_id"`
	TTLSeconds  int      `json:"ttl_seconds,omitempty"`
}

type holdResponse struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	ResourceIDs []string  `json:"resource_ids"`
	RequesterID string    `json:"requester_id"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func newHoldResponse(h domain.Hold) holdResponse {
	return holdResponse{
		ID:          h.ID,
		EventID:     h.EventID,
		ResourceIDs: h.ResourceIDs,
		RequesterID: h.RequesterID,
		Status:      string(h.Status),
		ExpiresAt:   h.ExpiresAt,
	}
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
