package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/app"
)

// HoldConfirmer is the minimal interface needed to confirm a hold.
type HoldConfirmer interface {
	Confirm(ctx context.Context, holdID string) (app.ConfirmResult, error)
}

// writeConfirmResult answers 201 for a new allocation and 200 when the same
// allocation is returned again.
func writeConfirmResult(w http.ResponseWriter, res app.ConfirmResult) {
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	a := res.Allocation
	writeJSON(w, status, allocationResponse{
		ID:          a.ID,
		HoldID:      a.HoldID,
		EventID:     a.EventID,
		ResourceIDs: a.ResourceIDs,
		RequesterID: a.RequesterID,
		Status:      string(a.Status),
		ConfirmedAt: a.ConfirmedAt,
	})
}

type allocationResponse struct {
	ID          string    `json:"id"`
	HoldID      string    `json:"hold_id"`
	EventID     string    `json:"event_id"`
	ResourceIDs []string  `json:"resource_ids"`
	RequesterID string    `json:"requester_id"`
	Status      string    `json:"status"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
