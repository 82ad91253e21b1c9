package http

import (
	"context"
	"net/http"
)

// AllocationCanceller is the minimal interface needed to cancel an allocation.
type AllocationCanceller interface {
	Cancel(ctx context.Context, allocationID string) ([]string, error)
}

// HandleAllocationAction serves POST /allocations/{id}/cancel.
func HandleAllocationAction(svc AllocationCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allocationID, action, ok := parseActionPath(r.URL.Path, "allocations")
		if !ok || action != "cancel" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		freed, err := svc.Cancel(r.Context(), allocationID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cancelResponse{
			ID:                  allocationID,
			Status:              "cancelled",
			ReleasedResourceIDs: freed,
		})
	}
}

type cancelResponse struct {
	ID                  string   `json:"id"`
	Status              string   `json:"status"`
	ReleasedResourceIDs []string `json:"released_resource_ids"`
}
