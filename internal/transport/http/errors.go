package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeInvalidStartsAt      = "invalid_starts_at"
	codeInvalidID            = "invalid_id"
	codeEventNameRequired    = "event_name_required"
	codeInvalidPoolSize      = "invalid_pool_size"
	codeInvalidQuantity      = "invalid_quantity"
	codeInvalidTTL           = "invalid_ttl"
	codeEmptyResourceSet     = "empty_resource_set"
	codeDuplicateResource    = "duplicate_resource"
	codeEventNotFound        = "event_not_found"
	codeEventAlreadyExists   = "event_already_exists"
	codeResourceNotFound     = "resource_not_found"
	codeHoldNotFound         = "hold_not_found"
	codeAllocationNotFound   = "allocation_not_found"
	codeEntryNotFound        = "waitlist_entry_not_found"
	codeBusy                 = "busy"
	codeHoldExpired          = "hold_expired"
	codeOfferExpired         = "offer_expired"
	codeOfferHold            = "offer_hold"
	codeEntryNotWaiting      = "entry_not_waiting"
	codeEntryNotOffered      = "entry_not_offered"
	codeRateLimited          = "rate_limited"
	codeUnavailable          = "unavailable"
	codeForbidden            = "forbidden"
	codeInvariantViolation   = "invariant_violation"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrBusy, http.StatusConflict, codeBusy},
	{domain.ErrConflict, http.StatusConflict, codeBusy},
	{domain.ErrExpired, http.StatusGone, codeHoldExpired},
	{domain.ErrOfferHold, http.StatusConflict, codeOfferHold},
	{domain.ErrEntryNotWaiting, http.StatusConflict, codeEntryNotWaiting},
	{domain.ErrEntryNotOffered, http.StatusConflict, codeEntryNotOffered},
	{domain.ErrEventAlreadyExists, http.StatusConflict, codeEventAlreadyExists},
	{domain.ErrHoldNotFound, http.StatusNotFound, codeHoldNotFound},
	{domain.ErrAllocationNotFound, http.StatusNotFound, codeAllocationNotFound},
	{domain.ErrEntryNotFound, http.StatusNotFound, codeEntryNotFound},
	{domain.ErrEventNotFound, http.StatusNotFound, codeEventNotFound},
	{domain.ErrResourceNotFound, http.StatusNotFound, codeResourceNotFound},
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrEmptyResourceSet, http.StatusBadRequest, codeEmptyResourceSet},
	{domain.ErrDuplicateResource, http.StatusBadRequest, codeDuplicateResource},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrInvalidTTL, http.StatusBadRequest, codeInvalidTTL},
	{domain.ErrRequesterRequired, http.StatusBadRequest, codeMissingRequiredField},
	{domain.ErrEventNameRequired, http.StatusBadRequest, codeEventNameRequired},
	{domain.ErrInvalidPoolSize, http.StatusBadRequest, codeInvalidPoolSize},
}

// writeDomainError maps a service error to its status and code. Errors the
// service did not anticipate are reported without detail.
func writeDomainError(w http.ResponseWriter, err error) {
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			writeError(w, de.status, de.code, err.Error())
			return
		}
	}
	if errors.Is(err, domain.ErrInvariantViolation) {
		writeError(w, http.StatusInternalServerError, codeInvariantViolation, "invariant violation")
		return
	}
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// writeOfferError is writeDomainError for waitlist offers, where a lapsed
// hold is reported as an expired offer.
func writeOfferError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrExpired) {
		writeError(w, http.StatusGone, codeOfferExpired, "offer expired")
		return
	}
	writeDomainError(w, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}
