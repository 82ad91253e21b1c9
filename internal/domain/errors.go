package domain

import "errors"

var (
	ErrBusy               = errors.New("resources busy")
	ErrExpired            = errors.New("hold expired")
	ErrConflict           = errors.New("version conflict")
	ErrInvariantViolation = errors.New("invariant violation")
)

var (
	ErrHoldNotFound       = errors.New("hold not found")
	ErrAllocationNotFound = errors.New("allocation not found")
	ErrEntryNotFound      = errors.New("waitlist entry not found")
	ErrReleaseNotFound    = errors.New("release signal not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrResourceNotFound   = errors.New("resource not found")
)

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrEmptyResourceSet   = errors.New("resource set is empty")
	ErrDuplicateResource  = errors.New("duplicate resource in request")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidTTL         = errors.New("invalid ttl")
	ErrRequesterRequired  = errors.New("requester id required")
	ErrOfferHold          = errors.New("hold backs a waitlist offer")
	ErrEntryNotWaiting    = errors.New("waitlist entry is not waiting")
	ErrEntryNotOffered    = errors.New("waitlist entry has no open offer")
	ErrEventNameRequired  = errors.New("event name required")
	ErrInvalidPoolSize    = errors.New("invalid pool size")
	ErrEventAlreadyExists = errors.New("event already exists")
)
