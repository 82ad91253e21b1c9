package app

import (
	"context"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
)

// ReleasePublisher accepts release signals for cascading.
type ReleasePublisher interface {
	Publish(ctx context.Context, ev domain.Released)
}

// ReleaseReconciler requeues release signals that were stored but never
// fully cascaded.
type ReleaseReconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// OfferNotifier delivers committed offers to the requester-facing side.
type OfferNotifier interface {
	OfferExtended(ctx context.Context, ev domain.OfferExtended) error
}

// ReleaseObserver receives every release signal, e.g. for analytics.
type ReleaseObserver interface {
	Released(ctx context.Context, ev domain.Released) error
}

// HoldReclaimer expires a single hold if its TTL has elapsed.
type HoldReclaimer interface {
	ExpireHold(ctx context.Context, holdID string) (bool, error)
}
