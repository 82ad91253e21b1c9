// Package notify delivers committed offers and release signals to the
// outside world.
package notify

import (
	"context"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"go.uber.org/zap"
)

// Log writes offers and releases to the service log. It is the fallback
// sink when no broker is configured.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log.Named("notify")}
}

func (l *Log) OfferExtended(_ context.Context, ev domain.OfferExtended) error {
	l.log.Info("offer available",
		zap.String("requester_id", ev.RequesterID),
		zap.String("entry_id", ev.EntryID),
		zap.Strings("resource_ids", ev.ResourceIDs),
		zap.Time("expires_at", ev.ExpiresAt),
	)
	return nil
}

func (l *Log) Released(_ context.Context, ev domain.Released) error {
	l.log.Debug("seats released",
		zap.String("event_id", ev.EventID),
		zap.Int("count", ev.Count),
		zap.Bool("synthetic", ev.Synthetic),
	)
	return nil
}
