package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sender delivers one encoded envelope downstream.
type Sender interface {
	Send(ctx context.Context, key, value []byte) error
}

// Relay drains the outbox to a Sender in append order. A record is removed
// only after the sender accepted it, so delivery is at-least-once.
type Relay struct {
	outbox   *Outbox
	sender   Sender
	log      *zap.Logger
	interval time.Duration
	batch    int
}

const (
	defaultRelayInterval = time.Second
	defaultRelayBatch    = 100
)

type RelayOption func(*Relay)

func WithRelayInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithRelayBatch(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func NewRelay(outbox *Outbox, sender Sender, log *zap.Logger, opts ...RelayOption) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Relay{
		outbox:   outbox,
		sender:   sender,
		log:      log,
		interval: defaultRelayInterval,
		batch:    defaultRelayBatch,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("outbox relay started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.log.Warn("outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// RelayOnce sends one batch and returns how many records were delivered.
// The first failed send ends the pass so later records never overtake it.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	sent := 0
	err := r.outbox.ScanPending(r.batch, func(env Envelope) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("encode envelope %d: %w", env.Seq, err)
		}
		if err := r.sender.Send(ctx, []byte(env.Key), value); err != nil {
			if markErr := r.outbox.MarkFailed(env); markErr != nil {
				r.log.Error("failed to record send attempt", zap.Uint64("seq", env.Seq), zap.Error(markErr))
			}
			return fmt.Errorf("send %s %d: %w", env.Kind, env.Seq, err)
		}
		if err := r.outbox.Ack(env.Seq); err != nil {
			return fmt.Errorf("ack %d: %w", env.Seq, err)
		}
		sent++
		return nil
	})
	if sent > 0 {
		r.log.Debug("outbox records relayed", zap.Int("count", sent))
	}
	return sent, err
}
