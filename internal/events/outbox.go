package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/sequence"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"
)

var (
	keyPrefix = []byte("outbox/")
	keyUpper  = []byte("outbox/~")
)

// Outbox is a durable FIFO of committed offers and release signals waiting
// to be relayed. Records are keyed by a monotonic sequence so iteration
// order is append order.
type Outbox struct {
	db  *pebble.DB
	seq *sequence.Sequencer
	log *zap.Logger
}

type OutboxOption func(*pebble.Options)

// WithFS replaces the on-disk filesystem, e.g. with vfs.NewMem() in tests.
func WithFS(fs vfs.FS) OutboxOption {
	return func(o *pebble.Options) {
		o.FS = fs
	}
}

func OpenOutbox(dir string, log *zap.Logger, opts ...OutboxOption) (*Outbox, error) {
	if log == nil {
		log = zap.NewNop()
	}
	po := &pebble.Options{}
	for _, opt := range opts {
		opt(po)
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}

	o := &Outbox{db: db, seq: sequence.New(0), log: log}
	last, err := o.lastSeq()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	o.seq.Reset(last)
	return o, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// OfferExtended records a committed offer.
func (o *Outbox) OfferExtended(_ context.Context, ev domain.OfferExtended) error {
	return o.append(KindOfferExtended, ev.EventID, ev.ExtendedAt, offerPayload{
		EntryID:     ev.EntryID,
		EventID:     ev.EventID,
		RequesterID: ev.RequesterID,
		HoldID:      ev.HoldID,
		ResourceIDs: ev.ResourceIDs,
		ExpiresAt:   ev.ExpiresAt,
	})
}

// Released records a release signal.
func (o *Outbox) Released(_ context.Context, ev domain.Released) error {
	return o.append(KindReleased, ev.EventID, ev.ReleasedAt, releasedPayload{
		EventID:     ev.EventID,
		ResourceIDs: ev.ResourceIDs,
		Count:       ev.Count,
		Synthetic:   ev.Synthetic,
		ReleasedAt:  ev.ReleasedAt,
	})
}

func (o *Outbox) append(kind Kind, key string, at time.Time, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	env := Envelope{
		Seq:        o.seq.Next(),
		Kind:       kind,
		Key:        key,
		OccurredAt: at,
		Payload:    body,
	}
	return o.put(env)
}

func (o *Outbox) put(env Envelope) error {
	val, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := o.db.Set(keyFor(env.Seq), val, pebble.Sync); err != nil {
		return fmt.Errorf("write outbox record %d: %w", env.Seq, err)
	}
	return nil
}

// ScanPending calls fn for up to limit records in append order. A non-nil
// error from fn stops the scan and is returned.
func (o *Outbox) ScanPending(limit int, fn func(Envelope) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: keyUpper,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if limit > 0 && n >= limit {
			break
		}
		var env Envelope
		if err := json.Unmarshal(iter.Value(), &env); err != nil {
			o.log.Error("dropping undecodable outbox record", zap.ByteString("key", iter.Key()), zap.Error(err))
			if err := o.db.Delete(bytes.Clone(iter.Key()), pebble.Sync); err != nil {
				return err
			}
			continue
		}
		n++
		if err := fn(env); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Ack removes a delivered record.
func (o *Outbox) Ack(seq uint64) error {
	return o.db.Delete(keyFor(seq), pebble.Sync)
}

// MarkFailed bumps the attempt counter of a record that could not be sent.
func (o *Outbox) MarkFailed(env Envelope) error {
	env.Attempts++
	return o.put(env)
}

// Pending counts undelivered records.
func (o *Outbox) Pending() (int, error) {
	n := 0
	err := o.ScanPending(0, func(Envelope) error {
		n++
		return nil
	})
	return n, err
}

func (o *Outbox) lastSeq() (uint64, error) {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: keyUpper,
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("outbox/%020d", seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, keyPrefix)), "%d", &seq)
	return seq, err
}
