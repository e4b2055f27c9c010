// Package sync drains the client offline queue against the server whenever
// connectivity is reported.
package sync

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/and161185/actionsync/internal/client/queue"
	"github.com/and161185/actionsync/internal/model"
)

// Submitter delivers one queued action to the server.
type Submitter interface {
	Submit(ctx context.Context, item model.QueuedAction) error
}

// DefaultMaxAttempts is how many failed deliveries an item survives before
// it is quarantined instead of blocking the queue.
const DefaultMaxAttempts = 5

// Syncer flushes the offline queue in enqueue order, stopping a pass at the
// first failing item. Items that keep failing are moved to the quarantine
// queue so one poison item cannot stall delivery forever.
type Syncer struct {
	q           *queue.Queue
	quarantine  *queue.Queue
	sub         Submitter
	log         *zap.Logger
	maxAttempts int

	inFlight atomic.Bool
	notify   chan struct{}
}

// New constructs a syncer. quarantine may share a store layout with the
// main queue but must be a distinct instance. maxAttempts <= 0 selects
// DefaultMaxAttempts.
func New(q, quarantine *queue.Queue, sub Submitter, log *zap.Logger, maxAttempts int) *Syncer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Syncer{
		q:           q,
		quarantine:  quarantine,
		sub:         sub,
		log:         log,
		maxAttempts: maxAttempts,
		notify:      make(chan struct{}, 1),
	}
}

// Notify signals that connectivity is (again) available. Signals arriving
// while a pass is running coalesce into a single follow-up pass.
func (s *Syncer) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Run performs an initial flush and then serves Notify signals until the
// context is cancelled. Flush errors are logged, not returned: the queue
// keeps the undelivered items for the next signal.
func (s *Syncer) Run(ctx context.Context) {
	if err := s.Flush(ctx); err != nil {
		s.log.Info("initial flush incomplete", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
			if err := s.Flush(ctx); err != nil {
				s.log.Info("flush incomplete", zap.Error(err))
			}
		}
	}
}

// Flush attempts to deliver the queue snapshot in order. On per-item
// success the item is removed immediately, so a crash mid-pass never
// re-loses confirmed progress. The first failure ends the pass, unless the
// failing item has exhausted its attempts, in which case it is quarantined
// and the pass continues.
//
// Only one pass runs at a time; a Flush while another is in flight is a
// no-op.
func (s *Syncer) Flush(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer s.inFlight.Store(false)

	for _, item := range s.q.List() {
		err := s.sub.Submit(ctx, item)
		if err == nil {
			if rerr := s.q.Remove(item.IdempotencyKey); rerr != nil {
				return rerr
			}
			continue
		}

		attempts, aerr := s.q.RecordFailure(item.IdempotencyKey)
		if aerr != nil {
			return aerr
		}
		if attempts >= s.maxAttempts {
			if qerr := s.moveToQuarantine(item.IdempotencyKey); qerr != nil {
				return qerr
			}
			s.log.Warn("action quarantined",
				zap.String("key", item.IdempotencyKey),
				zap.String("action", item.Action),
				zap.Int("attempts", attempts),
			)
			continue
		}
		// Failures are assumed systemic (connectivity); the rest of the
		// queue waits for the next pass.
		return err
	}
	return nil
}

func (s *Syncer) moveToQuarantine(key string) error {
	item, ok, err := s.q.Take(key)
	if err != nil || !ok {
		return err
	}
	return s.quarantine.Push(item)
}

// Requeue moves a quarantined item back onto the main queue with a reset
// attempt counter.
func (s *Syncer) Requeue(key string) (bool, error) {
	item, ok, err := s.quarantine.Take(key)
	if err != nil || !ok {
		return false, err
	}
	item.Attempts = 0
	return true, s.q.Push(item)
}
