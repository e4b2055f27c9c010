// Package queue implements the client-side durable buffer for actions
// performed while offline.
package queue

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/and161185/actionsync/internal/model"
)

// Queue buffers offline actions in FIFO order behind a Store. All state is
// held by the instance; nothing lives at package scope, so multiple queues
// (main and quarantine) can coexist in one process.
type Queue struct {
	mu    sync.Mutex
	store Store

	now     func() time.Time
	randInt func() int64
}

// Option customizes a Queue (clock and randomness injection for tests).
type Option func(*Queue)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option { return func(q *Queue) { q.now = now } }

// WithRand overrides the random source used for key suffixes.
func WithRand(r func() int64) Option { return func(q *Queue) { q.randInt = r } }

// New constructs a queue over the given store.
func New(store Store, opts ...Option) *Queue {
	q := &Queue{store: store, now: time.Now, randInt: secureInt}
	for _, o := range opts {
		o(q)
	}
	return q
}

func secureInt() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Fall back to the clock; the key stays usable, only less random.
		return time.Now().UnixNano()
	}
	return int64(binary.BigEndian.Uint64(b[:]) >> 1)
}

// NewKey builds a time-sortable idempotency key: base36 millis, a dash,
// and a base36 random suffix. Collisions are resolved server-side.
func NewKey(now time.Time, rnd int64) string {
	return strconv.FormatInt(now.UnixMilli(), 36) + "-" + strconv.FormatInt(rnd, 36)
}

// Enqueue appends an action to the persisted queue and returns the record.
// The queue performs no uniqueness check on the generated key.
func (q *Queue) Enqueue(action string, payload map[string]any) (model.QueuedAction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	item := model.QueuedAction{
		IdempotencyKey: NewKey(now, q.randInt()),
		Action:         action,
		Payload:        payload,
		CreatedAt:      now.UnixMilli(),
	}
	items := q.load()
	items = append(items, item)
	if err := q.save(items); err != nil {
		return model.QueuedAction{}, err
	}
	return item, nil
}

// Push appends an existing record as-is, preserving its key and attempt
// count. Used to move items between queues (e.g. into quarantine).
func (q *Queue) Push(item model.QueuedAction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.save(append(q.load(), item))
}

// List returns the queue in insertion order. Read or decode failures yield
// an empty queue; the caller never sees storage errors here.
func (q *Queue) List() []model.QueuedAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// Remove drops the item with the given key and rewrites the full queue.
func (q *Queue) Remove(idempotencyKey string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.load()
	kept := items[:0]
	for _, it := range items {
		if it.IdempotencyKey != idempotencyKey {
			kept = append(kept, it)
		}
	}
	return q.save(kept)
}

// RecordFailure increments the attempt counter of the item with the given
// key and returns the new count. Unknown keys report zero attempts.
func (q *Queue) RecordFailure(idempotencyKey string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.load()
	attempts := 0
	for i := range items {
		if items[i].IdempotencyKey == idempotencyKey {
			items[i].Attempts++
			attempts = items[i].Attempts
			break
		}
	}
	if attempts == 0 {
		return 0, nil
	}
	return attempts, q.save(items)
}

// Take removes and returns the item with the given key.
func (q *Queue) Take(idempotencyKey string) (model.QueuedAction, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.load()
	kept := make([]model.QueuedAction, 0, len(items))
	var taken model.QueuedAction
	found := false
	for _, it := range items {
		if !found && it.IdempotencyKey == idempotencyKey {
			taken, found = it, true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		return model.QueuedAction{}, false, nil
	}
	return taken, true, q.save(kept)
}

// Clear resets the queue to empty.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.save(nil)
}

// load must be called with the mutex held. It fails soft: any read or
// decode problem is treated as an empty queue.
func (q *Queue) load() []model.QueuedAction {
	b, err := q.store.Load()
	if err != nil || len(b) == 0 {
		return nil
	}
	var items []model.QueuedAction
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	return items
}

// save must be called with the mutex held.
func (q *Queue) save(items []model.QueuedAction) error {
	if items == nil {
		items = []model.QueuedAction{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return q.store.Save(b)
}
