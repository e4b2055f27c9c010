package sync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/and161185/actionsync/internal/client/queue"
	"github.com/and161185/actionsync/internal/model"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	seen     []string // actions in submission order
	failFor  map[string]error
	block    chan struct{} // if set, Submit waits until closed
	inSubmit chan struct{} // signalled when Submit is entered
}

func (f *fakeSubmitter) Submit(_ context.Context, item model.QueuedAction) error {
	if f.inSubmit != nil {
		f.inSubmit <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.seen = append(f.seen, item.Action)
	f.mu.Unlock()
	if err, ok := f.failFor[item.Action]; ok {
		return err
	}
	return nil
}

func (f *fakeSubmitter) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func newSyncer(sub Submitter, maxAttempts int) (*Syncer, *queue.Queue, *queue.Queue) {
	q := queue.New(queue.NewMemStore())
	dead := queue.New(queue.NewMemStore())
	return New(q, dead, sub, zap.NewNop(), maxAttempts), q, dead
}

func enqueue(t *testing.T, q *queue.Queue, actions ...string) {
	t.Helper()
	for _, a := range actions {
		if _, err := q.Enqueue(a, nil); err != nil {
			t.Fatal(err)
		}
	}
}

func queuedActions(q *queue.Queue) []string {
	var out []string
	for _, it := range q.List() {
		out = append(out, it.Action)
	}
	return out
}

func TestFlush_AllSucceed_QueueEmpty(t *testing.T) {
	t.Parallel()
	sub := &fakeSubmitter{}
	s, q, _ := newSyncer(sub, 0)
	enqueue(t, q, "A", "B", "C")

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := sub.actions(); len(got) != 3 || got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Fatalf("submission order: %v", got)
	}
	if left := q.List(); len(left) != 0 {
		t.Fatalf("queue must be drained, left=%v", left)
	}
}

func TestFlush_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("network lost")
	sub := &fakeSubmitter{failFor: map[string]error{"B": boom}}
	s, q, _ := newSyncer(sub, 0)
	enqueue(t, q, "A", "B", "C")

	err := s.Flush(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("want submit error, got %v", err)
	}
	// A removed, B and C retained, C never attempted.
	if got := queuedActions(q); len(got) != 2 || got[0] != "B" || got[1] != "C" {
		t.Fatalf("queue after partial flush: %v", got)
	}
	if got := sub.actions(); len(got) != 2 {
		t.Fatalf("C must not be attempted: %v", got)
	}
}

func TestFlush_ConfirmedProgressSurvivesRetries(t *testing.T) {
	t.Parallel()
	boom := errors.New("rejected")
	sub := &fakeSubmitter{failFor: map[string]error{"B": boom}}
	s, q, _ := newSyncer(sub, 0)
	enqueue(t, q, "A", "B")

	_ = s.Flush(context.Background())
	_ = s.Flush(context.Background())

	// A is submitted exactly once across passes.
	count := 0
	for _, a := range sub.actions() {
		if a == "A" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("A submitted %d times", count)
	}
}

func TestFlush_QuarantineAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	boom := errors.New("validation rejected")
	sub := &fakeSubmitter{failFor: map[string]error{"B": boom}}
	s, q, dead := newSyncer(sub, 2)
	enqueue(t, q, "B", "C")

	// First pass: B fails (attempt 1), pass stops, C untouched.
	if err := s.Flush(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("pass 1: %v", err)
	}
	if got := queuedActions(q); len(got) != 2 {
		t.Fatalf("pass 1 queue: %v", got)
	}

	// Second pass: B hits the attempt limit, is quarantined, C goes through.
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("pass 2: %v", err)
	}
	if got := queuedActions(q); len(got) != 0 {
		t.Fatalf("queue must drain past the poison item: %v", got)
	}
	deadItems := dead.List()
	if len(deadItems) != 1 || deadItems[0].Action != "B" || deadItems[0].Attempts != 2 {
		t.Fatalf("quarantine: %+v", deadItems)
	}
}

func TestRequeue_FromQuarantine(t *testing.T) {
	t.Parallel()
	sub := &fakeSubmitter{failFor: map[string]error{"B": errors.New("x")}}
	s, q, dead := newSyncer(sub, 1)
	enqueue(t, q, "B")

	_ = s.Flush(context.Background())
	deadItems := dead.List()
	if len(deadItems) != 1 {
		t.Fatalf("expected quarantined item, got %v", deadItems)
	}

	ok, err := s.Requeue(deadItems[0].IdempotencyKey)
	if err != nil || !ok {
		t.Fatalf("requeue: ok=%v err=%v", ok, err)
	}
	items := q.List()
	if len(items) != 1 || items[0].Attempts != 0 {
		t.Fatalf("requeued item: %+v", items)
	}
	if len(dead.List()) != 0 {
		t.Fatalf("quarantine must be empty")
	}

	if ok, _ := s.Requeue("missing"); ok {
		t.Fatalf("missing key must not requeue")
	}
}

func TestFlush_SingleFlight(t *testing.T) {
	t.Parallel()
	sub := &fakeSubmitter{
		block:    make(chan struct{}),
		inSubmit: make(chan struct{}, 1),
	}
	s, q, _ := newSyncer(sub, 0)
	enqueue(t, q, "A")

	done := make(chan error, 1)
	go func() { done <- s.Flush(context.Background()) }()
	<-sub.inSubmit // first pass is now inside Submit

	// A second pass while one is in flight is suppressed, not queued.
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("overlapping flush: %v", err)
	}
	if got := sub.actions(); len(got) != 0 {
		t.Fatalf("second pass must not submit, got %v", got)
	}

	close(sub.block)
	if err := <-done; err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if got := sub.actions(); len(got) != 1 {
		t.Fatalf("exactly one submission expected: %v", got)
	}
}

func TestNotify_Coalesces(t *testing.T) {
	t.Parallel()
	s, _, _ := newSyncer(&fakeSubmitter{}, 0)
	// Burst of notifies must not block.
	for i := 0; i < 10; i++ {
		s.Notify()
	}
}
