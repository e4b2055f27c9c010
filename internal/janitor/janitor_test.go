package janitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/actionsync/internal/model"
	"github.com/and161185/actionsync/internal/service"
)

type fakeActions struct {
	staleIn    time.Duration
	staleOut   int64
	staleErr   error
	staleCalls int
}

var _ service.ActionService = (*fakeActions)(nil)

func (f *fakeActions) Submit(context.Context, uuid.UUID, model.IntakeAction) (model.ActionRef, error) {
	return model.ActionRef{}, nil
}
func (f *fakeActions) SubmitBatch(context.Context, uuid.UUID, []model.BatchAction) ([]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeActions) ListActive(context.Context, uuid.UUID) ([]model.OfflineAction, error) {
	return nil, nil
}
func (f *fakeActions) Retry(context.Context, uuid.UUID, uuid.UUID) (model.ActionRef, error) {
	return model.ActionRef{}, nil
}
func (f *fakeActions) RequeueStale(_ context.Context, olderThan time.Duration) (int64, error) {
	f.staleCalls++
	f.staleIn = olderThan
	return f.staleOut, f.staleErr
}

func TestSweep_DelegatesWithConfiguredWindow(t *testing.T) {
	t.Parallel()
	svc := &fakeActions{staleOut: 4}
	j := New(svc, zap.NewNop(), "@every 1m", 10*time.Minute)

	j.Sweep(context.Background())
	if svc.staleCalls != 1 || svc.staleIn != 10*time.Minute {
		t.Fatalf("calls=%d olderThan=%v", svc.staleCalls, svc.staleIn)
	}
}

func TestSweep_ErrorDoesNotPanic(t *testing.T) {
	t.Parallel()
	svc := &fakeActions{staleErr: errors.New("db down")}
	j := New(svc, zap.NewNop(), "@every 1m", time.Minute)

	j.Sweep(context.Background())
	if svc.staleCalls != 1 {
		t.Fatalf("sweep must still run, calls=%d", svc.staleCalls)
	}
}

func TestStart_BadScheduleRejected(t *testing.T) {
	t.Parallel()
	j := New(&fakeActions{}, zap.NewNop(), "not a schedule", time.Minute)
	if err := j.Start(context.Background()); err == nil {
		t.Fatalf("want schedule parse error")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	j := New(&fakeActions{}, zap.NewNop(), "@every 1h", time.Minute)
	if err := j.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	j.Stop()
}
