package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/actionsync/internal/model"
	"github.com/and161185/actionsync/internal/repository"
)

// ActionService defines the idempotent intake over offline actions.
type ActionService interface {
	// Submit accepts a single action, deduplicated by the client-supplied
	// idempotency key.
	Submit(ctx context.Context, userID uuid.UUID, in model.IntakeAction) (model.ActionRef, error)
	// SubmitBatch accepts an ordered batch, deduplicated by a key the
	// server derives from (userID, clientTS, actionType). Returned IDs
	// follow input order.
	SubmitBatch(ctx context.Context, userID uuid.UUID, batch []model.BatchAction) ([]uuid.UUID, error)
	// ListActive returns the caller's pending and failed actions, newest first.
	ListActive(ctx context.Context, userID uuid.UUID) ([]model.OfflineAction, error)
	// Retry moves a failed action back to pending.
	Retry(ctx context.Context, userID, actionID uuid.UUID) (model.ActionRef, error)
	// RequeueStale resets actions stuck in processing (janitor entry point).
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type ActionServiceImpl struct {
	repo     repository.ActionRepository
	maxBatch int
}

// NewActionService constructs ActionService with batch limits.
func NewActionService(repo repository.ActionRepository, maxBatch int) *ActionServiceImpl {
	if maxBatch <= 0 {
		maxBatch = 100
	}
	return &ActionServiceImpl{repo: repo, maxBatch: maxBatch}
}

// DedupKey derives the server-side deduplication key for a batch item.
// It is computed from semantic fields rather than trusting the client's
// own idempotency key, so a rebuilt client queue dedups the same way.
func DedupKey(userID uuid.UUID, clientTS int64, actionType string) string {
	return fmt.Sprintf("%s:%d:%s", userID, clientTS, actionType)
}

// Submit validates input and delegates the atomic upsert to the repository.
func (s *ActionServiceImpl) Submit(ctx context.Context, userID uuid.UUID, in model.IntakeAction) (model.ActionRef, error) {
	if userID == uuid.Nil {
		return model.ActionRef{}, errors.New("validation: empty userID")
	}
	if in.IdempotencyKey == "" {
		return model.ActionRef{}, errors.New("validation: empty idempotency key")
	}
	if in.Action == "" {
		return model.ActionRef{}, errors.New("validation: empty action")
	}
	return s.repo.Insert(ctx, userID, in)
}

// SubmitBatch validates input, derives dedup keys, and delegates to the
// repository. Repeated submission of the same batch never creates
// duplicate rows; callers get the same IDs back each time.
func (s *ActionServiceImpl) SubmitBatch(ctx context.Context, userID uuid.UUID, batch []model.BatchAction) ([]uuid.UUID, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	if len(batch) == 0 {
		return []uuid.UUID{}, nil
	}
	if len(batch) > s.maxBatch {
		return nil, fmt.Errorf("validation: batch too large (%d > %d)", len(batch), s.maxBatch)
	}
	ins := make([]model.IntakeAction, 0, len(batch))
	for i := range batch {
		if batch[i].ActionType == "" {
			return nil, fmt.Errorf("validation: action[%d] empty type", i)
		}
		if batch[i].ClientTS <= 0 {
			return nil, fmt.Errorf("validation: action[%d] bad client_ts", i)
		}
		ins = append(ins, model.IntakeAction{
			IdempotencyKey: DedupKey(userID, batch[i].ClientTS, batch[i].ActionType),
			Action:         batch[i].ActionType,
			Payload:        batch[i].Payload,
		})
	}
	return s.repo.InsertBatch(ctx, userID, ins)
}

// ListActive returns the caller's pending/failed actions.
func (s *ActionServiceImpl) ListActive(ctx context.Context, userID uuid.UUID) ([]model.OfflineAction, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	return s.repo.ListActive(ctx, userID)
}

// Retry resets a failed action owned by the caller back to pending.
func (s *ActionServiceImpl) Retry(ctx context.Context, userID, actionID uuid.UUID) (model.ActionRef, error) {
	if userID == uuid.Nil || actionID == uuid.Nil {
		return model.ActionRef{}, errors.New("validation: empty userID/actionID")
	}
	return s.repo.Retry(ctx, userID, actionID)
}

// RequeueStale delegates the janitor sweep to the repository.
func (s *ActionServiceImpl) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("validation: non-positive olderThan")
	}
	return s.repo.RequeueStale(ctx, olderThan)
}
