package repository

import (
	"context"
	"time"

	"github.com/and161185/actionsync/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ActionRepository provides idempotent persistence for offline actions.
type ActionRepository interface {
	// Insert persists one action atomically. If a row with the same
	// idempotency key already exists, the existing row is returned and
	// no new row is created.
	Insert(ctx context.Context, userID uuid.UUID, in model.IntakeAction) (model.ActionRef, error)

	// InsertBatch persists a batch inside one transaction, applying the
	// same per-row idempotency as Insert. Returned IDs follow input order.
	InsertBatch(ctx context.Context, userID uuid.UUID, ins []model.IntakeAction) ([]uuid.UUID, error)

	// ListActive returns the user's pending and failed actions, newest first.
	ListActive(ctx context.Context, userID uuid.UUID) ([]model.OfflineAction, error)

	// Retry moves a failed action owned by the user back to pending,
	// clearing error and completion timestamp. Missing, foreign, or
	// non-failed rows yield errs.ErrNotFound.
	Retry(ctx context.Context, userID, actionID uuid.UUID) (model.ActionRef, error)

	// RequeueStale resets actions stuck in processing for longer than
	// olderThan back to pending and reports how many were reset.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}
