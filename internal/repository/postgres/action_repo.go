package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/actionsync/internal/errs"
	"github.com/and161185/actionsync/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ActionRepo implements ActionRepository using PostgreSQL.
//
// Deduplication is a single atomic upsert keyed on idempotency_key: the
// DO UPDATE arm is a no-op that only exists so RETURNING yields the
// surviving row. There is no read-before-write window; the unique index
// is the source of truth.
type ActionRepo struct{ db *DB }

// NewActionRepo constructs an action repository.
func NewActionRepo(db *DB) *ActionRepo { return &ActionRepo{db: db} }

const insertActionSQL = `
INSERT INTO offline_actions (id, user_id, idempotency_key, action, payload, status)
VALUES ($1,$2,$3,$4,$5,'pending')
ON CONFLICT (idempotency_key) DO UPDATE SET idempotency_key = EXCLUDED.idempotency_key
RETURNING id, status`

// Insert persists one action, reusing the existing row on a duplicate key.
func (r *ActionRepo) Insert(ctx context.Context, userID uuid.UUID, in model.IntakeAction) (model.ActionRef, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return model.ActionRef{}, err
	}
	var ref model.ActionRef
	row := r.db.Pool.QueryRow(ctx, insertActionSQL, id, userID, in.IdempotencyKey, in.Action, []byte(in.Payload))
	if err := row.Scan(&ref.ID, &ref.Status); err != nil {
		return model.ActionRef{}, err
	}
	return ref, nil
}

// InsertBatch persists actions inside one transaction and returns IDs in input order.
func (r *ActionRepo) InsertBatch(
	ctx context.Context, userID uuid.UUID, ins []model.IntakeAction,
) (ids []uuid.UUID, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	ids = make([]uuid.UUID, 0, len(ins))
	for i := range ins {
		var newID uuid.UUID
		newID, err = uuid.NewV4()
		if err != nil {
			return nil, err
		}
		var id uuid.UUID
		var status model.ActionStatus
		row := tx.QueryRow(ctx, insertActionSQL, newID, userID, ins[i].IdempotencyKey, ins[i].Action, []byte(ins[i].Payload))
		if err = row.Scan(&id, &status); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListActive returns the user's pending and failed actions, newest first.
// Terminal done rows and other users' rows are never returned.
func (r *ActionRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]model.OfflineAction, error) {
	const q = `
SELECT id, user_id, idempotency_key, action, payload, status, error_message, processed_at, created_at
FROM offline_actions
WHERE user_id=$1 AND status IN ('pending','failed')
ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OfflineAction
	for rows.Next() {
		var (
			a       model.OfflineAction
			payload []byte
		)
		if err = rows.Scan(&a.ID, &a.UserID, &a.IdempotencyKey, &a.Action, &payload,
			&a.Status, &a.ErrorMessage, &a.ProcessedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Payload = payload
		out = append(out, a)
	}
	return out, rows.Err()
}

// Retry resets a failed action back to pending. The status guard in the
// WHERE clause makes missing, foreign, and non-failed rows indistinguishable.
func (r *ActionRepo) Retry(ctx context.Context, userID, actionID uuid.UUID) (model.ActionRef, error) {
	const q = `
UPDATE offline_actions
SET status='pending', error_message=NULL, processed_at=NULL, updated_at=now()
WHERE id=$1 AND user_id=$2 AND status='failed'
RETURNING id, status`
	var ref model.ActionRef
	if err := r.db.Pool.QueryRow(ctx, q, actionID, userID).Scan(&ref.ID, &ref.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ActionRef{}, errs.ErrNotFound
		}
		return model.ActionRef{}, err
	}
	return ref, nil
}

// RequeueStale resets actions stuck in processing longer than olderThan.
func (r *ActionRepo) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	const q = `
UPDATE offline_actions
SET status='pending', updated_at=now()
WHERE status='processing' AND updated_at < now() - $1::interval`
	tag, err := r.db.Pool.Exec(ctx, q, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
