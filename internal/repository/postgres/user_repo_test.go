package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/actionsync/internal/errs"
	"github.com/and161185/actionsync/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestUserRepo_Create_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	u := &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		Username: "alice",
		PwdHash:  []byte("hash"),
		SaltAuth: []byte("salt"),
	}
	mock.ExpectExec(`INSERT INTO users \(id, username, pwd_hash, salt_auth\)`).
		WithArgs(u.ID, u.Username, u.PwdHash, u.SaltAuth).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Create(context.Background(), u))
}

func TestUserRepo_Create_DuplicateUsername(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "alice", PwdHash: []byte("h"), SaltAuth: []byte("s")}
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Username, u.PwdHash, u.SaltAuth).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	require.ErrorIs(t, r.Create(context.Background(), u), errs.ErrAlreadyExists)
}

func TestUserRepo_GetByUsername_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`FROM users WHERE username=\$1`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "pwd_hash", "salt_auth", "created_at"}).
			AddRow(id, "alice", []byte("h"), []byte("s"), time.Now()))

	u, err := r.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "alice", u.Username)
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.GetByID(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
