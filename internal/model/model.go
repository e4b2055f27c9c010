// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ActionStatus is the server-side lifecycle state of an offline action.
type ActionStatus string

const (
	StatusPending    ActionStatus = "pending"
	StatusProcessing ActionStatus = "processing"
	StatusFailed     ActionStatus = "failed"
	StatusDone       ActionStatus = "done"
)

// Tokens collects issued access/refresh tokens (refresh optional).
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	CreatedAt time.Time
}

// QueuedAction is a client-local record of a user action performed while
// offline, held until the server acknowledges it.
type QueuedAction struct {
	IdempotencyKey string         `json:"idempotency_key"` // client-generated, time-sortable
	Action         string         `json:"action"`          // operation type tag
	Payload        map[string]any `json:"payload,omitempty"`
	CreatedAt      int64          `json:"created_at"` // client clock, epoch ms
	Attempts       int            `json:"attempts,omitempty"`
}

// IntakeAction is a single action as accepted by the server intake,
// carrying the dedup key the intake enforces.
type IntakeAction struct {
	IdempotencyKey string
	Action         string
	Payload        json.RawMessage
}

// BatchAction is one item of a batch submission. The server derives its
// own dedup key from these semantic fields; the client key is not trusted.
type BatchAction struct {
	ActionType string
	Payload    json.RawMessage
	ClientTS   int64 // client clock, epoch ms
}

// OfflineAction is the server-persisted record awaiting asynchronous
// processing by an external worker.
type OfflineAction struct {
	ID             uuid.UUID // server-generated PK
	UserID         uuid.UUID // FK -> users.id
	IdempotencyKey string    // unique, the dedup key
	Action         string
	Payload        json.RawMessage
	Status         ActionStatus
	ErrorMessage   *string    // set by the worker on failure
	ProcessedAt    *time.Time // set by the worker on completion/failure
	CreatedAt      time.Time
}

// ActionRef reports the identity and current status of a persisted action.
type ActionRef struct {
	ID     uuid.UUID
	Status ActionStatus
}
