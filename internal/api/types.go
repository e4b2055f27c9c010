// Package api holds the JSON wire types shared by the HTTP server and the
// client library.
package api

import (
	"encoding/json"
	"time"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse returns the new account's identifier.
type RegisterResponse struct {
	UserID string `json:"user_id"`
}

// LoginRequest authenticates an account.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

// SubmitRequest is a single offline action delivered during a queue flush.
// Deduplication uses the client-generated idempotency key as-is.
type SubmitRequest struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Action         string          `json:"action"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// SubmitResponse reports the persisted (or reused) record.
type SubmitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// BatchActionUpload is one item of a batch submission. The server derives
// its own dedup key from these fields; no client key is involved.
type BatchActionUpload struct {
	ActionType string          `json:"action_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ClientTS   int64           `json:"client_ts"` // client clock, epoch ms
}

// BatchSubmitRequest is an ordered batch of actions.
type BatchSubmitRequest struct {
	Actions []BatchActionUpload `json:"actions"`
}

// BatchSubmitResponse returns record IDs in input order.
type BatchSubmitResponse struct {
	IDs []string `json:"ids"`
}

// ActionEntry is one persisted offline action as returned by the listing.
type ActionEntry struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	Action         string          `json:"action"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Status         string          `json:"status"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ListResponse wraps the caller's active (pending/failed) actions.
type ListResponse struct {
	Actions []ActionEntry `json:"actions"`
}

// RetryResponse reports the action moved back to pending.
type RetryResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
