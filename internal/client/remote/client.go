// Package remote implements the HTTP client for the action-sync server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/and161185/actionsync/internal/api"
	"github.com/and161185/actionsync/internal/errs"
	"github.com/and161185/actionsync/internal/model"
)

// Client talks JSON to the server. A zero token issues unauthenticated
// requests (register/login only).
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New constructs a client for the given base URL (e.g. "http://host:8080").
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}
}

// SetToken installs the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Register creates an account and returns its user ID.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	var out api.RegisterResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/register",
		api.RegisterRequest{Username: username, Password: password}, &out)
	return out.UserID, err
}

// Login authenticates and returns the issued token. The token is also
// installed on the client.
func (c *Client) Login(ctx context.Context, username, password string) (api.LoginResponse, error) {
	var out api.LoginResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/login",
		api.LoginRequest{Username: username, Password: password}, &out)
	if err == nil {
		c.token = out.AccessToken
	}
	return out, err
}

// Submit delivers one queued offline action. It satisfies sync.Submitter.
func (c *Client) Submit(ctx context.Context, item model.QueuedAction) error {
	payload, err := json.Marshal(item.Payload)
	if err != nil {
		return err
	}
	var out api.SubmitResponse
	return c.do(ctx, http.MethodPost, "/v1/actions", api.SubmitRequest{
		IdempotencyKey: item.IdempotencyKey,
		Action:         item.Action,
		Payload:        payload,
	}, &out)
}

// SubmitBatch delivers an ordered batch and returns record IDs in input order.
func (c *Client) SubmitBatch(ctx context.Context, actions []api.BatchActionUpload) ([]string, error) {
	var out api.BatchSubmitResponse
	err := c.do(ctx, http.MethodPost, "/v1/actions/batch", api.BatchSubmitRequest{Actions: actions}, &out)
	return out.IDs, err
}

// ListActions returns the caller's pending and failed actions.
func (c *Client) ListActions(ctx context.Context) ([]api.ActionEntry, error) {
	var out api.ListResponse
	err := c.do(ctx, http.MethodGet, "/v1/actions", nil, &out)
	return out.Actions, err
}

// Retry asks the server to move a failed action back to pending.
func (c *Client) Retry(ctx context.Context, actionID string) (api.RetryResponse, error) {
	var out api.RetryResponse
	err := c.do(ctx, http.MethodPost, "/v1/actions/"+actionID+"/retry", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusError maps HTTP statuses back onto the shared sentinels so callers
// can branch with errors.Is.
func statusError(resp *http.Response) error {
	var e api.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&e)
	msg := e.Error
	if msg == "" {
		msg = resp.Status
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = errs.ErrNotFound
	case http.StatusUnauthorized:
		sentinel = errs.ErrUnauthorized
	case http.StatusTooManyRequests:
		sentinel = errs.ErrRateLimited
	case http.StatusConflict:
		sentinel = errs.ErrAlreadyExists
	default:
		return fmt.Errorf("server: %s (%d)", msg, resp.StatusCode)
	}
	return fmt.Errorf("server: %s: %w", msg, sentinel)
}
