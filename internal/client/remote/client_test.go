package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/and161185/actionsync/internal/api"
	"github.com/and161185/actionsync/internal/errs"
	"github.com/and161185/actionsync/internal/model"
)

func TestSubmit_SendsKeyAndBearer(t *testing.T) {
	t.Parallel()
	var got api.SubmitRequest
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/actions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(api.SubmitResponse{ID: "id-1", Status: "pending"})
	}))
	defer ts.Close()

	c := New(ts.URL)
	c.SetToken("tok-123")
	err := c.Submit(context.Background(), model.QueuedAction{
		IdempotencyKey: "k-1",
		Action:         "cart.add",
		Payload:        map[string]any{"sku": "lamp-7"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer tok-123" {
		t.Fatalf("auth header: %q", auth)
	}
	if got.IdempotencyKey != "k-1" || got.Action != "cart.add" {
		t.Fatalf("request: %+v", got)
	}
	var payload map[string]any
	if err := json.Unmarshal(got.Payload, &payload); err != nil || payload["sku"] != "lamp-7" {
		t.Fatalf("payload: %s err=%v", got.Payload, err)
	}
}

func TestLogin_InstallsToken(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.LoginResponse{AccessToken: "fresh", UserID: "u-1"})
	}))
	defer ts.Close()

	c := New(ts.URL)
	out, err := c.Login(context.Background(), "alice", "pw")
	if err != nil || out.AccessToken != "fresh" {
		t.Fatalf("out=%+v err=%v", out, err)
	}
	if c.token != "fresh" {
		t.Fatalf("token not installed: %q", c.token)
	}
}

func TestStatusErrors_MapToSentinels(t *testing.T) {
	t.Parallel()
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, errs.ErrNotFound},
		{http.StatusUnauthorized, errs.ErrUnauthorized},
		{http.StatusTooManyRequests, errs.ErrRateLimited},
		{http.StatusConflict, errs.ErrAlreadyExists},
	}
	for _, tc := range cases {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "nope"})
		}))
		c := New(ts.URL)
		_, err := c.Retry(context.Background(), "some-id")
		ts.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: got %v want %v", tc.status, err, tc.want)
		}
	}
}

func TestSubmitBatch_RoundTrip(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.BatchSubmitRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := api.BatchSubmitResponse{}
		for i := range req.Actions {
			resp.IDs = append(resp.IDs, req.Actions[i].ActionType)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	c := New(ts.URL)
	ids, err := c.SubmitBatch(context.Background(), []api.BatchActionUpload{
		{ActionType: "a", ClientTS: 1},
		{ActionType: "b", ClientTS: 2},
	})
	if err != nil || len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ids=%v err=%v", ids, err)
	}
}

func TestServerError_NoSentinel(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := New(ts.URL)
	_, err := c.ListActions(context.Background())
	if err == nil || errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want plain server error, got %v", err)
	}
}
