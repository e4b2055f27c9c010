// Package httpapi exposes the action-sync HTTP API handlers.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/actionsync/internal/api"
	"github.com/and161185/actionsync/internal/errs"
	"github.com/and161185/actionsync/internal/model"
	"github.com/and161185/actionsync/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth    service.AuthService
	actions service.ActionService
	signKey []byte
	log     *zap.Logger
}

// New constructs an HTTP API server with injected services.
func New(auth service.AuthService, actions service.ActionService, signKey []byte, log *zap.Logger) *Server {
	return &Server{auth: auth, actions: actions, signKey: signKey, log: log}
}

// Router builds the chi router with middleware and all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, Recover(s.log), Logging(s.log))

	r.Get("/healthz", s.health)
	r.Post("/v1/auth/register", s.register)
	r.Post("/v1/auth/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(s.signKey))
		r.Post("/v1/actions", s.submit)
		r.Post("/v1/actions/batch", s.submitBatch)
		r.Get("/v1/actions", s.list)
		r.Post("/v1/actions/{id}/retry", s.retry)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// --- Auth ---

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "empty username/password")
		return
	}
	userID, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeMapped(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, api.RegisterResponse{UserID: userID})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	tok, u, err := s.auth.LoginWithIP(r.Context(), req.Username, req.Password, r.RemoteAddr)
	if err != nil {
		s.writeMapped(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, api.LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		UserID:      u.ID.String(),
	})
}

// --- Actions ---

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	ref, err := s.actions.Submit(r.Context(), userID, model.IntakeAction{
		IdempotencyKey: req.IdempotencyKey,
		Action:         req.Action,
		Payload:        req.Payload,
	})
	if err != nil {
		s.writeMapped(w, "submit", err)
		return
	}
	writeJSON(w, http.StatusOK, api.SubmitResponse{ID: ref.ID.String(), Status: string(ref.Status)})
}

func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	var req api.BatchSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	batch := make([]model.BatchAction, 0, len(req.Actions))
	for _, a := range req.Actions {
		batch = append(batch, model.BatchAction{
			ActionType: a.ActionType,
			Payload:    a.Payload,
			ClientTS:   a.ClientTS,
		})
	}
	ids, err := s.actions.SubmitBatch(r.Context(), userID, batch)
	if err != nil {
		s.writeMapped(w, "submit batch", err)
		return
	}
	out := api.BatchSubmitResponse{IDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		out.IDs = append(out.IDs, id.String())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	actions, err := s.actions.ListActive(r.Context(), userID)
	if err != nil {
		s.writeMapped(w, "list", err)
		return
	}
	out := api.ListResponse{Actions: make([]api.ActionEntry, 0, len(actions))}
	for _, a := range actions {
		e := api.ActionEntry{
			ID:             a.ID.String(),
			IdempotencyKey: a.IdempotencyKey,
			Action:         a.Action,
			Payload:        a.Payload,
			Status:         string(a.Status),
			ProcessedAt:    a.ProcessedAt,
			CreatedAt:      a.CreatedAt,
		}
		if a.ErrorMessage != nil {
			e.ErrorMessage = *a.ErrorMessage
		}
		out.Actions = append(out.Actions, e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) retry(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	actionID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")
		return
	}
	ref, err := s.actions.Retry(r.Context(), userID, actionID)
	if err != nil {
		s.writeMapped(w, "retry", err)
		return
	}
	writeJSON(w, http.StatusOK, api.RetryResponse{ID: ref.ID.String(), Status: string(ref.Status)})
}

// writeMapped translates sentinel errors into HTTP statuses at the edge.
func (s *Server) writeMapped(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "bad credentials")
	case errors.Is(err, errs.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, errs.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case isValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error(op, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

func isValidation(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "validation")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
