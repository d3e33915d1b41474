// Package server exposes the gatekeeper over HTTP for serve mode. The
// endpoint accepts an already-fetched entity (no GitHub I/O happens here)
// and returns the gate decision; reasons are masked before they leave the
// process.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/dativo-io/warden/internal/authz"
	"github.com/dativo-io/warden/internal/github"
	"github.com/dativo-io/warden/internal/masker"
	wardenotel "github.com/dativo-io/warden/internal/otel"
	"github.com/dativo-io/warden/internal/policy"
	"github.com/dativo-io/warden/internal/trigger"
)

// Server wires the gate pipeline behind a chi router.
type Server struct {
	engine    *authz.Engine
	catalog   *masker.Catalog
	writePath *policy.WritePathEngine
	limiter   *RemoteLimiter
}

// New creates a server. requestsPerMin bounds each remote address's calls
// to the gate endpoint (in-process token bucket, distinct from the
// cross-process principal budget enforced inside the engine).
func New(engine *authz.Engine, catalog *masker.Catalog, writePath *policy.WritePathEngine, requestsPerMin int) *Server {
	return &Server{
		engine:    engine,
		catalog:   catalog,
		writePath: writePath,
		limiter:   NewRemoteLimiter(requestsPerMin),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(wardenotel.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/v1/gate", s.handleGate)
	r.Post("/v1/writepath", s.handleWritePath)
	return r
}

// gateRequest is the serve-mode input: a repository name plus the entity
// an external fetcher already pulled from GitHub.
type gateRequest struct {
	Repository string        `json:"repository"`
	Entity     github.Entity `json:"entity"`
}

// gateResponse is the decision returned to the orchestrator. RejectMessage
// is the operator-configured text to post back to the entity on a denial.
type gateResponse struct {
	Allowed       bool             `json:"allowed"`
	Reason        string           `json:"reason,omitempty"`
	Trigger       *trigger.Trigger `json:"trigger,omitempty"`
	Principal     string           `json:"principal,omitempty"`
	RejectMessage string           `json:"reject_message,omitempty"`
}

func (s *Server) handleGate(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(remoteHost(r)) {
		writeJSON(w, http.StatusTooManyRequests, gateResponse{Allowed: false, Reason: "too many requests"})
		return
	}

	var req gateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, gateResponse{Allowed: false, Reason: "invalid JSON body"})
		return
	}
	if req.Repository == "" {
		writeJSON(w, http.StatusBadRequest, gateResponse{Allowed: false, Reason: "repository is required"})
		return
	}

	ctx := r.Context()

	trig, principal, found := trigger.Scan(&req.Entity, func(p string) bool {
		return s.engine.UserAllowed(p, req.Repository)
	})
	if !found {
		writeJSON(w, http.StatusOK, gateResponse{Allowed: false, Reason: "no authoritative trigger"})
		return
	}

	allowed, reason := s.engine.Authorize(ctx, github.AuthorizationRequest{
		Principal:    principal,
		Action:       trig.ActionKey(string(req.Entity.Kind)),
		Repository:   req.Repository,
		EntityKind:   req.Entity.Kind,
		EntityNumber: req.Entity.Number,
	})

	resp := gateResponse{
		Allowed:   allowed,
		Reason:    s.catalog.Mask(ctx, reason),
		Trigger:   &trig,
		Principal: principal,
	}
	if !allowed {
		resp.RejectMessage = s.engine.RejectMessage()
	}
	log.Info().
		Bool("allowed", allowed).
		Str("principal", principal).
		Str("action", trig.Action).
		Str("agent", trig.Agent).
		Msg("gate_decision")
	writeJSON(w, http.StatusOK, resp)
}

// writePathRequest asks whether an agent may write to a file.
type writePathRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleWritePath(w http.ResponseWriter, r *http.Request) {
	var req writePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, gateResponse{Allowed: false, Reason: "path is required"})
		return
	}
	allowed, reason := s.writePath.CheckWritePath(r.Context(), req.Path)
	writeJSON(w, http.StatusOK, gateResponse{Allowed: allowed, Reason: s.catalog.Mask(r.Context(), reason)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func remoteHost(r *http.Request) string {
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
