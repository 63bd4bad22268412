// Package server provides the daemon's HTTP surface: health and readiness
// probes, publishing of the service's own DID document at the well-known
// location, and a single verification endpoint that runs the signed-request
// pipeline for forwarding callers. Prometheus metrics are served on a
// separate listener owned by the daemon.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AgentCommons/agentcommons-identity-go/internal/protocol"
	"github.com/AgentCommons/agentcommons-identity-go/internal/session"
	"github.com/AgentCommons/agentcommons-identity-go/internal/storage"
	"github.com/AgentCommons/agentcommons-identity-go/internal/verifier"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"

	maxVerifyBody = 1 << 20
)

// Handler wires the daemon endpoints using net/http.
type Handler struct {
	store        storage.Store
	logger       *slog.Logger
	wellKnownDoc []byte // pre-serialized DID document, empty when unset
	verifier     *verifier.Service
	sessions     *session.Issuer
	router       *http.ServeMux
}

// Options configures a Handler. WellKnownDoc may be nil when the daemon
// does not publish its own DID document; Sessions may be nil when no
// session signing key is configured. The verification endpoint is only
// registered when Verifier is set.
type Options struct {
	Logger       *slog.Logger
	WellKnownDoc []byte
	Verifier     *verifier.Service
	Sessions     *session.Issuer
}

// New creates a Handler.
func New(store storage.Store, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &Handler{
		store:        store,
		logger:       opts.Logger,
		wellKnownDoc: opts.WellKnownDoc,
		verifier:     opts.Verifier,
		sessions:     opts.Sessions,
		router:       http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// Router returns the mux with all routes registered.
func (h *Handler) Router() *http.ServeMux {
	return h.router
}

func (h *Handler) registerRoutes() {
	h.router.Handle("/health", h.loggingMiddleware(h.timeoutMiddleware(http.HandlerFunc(h.healthHandler))))
	h.router.Handle("/ready", h.loggingMiddleware(h.timeoutMiddleware(http.HandlerFunc(h.readyHandler))))
	h.router.Handle("/.well-known/did.json", h.loggingMiddleware(h.timeoutMiddleware(http.HandlerFunc(h.wellKnownHandler))))
	if h.verifier != nil {
		h.router.Handle("/v1/verify", h.loggingMiddleware(h.timeoutMiddleware(http.HandlerFunc(h.verifyHandler))))
	}
}

func (h *Handler) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readyHandler returns 200 when the service can serve traffic. With a
// PostgreSQL store the database is pinged; the memory store is always
// ready.
func (h *Handler) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if pg, ok := h.store.(interface{ DB() *sql.DB }); ok {
		if err := pg.DB().PingContext(ctx); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database not ready"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// wellKnownHandler serves the configured DID document at the location
// did:web resolvers derive. Returns 404 when no document is configured.
func (h *Handler) wellKnownHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if len(h.wellKnownDoc) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.wellKnownDoc); err != nil {
		h.logger.Warn("write well-known document failed", "error", err)
	}
}

type verifyResponse struct {
	Valid        bool   `json:"valid"`
	DID          string `json:"did,omitempty"`
	Error        string `json:"error,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

// verifyHandler runs the verification pipeline over a forwarded request.
// The signature headers travel on the request itself and the body is the
// signed payload. A successful verification includes a session token when
// an issuer is configured.
func (h *Handler) verifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxVerifyBody))
	if err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	result, err := h.verifier.VerifyAgentRequest(r.Context(), headers, string(body))
	if err != nil {
		h.logger.Error("verification pipeline failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !result.Valid {
		h.writeJSON(w, http.StatusUnauthorized, verifyResponse{Valid: false, Error: result.Error})
		return
	}

	resp := verifyResponse{Valid: true, DID: r.Header.Get(protocol.HeaderDID)}
	if h.sessions != nil {
		token, expires, err := h.sessions.Issue(resp.DID)
		if err != nil {
			h.logger.Error("session issuance failed", "did", resp.DID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp.SessionToken = token
		resp.ExpiresAt = expires.UTC().Format(time.RFC3339)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response failed", "error", err)
	}
}

// SetWellKnownDocument replaces the published DID document. Intended for
// wiring at startup, before the server begins accepting requests.
func (h *Handler) SetWellKnownDocument(doc []byte) {
	h.wellKnownDoc = doc
}
