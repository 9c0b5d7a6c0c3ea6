// Package server exposes the bridge over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matthewbaird/pvbridge/internal/bridge"
	"github.com/matthewbaird/pvbridge/internal/dispatch"
	"github.com/matthewbaird/pvbridge/internal/eventbus"
	"github.com/matthewbaird/pvbridge/internal/forms"
	"github.com/matthewbaird/pvbridge/internal/journal"
	"github.com/matthewbaird/pvbridge/internal/metrics"
	"github.com/matthewbaird/pvbridge/internal/native"
	"github.com/matthewbaird/pvbridge/internal/uistate"
)

// Deps are the components the server talks to. Bridge, Forms, State and
// Controller are only touched from Loop.
type Deps struct {
	Logger     logr.Logger
	Loop       *dispatch.Loop
	Bridge     *bridge.Bridge
	Forms      *forms.Manager
	State      *uistate.State
	Controller *uistate.Controller
	Journal    journal.Store
	Bus        *eventbus.Bus
	Metrics    *metrics.Metrics
}

// Server routes HTTP and WebSocket requests.
type Server struct {
	Deps
	logger   logr.Logger
	sessions *Sessions
	router   chi.Router
}

// New creates a server and registers all routes.
func New(deps Deps) *Server {
	if deps.Logger.GetSink() == nil {
		deps.Logger = logr.Discard()
	}
	s := &Server{
		Deps:     deps,
		logger:   deps.Logger.WithName("server"),
		sessions: NewSessions(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
	})
	if reg := deps.Metrics.Registry(); reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.getState)
		r.Get("/proxies/{id}", s.getProxy)
		r.Get("/definitions/{type}", s.getDefinition)
		r.Get("/journal", s.getJournal)
		r.Post("/refresh", s.postRefresh)
		r.Get("/ws", s.serveWS)
	})
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(err, "Shutting down HTTP server failed")
		}
	}()

	s.logger.Info("Starting server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	var snap map[string]any
	err := s.Loop.Do(r.Context(), func() error {
		snap = s.State.Snapshot()
		return nil
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getProxy(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid proxy id: "+raw)
		return
	}
	var snap forms.Snapshot
	err = s.Loop.Do(r.Context(), func() error {
		p := s.Forms.Get(forms.ID(n))
		if p == nil {
			return forms.ErrNotFound
		}
		snap = p.Snapshot()
		return nil
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getDefinition(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	var data DefinitionData
	err := s.Loop.Do(r.Context(), func() error {
		var err error
		data, err = s.definition(typ)
		return err
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) definition(typ string) (DefinitionData, error) {
	def := s.Forms.Definition(typ)
	if def == nil {
		return DefinitionData{}, forms.ErrNoDefinition
	}
	return DefinitionData{Definition: def, Layout: s.Forms.Layout(typ)}, nil
}

func (s *Server) getJournal(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		writeJSON(w, http.StatusOK, []journal.Entry{})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "invalid limit: "+v)
			return
		}
		limit = n
	}
	entries, err := s.Journal.Recent(r.Context(), r.URL.Query().Get("native_id"), limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// postRefresh queues a refresh of the active proxies, for callers that do
// not wait on the result, such as a file watcher noticing new data.
func (s *Server) postRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.Loop.Post(func() error {
		return s.Controller.Trigger(uistate.RefreshActiveProxies)
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// errorCode maps an error to a wire code and an HTTP status.
func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, forms.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, forms.ErrNoDefinition):
		return "no_definition", http.StatusNotFound
	case errors.Is(err, bridge.ErrNotBound):
		return "not_bound", http.StatusNotFound
	case errors.Is(err, native.ErrInUse):
		return "in_use", http.StatusConflict
	case errors.Is(err, forms.ErrUnknownProperty):
		return "unknown_property", http.StatusBadRequest
	case errors.Is(err, forms.ErrValidation):
		return "validation_error", http.StatusUnprocessableEntity
	case errors.Is(err, dispatch.ErrStopped):
		return "unavailable", http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled", http.StatusServiceUnavailable
	default:
		return "internal_error", http.StatusInternalServerError
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	code, status := errorCode(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(err, "Request failed")
	}
	writeError(w, status, code, err.Error())
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
