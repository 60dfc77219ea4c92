// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package debugserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
)

const readHeaderTimeout = 5 * time.Second

// ErrListen is returned when the listen address cannot be bound.
var ErrListen = errors.New("debug server listen failed")

// ProgressSource lists the indicators that are currently active.
type ProgressSource interface {
	Active() []progress.Entry
}

// Server is the local debug HTTP endpoint.
type Server struct {
	router   chi.Router
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

type progressEntry struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	State   string    `json:"state"`
	Started time.Time `json:"started"`
	Elapsed string    `json:"elapsed"`
}

// New builds the router. metrics serves GET /metrics; progress backs GET /progress.
func New(metrics http.Handler, source ProgressSource) *Server {
	s := &Server{
		done: make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Get("/healthz", healthz)
	r.Method(http.MethodGet, "/metrics", metrics)
	r.Get("/progress", progressHandler(source))

	s.router = r

	return s
}

// Handler returns the router for use with an http.Server or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds addr and serves in the background until Shutdown.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.Join(ErrListen, err)
	}

	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		defer close(s.done)

		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctxlog.Error(ctx, "debug server stopped", "error", err)
		}
	}()

	ctxlog.Info(ctx, "debug server listening", "addr", ln.Addr().String())

	return nil
}

// Addr returns the bound address, or an empty string before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Shutdown stops the server and waits for the serve loop to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	err := s.srv.Shutdown(ctx)
	<-s.done

	if err != nil {
		return fmt.Errorf("debug server shutdown: %w", err)
	}

	return nil
}

func healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func progressHandler(source ProgressSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		active := source.Active()
		out := make([]progressEntry, 0, len(active))

		for _, e := range active {
			out = append(out, progressEntry{
				ID:      e.ID,
				Message: e.Message,
				State:   e.State.String(),
				Started: e.Started,
				Elapsed: now.Sub(e.Started).Round(time.Millisecond).String(),
			})
		}

		writeJSON(r.Context(), w, http.StatusOK, out)
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctxlog.Debug(ctx, "debug server write failed", "error", err)
	}
}
