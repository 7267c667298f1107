// Copyright 2025 Momentum Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the agent over HTTP: a streaming NDJSON chat
// endpoint plus management endpoints for sessions, memory, the media
// index, and jobs.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentumhq/momentum-agent/pkg/agent"
	"github.com/momentumhq/momentum-agent/pkg/config"
	"github.com/momentumhq/momentum-agent/pkg/jobs"
	"github.com/momentumhq/momentum-agent/pkg/logger"
	"github.com/momentumhq/momentum-agent/pkg/memory"
	"github.com/momentumhq/momentum-agent/pkg/search"
	"github.com/momentumhq/momentum-agent/pkg/session"
)

// Deps collects the components the HTTP layer serves.
type Deps struct {
	Runner   *agent.Runner
	Sessions session.Store
	Memory   *memory.Service
	Manager  *search.Manager
	Library  *search.Library
	Tracker  *jobs.Tracker
}

// Server is the HTTP front of the agent service.
type Server struct {
	cfg    *config.Config
	deps   Deps
	server *http.Server
	logger *slog.Logger
}

func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps, logger: logger.GetLogger()}
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: s.routes(),

		// WriteTimeout must exceed the request timeout or streams get cut
		// mid-response.
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/agent/chat", s.handleChat)
	r.Post("/agent/media-search", s.handleMediaSearch)

	r.Post("/session/delete", s.handleSessionDelete)
	r.Post("/session/delete-last", s.handleSessionDeleteLast)
	r.Get("/session/stats/{brandId}/{userId}", s.handleSessionStats)

	r.Post("/memory/delete", s.handleMemoryDelete)

	r.Route("/search-settings/{brandId}", func(r chi.Router) {
		r.Post("/datastore", s.handleIndexCreate)
		r.Delete("/datastore", s.handleIndexDelete)
		r.Post("/reindex", s.handleReindex)
		r.Get("/status", s.handleIndexStatus)
	})

	r.Get("/jobs/{jobId}", s.handleJobGet)
	r.Post("/media/register", s.handleMediaRegister)

	return r
}

// Start blocks serving HTTP until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server stopping")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
