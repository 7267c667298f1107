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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/momentumhq/momentum-agent/pkg/agent"
	"github.com/momentumhq/momentum-agent/pkg/jobs"
	"github.com/momentumhq/momentum-agent/pkg/memory"
	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{"error": kind, "message": message})
}

type chatSettings struct {
	TextModel  string `json:"textModel,omitempty"`
	ImageModel string `json:"imageModel,omitempty"`
	VideoModel string `json:"videoModel,omitempty"`
	MusicModel string `json:"musicModel,omitempty"`
}

type chatRequest struct {
	Message      string                 `json:"message"`
	SessionID    string                 `json:"sessionId,omitempty"`
	BrandID      string                 `json:"brandId"`
	UserID       string                 `json:"userId"`
	TeamContext  string                 `json:"teamContext,omitempty"`
	Media        []protocol.MediaHandle `json:"media,omitempty"`
	Settings     *chatSettings          `json:"settings,omitempty"`
	ImageContext string                 `json:"imageContext,omitempty"`
}

// tenantContext builds the per-request tenant context: config defaults
// overlaid with any per-request model overrides.
func (s *Server) tenantContext(req chatRequest) tenant.Context {
	settings := tenant.Settings{
		TextModel:  s.cfg.Models.Text,
		ImageModel: s.cfg.Models.Image,
		VideoModel: s.cfg.Models.Video,
		MusicModel: s.cfg.Models.Music,
	}
	if req.Settings != nil {
		if req.Settings.TextModel != "" {
			settings.TextModel = req.Settings.TextModel
		}
		if req.Settings.ImageModel != "" {
			settings.ImageModel = req.Settings.ImageModel
		}
		if req.Settings.VideoModel != "" {
			settings.VideoModel = req.Settings.VideoModel
		}
		if req.Settings.MusicModel != "" {
			settings.MusicModel = req.Settings.MusicModel
		}
	}

	attachments := req.Media
	if req.ImageContext != "" {
		attachments = append(attachments, protocol.MediaHandle{
			Kind:       protocol.MediaImage,
			URI:        req.ImageContext,
			Source:     protocol.SourceReinjected,
			Provenance: "image context from caller",
		})
	}

	return tenant.Context{
		BrandID:     req.BrandID,
		UserID:      req.UserID,
		Settings:    settings,
		TeamContext: req.TeamContext,
		Attachments: attachments,
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body: "+err.Error())
		return
	}
	if req.Message == "" || req.BrandID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "validation", "message, brandId and userId are required")
		return
	}

	tc := s.tenantContext(req)
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.RequestTimeout)
	defer cancel()

	emitter := newNDJSONEmitter(w)
	if err := s.deps.Runner.Run(ctx, tc, req.Message, emitter); err != nil {
		message := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			message = "request timed out"
		}
		// The stream may be mid-flight; best effort, but the contract is
		// that an error frame terminates it.
		_ = emitter.Emit(agent.ErrorFrame(message))
	}
}

type mediaSearchRequest struct {
	BrandID string `json:"brandId"`
	Query   string `json:"query"`
	Limit   int    `json:"limit,omitempty"`
}

func (s *Server) handleMediaSearch(w http.ResponseWriter, r *http.Request) {
	var req mediaSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body: "+err.Error())
		return
	}
	if req.BrandID == "" || req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation", "brandId and query are required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	hits, err := s.deps.Manager.SearchMedia(r.Context(), req.BrandID, req.Query, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

type sessionRequest struct {
	BrandID string `json:"brandId"`
	UserID  string `json:"userId"`
}

func (s *Server) sessionKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body: "+err.Error())
		return "", false
	}
	if req.BrandID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "validation", "brandId and userId are required")
		return "", false
	}
	return tenant.SessionKey(req.BrandID, req.UserID), true
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := s.sessionKey(w, r)
	if !ok {
		return
	}
	if err := s.deps.Sessions.Delete(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSessionDeleteLast(w http.ResponseWriter, r *http.Request) {
	key, ok := s.sessionKey(w, r)
	if !ok {
		return
	}
	if err := s.deps.Sessions.DeleteLastTurn(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	brandID := chi.URLParam(r, "brandId")
	userID := chi.URLParam(r, "userId")
	stats, err := s.deps.Sessions.Stats(r.Context(), tenant.SessionKey(brandID, userID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type memoryDeleteRequest struct {
	UserID   string `json:"userId"`
	MemoryID string `json:"memoryId"`
	Type     string `json:"type,omitempty"`
}

func (s *Server) handleMemoryDelete(w http.ResponseWriter, r *http.Request) {
	var req memoryDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body: "+err.Error())
		return
	}
	if req.UserID == "" || req.MemoryID == "" {
		writeError(w, http.StatusBadRequest, "validation", "userId and memoryId are required")
		return
	}

	if err := s.deps.Memory.Delete(r.Context(), req.UserID, req.MemoryID); err != nil {
		if errors.Is(err, memory.ErrFactNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "memory fact not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleIndexCreate(w http.ResponseWriter, r *http.Request) {
	brandID := chi.URLParam(r, "brandId")

	var body struct {
		Force bool `json:"force,omitempty"`
	}
	// An empty body means a plain create.
	_ = json.NewDecoder(r.Body).Decode(&body)

	var err error
	var desc any
	if body.Force {
		desc, err = s.deps.Manager.ForceRecreate(r.Context(), brandID)
	} else {
		desc, err = s.deps.Manager.Create(r.Context(), brandID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleIndexDelete(w http.ResponseWriter, r *http.Request) {
	brandID := chi.URLParam(r, "brandId")
	if err := s.deps.Manager.Delete(r.Context(), brandID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	brandID := chi.URLParam(r, "brandId")
	desc, err := s.deps.Manager.Status(r.Context(), brandID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	brandID := chi.URLParam(r, "brandId")
	jobID := r.URL.Query().Get("jobId")

	job, err := s.deps.Tracker.Create(r.Context(), jobID, jobs.KindReindex)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	go s.runReindex(brandID, job.JobID)
	writeJSON(w, http.StatusAccepted, job)
}

// runReindex drives the reindex in the background, mirroring progress
// into the job record.
func (s *Server) runReindex(brandID, jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Jobs.MaxDuration)
	defer cancel()

	result, err := s.deps.Manager.Reindex(ctx, brandID, func(progress int, message string) {
		_ = s.deps.Tracker.UpdateProgress(ctx, jobID, progress, message)
	})
	if err != nil {
		_ = s.deps.Tracker.Fail(ctx, jobID, err.Error())
		return
	}
	_ = s.deps.Tracker.Complete(ctx, jobID, map[string]any{
		"total":     result.Total,
		"indexed":   result.Indexed,
		"failedIds": result.FailedIDs,
		"simulated": result.Simulated,
	})
}

func (s *Server) handleJobGet(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job, err := s.deps.Tracker.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleMediaRegister(w http.ResponseWriter, r *http.Request) {
	var item protocol.MediaLibraryItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body: "+err.Error())
		return
	}
	if item.BrandID == "" || item.StorageURI == "" {
		writeError(w, http.StatusBadRequest, "validation", "brandId and storageUri are required")
		return
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	if err := s.deps.Library.Register(r.Context(), &item); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	if s.cfg.Search.AutoIndex {
		if err := s.deps.Manager.IndexItem(r.Context(), item); err != nil {
			// Registration succeeded; indexing catches up on the next
			// reindex run.
			s.logger.Warn("auto-index failed", "media", item.MediaID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, item)
}
