package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kubiyabot/storyboard/internal/catalog"
	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/storyboard"
	"github.com/kubiyabot/storyboard/internal/studio"
)

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	health := HealthResponse{
		Status:    "ok",
		Version:   s.version,
		Uptime:    s.state.Uptime(),
		UptimeStr: uptime(s.state.Uptime()),
		Models:    s.studio.Registry().Len(),
		Components: map[string]HealthStatus{
			"webui": {Status: "ok", CheckedAt: now},
		},
	}

	if s.cfg.ReplicateToken != "" {
		health.Components["replicate"] = HealthStatus{Status: "ok", CheckedAt: now}
	} else {
		health.Components["replicate"] = HealthStatus{
			Status:    "degraded",
			Message:   "no server token; requests must send Authorization: Bearer",
			CheckedAt: now,
		}
	}
	if s.cfg.OpenAIAPIKey != "" {
		health.Components["llm"] = HealthStatus{Status: "ok", CheckedAt: now}
	} else {
		health.Components["llm"] = HealthStatus{Status: "error", Message: "OpenAI API key is not configured", CheckedAt: now}
		health.Status = "degraded"
	}

	writeJSON(w, health)
}

// handleConfig handles GET /api/config
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ConfigResponse{
		Public:   s.cfg.Public(),
		Settings: s.studio.Settings(),
		Version:  s.version,
	})
}

// handleSettings handles PUT /api/settings
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var settings storyboard.Settings
	if !decodeJSON(w, r, &settings) {
		return
	}
	for _, m := range media.All {
		if ref := settings.For(m).Model; ref != "" {
			if _, _, _, ok := catalog.ParseModelRef(ref); !ok {
				writeErr(w, clierrors.ValidationError(fmt.Errorf("invalid %s model %q", m, ref), "Use the form owner/name or owner/name:version."))
				return
			}
		}
	}
	s.studio.SetSettings(settings)
	writeJSON(w, s.studio.Settings())
}

// handleModels handles GET /api/models?category=
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	var category media.Type
	if raw := r.URL.Query().Get("category"); raw != "" {
		m, err := parseMedia(raw)
		if err != nil {
			writeErr(w, err)
			return
		}
		category = m
	}
	models := s.studio.Registry().List(category)
	writeJSON(w, ModelsResponse{Models: models, Count: len(models)})
}

// handleModelsSync handles POST /api/models/sync
func (s *Server) handleModelsSync(w http.ResponseWriter, r *http.Request) {
	opts := s.syncOptions()
	if r.ContentLength != 0 {
		var req SyncRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Pages > 0 {
			opts.Pages = req.Pages
		}
		if len(req.Queries) > 0 {
			opts.Queries = req.Queries
		}
	}

	report, err := s.studio.Registry().Sync(r.Context(), s.bearerToken(r), opts)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.state.Broadcast(SSEEvent{Type: SSEEventCatalog, Data: report})
	writeJSON(w, report)
}

// handleModelsSearch handles GET /api/models/search?q=
func (s *Server) handleModelsSearch(w http.ResponseWriter, r *http.Request) {
	models, err := s.studio.Registry().Search(r.Context(), s.bearerToken(r), r.URL.Query().Get("q"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := models[:0:0]
		for _, m := range models {
			if string(m.Category) == category {
				filtered = append(filtered, m)
			}
		}
		models = filtered
	}
	writeJSON(w, ModelsResponse{Models: models, Count: len(models)})
}

// handleGetStoryboard handles GET /api/storyboard
func (s *Server) handleGetStoryboard(w http.ResponseWriter, r *http.Request) {
	board := s.studio.Storyboard()
	if board == nil {
		writeError(w, http.StatusNotFound, "no storyboard has been created")
		return
	}
	writeJSON(w, board)
}

// handleCreateStoryboard handles POST /api/storyboard
func (s *Server) handleCreateStoryboard(w http.ResponseWriter, r *http.Request) {
	var req CreateStoryboardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	board, err := s.studio.CreateStoryboard(r.Context(), req.Prompt, req.Format, req.Mode)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, board)
}

// handlePatchScene handles PATCH /api/scenes/{id}
func (s *Server) handlePatchScene(w http.ResponseWriter, r *http.Request) {
	id, ok := sceneID(w, r.PathValue("id"))
	if !ok {
		return
	}
	var patch storyboard.ScenePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	scene, err := s.studio.UpdateScene(id, patch)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, scene)
}

// handleGenerate handles POST /api/generate/{scene}/{media}. The request
// waits for the result; a dropped connection does not cancel the generation.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := sceneID(w, r.PathValue("scene"))
	if !ok {
		return
	}
	m, err := parseMedia(r.PathValue("media"))
	if err != nil {
		writeErr(w, err)
		return
	}

	outcome, err := s.studio.Generate(detach(r), id, m, s.bearerToken(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, outcome)
}

// handleGenerateAll handles POST /api/generate-all/{media}
func (s *Server) handleGenerateAll(w http.ResponseWriter, r *http.Request) {
	m, err := parseMedia(r.PathValue("media"))
	if err != nil {
		writeErr(w, err)
		return
	}
	policy := studio.PolicySkipExisting
	if raw := r.URL.Query().Get("policy"); raw != "" {
		policy = studio.RegeneratePolicy(raw)
	} else if r.ContentLength != 0 {
		var req GenerateAllRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		policy = studio.RegeneratePolicy(req.Policy)
	}
	if policy, err = studio.ParsePolicy(string(policy)); err != nil {
		writeErr(w, err)
		return
	}
	if s.studio.Storyboard() == nil {
		writeError(w, http.StatusNotFound, "no storyboard has been created")
		return
	}

	writeJSON(w, s.studio.GenerateAll(detach(r), m, s.bearerToken(r), policy))
}

// handleCancel handles POST /api/cancel/{scene}/{media}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := sceneID(w, r.PathValue("scene"))
	if !ok {
		return
	}
	m, err := parseMedia(r.PathValue("media"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, CancelResponse{Canceled: s.studio.Cancel(r.Context(), id, m)})
}

// handleCancelAll handles POST /api/cancel-all
func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]int{"canceled": s.studio.CancelAll(r.Context())})
}

// handleGenerations handles GET /api/generations
func (s *Server) handleGenerations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}
	writeJSON(w, GenerationsResponse{
		Active: s.studio.Active(),
		Recent: s.state.GetRecentActivity(limit),
	})
}

// handleUpload handles POST /api/uploads (multipart field "file")
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		writeError(w, http.StatusServiceUnavailable, "uploads are not configured")
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		writeErr(w, clierrors.ValidationError(fmt.Errorf("expected a multipart upload: %w", err), ""))
		return
	}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeErr(w, clierrors.ValidationError(fmt.Errorf("read upload: %w", err), ""))
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		up, err := s.uploads.Upload(r.Context(), s.bearerToken(r), part.FileName(), part.Header.Get("Content-Type"), part)
		_ = part.Close()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, up)
		return
	}
	writeErr(w, clierrors.ValidationError(errors.New("missing form field \"file\""), ""))
}

// handleFile handles GET /api/files/{id}?sig=
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		writeError(w, http.StatusServiceUnavailable, "uploads are not configured")
		return
	}
	body, contentType, err := s.uploads.Open(r.Context(), r.PathValue("id"), r.URL.Query().Get("sig"))
	if err != nil {
		writeErr(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Debug("File stream interrupted", "id", r.PathValue("id"), "error", err)
	}
}

// handleSSE handles GET /api/events (Server-Sent Events)
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := s.state.Subscribe()
	defer s.state.Unsubscribe(eventCh)

	s.sendSSEEvent(w, flusher, SSEEvent{
		Type: SSEEventSnapshot,
		Data: map[string]interface{}{
			"storyboard":  s.studio.Storyboard(),
			"settings":    s.studio.Settings(),
			"generations": s.studio.Active(),
		},
	})

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.stopCh:
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			s.sendSSEEvent(w, flusher, event)
		case <-heartbeat.C:
			s.sendSSEEvent(w, flusher, SSEEvent{
				Type: SSEEventHeartbeat,
				Data: map[string]interface{}{"timestamp": time.Now()},
			})
		}
	}
}

func (s *Server) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event SSEEvent) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	flusher.Flush()
}

// handleLogs handles GET /api/logs
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := LogFilter{
		Level:     LogLevel(strings.ToUpper(q.Get("level"))),
		Component: q.Get("component"),
		Search:    q.Get("search"),
		Limit:     100,
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if raw := q.Get("since"); raw != "" {
		if since, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Since = &since
		}
	}
	writeJSON(w, s.state.GetLogs(filter))
}

// detach keeps request values but not its cancellation, so long
// generations survive a dropped connection
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func sceneID(w http.ResponseWriter, raw string) (int, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeErr(w, clierrors.ValidationError(fmt.Errorf("invalid scene id %q", raw), ""))
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeErr(w, clierrors.ValidationError(fmt.Errorf("invalid request body: %w", err), ""))
		return false
	}
	return true
}

func parseMedia(raw string) (media.Type, error) {
	m, err := media.Parse(raw)
	if err != nil {
		return "", clierrors.ValidationError(err, "")
	}
	return m, nil
}
