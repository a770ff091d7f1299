package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kubiyabot/storyboard/internal/catalog"
	"github.com/kubiyabot/storyboard/internal/config"
	"github.com/kubiyabot/storyboard/internal/pterm"
	"github.com/kubiyabot/storyboard/internal/sentry"
	"github.com/kubiyabot/storyboard/internal/studio"
	"github.com/kubiyabot/storyboard/internal/uploads"
)

// MaxJSONBody caps JSON request bodies
const MaxJSONBody = 1 << 20

// Options wires a Server
type Options struct {
	Studio  *studio.Studio
	Uploads *uploads.Service
	// State must be the EventSink the studio publishes to
	State   *State
	Config  *config.Config
	Logger  *pterm.Logger
	Version string
}

// Server is the web UI HTTP server
type Server struct {
	studio  *studio.Studio
	uploads *uploads.Service
	state   *State
	cfg     *config.Config
	logger  *pterm.Logger
	version string

	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewServer creates a new web UI server
func NewServer(opts Options) (*Server, error) {
	if opts.Studio == nil {
		return nil, fmt.Errorf("webui: studio is required")
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.State == nil {
		opts.State = NewState()
	}
	s := &Server{
		studio:  opts.Studio,
		uploads: opts.Uploads,
		state:   opts.State,
		cfg:     opts.Config,
		logger:  opts.Logger,
		version: opts.Version,
		stopCh:  make(chan struct{}),
	}
	s.logger.AddHook(s.state.LogHook("studio"))
	return s, nil
}

// Start listens on addr ("" uses the configured host and port) and serves
// in the background
func (s *Server) Start(ctx context.Context, addr string) error {
	if addr == "" {
		addr = s.cfg.Addr()
	}
	var err error
	s.listener, err = net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// SSE streams stay open
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped", "error", err)
		}
	}()

	s.logger.Success("Storyboard studio listening", "url", s.URL())
	return nil
}

// Handler returns the routed API and static UI
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return s.middleware(mux)
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	staticSubFS, err := fs.Sub(staticFS, "static")
	if err == nil {
		mux.Handle("GET /", s.handleStatic(http.FileServer(http.FS(staticSubFS))))
	}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("PUT /api/settings", s.handleSettings)

	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("POST /api/models/sync", s.handleModelsSync)
	mux.HandleFunc("GET /api/models/search", s.handleModelsSearch)

	mux.HandleFunc("GET /api/storyboard", s.handleGetStoryboard)
	mux.HandleFunc("POST /api/storyboard", s.handleCreateStoryboard)
	mux.HandleFunc("PATCH /api/scenes/{id}", s.handlePatchScene)

	mux.HandleFunc("POST /api/generate/{scene}/{media}", s.handleGenerate)
	mux.HandleFunc("POST /api/generate-all/{media}", s.handleGenerateAll)
	mux.HandleFunc("POST /api/cancel/{scene}/{media}", s.handleCancel)
	mux.HandleFunc("POST /api/cancel-all", s.handleCancelAll)
	mux.HandleFunc("GET /api/generations", s.handleGenerations)

	mux.HandleFunc("POST /api/uploads", s.handleUpload)
	mux.HandleFunc("GET "+uploads.DefaultRoute+"/{id}", s.handleFile)

	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
}

// middleware tags each request with an id and turns panics into 500s
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		defer func() {
			if v := recover(); v != nil {
				err := fmt.Errorf("panic: %v", v)
				s.logger.Error("Handler panicked", "path", r.URL.Path, "request_id", id, "error", err)
				sentry.CaptureError(err, map[string]string{"path": r.URL.Path}, map[string]interface{}{"request_id": id})
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()

		if strings.HasPrefix(r.URL.Path, "/api/") && r.URL.Path != "/api/events" && r.URL.Path != "/api/logs" {
			s.logger.Debug("API request", "method", r.Method, "path", r.URL.Path, "request_id", id)
			sentry.AddBreadcrumb("http", r.Method+" "+r.URL.Path, nil)
		}
		next.ServeHTTP(w, r)
	})
}

// handleStatic serves the embedded UI; unknown API paths stay 404
func (s *Server) handleStatic(fileServer http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fileServer.ServeHTTP(w, r)
	}
}

// URL returns the server URL
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return fmt.Sprintf("http://%s", s.listener.Addr().String())
}

// Port returns the actual port the server is listening on
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Stop ends SSE streams, cancels running generations and shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if n := s.studio.CancelAll(ctx); n > 0 {
		s.logger.Info("Canceled running generations", "count", n)
	}
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.wg.Wait()
	return nil
}

// State returns the server's state
func (s *Server) State() *State {
	return s.state
}

// syncOptions are the catalog sync defaults from the configuration
func (s *Server) syncOptions() catalog.SyncOptions {
	return catalog.SyncOptions{Pages: s.cfg.SyncPages, Queries: s.cfg.SyncQueries}
}

// bearerToken is the provider token of the request, falling back to the configured one
func (s *Server) bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		if tok := strings.TrimSpace(auth[7:]); tok != "" {
			return tok
		}
	}
	return s.cfg.ReplicateToken
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSONStatus(w, status, ErrorResponse{Error: message})
}
