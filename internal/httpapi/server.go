package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/voice-translator/internal/config"
	"github.com/MimeLyc/voice-translator/internal/jobs"
	"github.com/MimeLyc/voice-translator/internal/service"
	"github.com/MimeLyc/voice-translator/internal/synth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// Pipeline is the part of the orchestrator the HTTP layer drives.
type Pipeline interface {
	Start(ctx context.Context, req service.Request) (*jobs.Job, *jobs.State)
	Run(jobID string, state *jobs.State, req service.Request) (*service.Result, error)
	Registry() *jobs.Registry
}

type selectionReporter interface {
	Selection() synth.Selection
}

type Server struct {
	pipeline  Pipeline
	languages config.LanguageTable

	uploadDir       string
	maxFileSize     int64
	allowedExts     []string
	submitRateLimit int
	pollInterval    time.Duration

	synthesis   selectionReporter
	cleanupCron string

	uiEnabled   bool
	uiStaticDir string

	baseCtx context.Context
	router  chi.Router
	server  *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

// WithUploads sets where uploaded audio is stored and how large it may be.
func WithUploads(dir string, maxFileSize int64) Option {
	return func(s *Server) {
		s.uploadDir = dir
		s.maxFileSize = maxFileSize
	}
}

// WithAllowedExtensions sets the audio extensions accepted for upload.
func WithAllowedExtensions(exts []string) Option {
	return func(s *Server) {
		if len(exts) > 0 {
			s.allowedExts = exts
		}
	}
}

// WithSubmitRateLimit caps translate requests per client IP per minute.
func WithSubmitRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.submitRateLimit = perMinute
	}
}

func WithHealth(synthesis selectionReporter, cleanupCron string) Option {
	return func(s *Server) {
		s.synthesis = synthesis
		s.cleanupCron = cleanupCron
	}
}

// WithPollInterval sets how often progress streams push updates.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithBaseContext parents asynchronous jobs, so they stop with the process.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

func NewServer(pipeline Pipeline, languages config.LanguageTable, opts ...Option) *Server {
	s := &Server{
		pipeline:     pipeline,
		languages:    languages,
		uploadDir:    os.TempDir(),
		maxFileSize:  10 * 1024 * 1024,
		allowedExts:  config.DefaultAllowedExtensions,
		pollInterval: 500 * time.Millisecond,
		baseCtx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	submit := r.With()
	if s.submitRateLimit > 0 {
		submit = r.With(httprate.LimitByIP(s.submitRateLimit, time.Minute))
	}
	submit.Post("/api/translate", s.handleTranslate)

	// single-slot endpoints report the most recently started job
	r.Get("/progress", s.handleLatestProgress)
	r.Post("/cancel", s.handleLatestCancel)
	r.Get("/download", s.handleLatestDownload)

	r.Route("/api", func(api chi.Router) {
		api.Get("/jobs", s.handleListJobs)
		api.Get("/jobs/{id}", s.handleGetJob)
		api.Get("/jobs/{id}/progress", s.handleJobProgress)
		api.Post("/jobs/{id}/cancel", s.handleJobCancel)
		api.Get("/jobs/{id}/download", s.handleJobDownload)
		api.Get("/jobs/{id}/ws", s.handleJobSocket)
		api.Get("/progress/stream", s.handleProgressStream)
		api.Get("/languages", s.handleLanguages)
		api.Get("/health", s.handleHealth)
	})

	r.NotFound(s.handleStatic)
	s.router = r
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" || r.Method != http.MethodGet || strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
