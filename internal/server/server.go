package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrolland/cuestionario-videos/internal/assets"
	"github.com/scrolland/cuestionario-videos/internal/config"
	"github.com/scrolland/cuestionario-videos/internal/generation"
	"github.com/scrolland/cuestionario-videos/internal/logging"
	"github.com/scrolland/cuestionario-videos/internal/participants"
	"github.com/scrolland/cuestionario-videos/internal/prompt"
	"github.com/scrolland/cuestionario-videos/internal/runs"
	"github.com/scrolland/cuestionario-videos/internal/services"
)

// Generator abstracts the dual-tier orchestrator for tests.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// Server is the experiment HTTP surface: questionnaire endpoints,
// media generation, exports, and static file serving.
type Server struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *participants.Store
	runsStore   *runs.Store
	generator   Generator
	selector    *assets.Selector
	synthesizer *prompt.Synthesizer

	// genMu serializes generation requests; the remote service and
	// the experiment protocol both assume one run at a time.
	genMu sync.Mutex

	listener net.Listener
	server   *http.Server
}

// Option adjusts server construction.
type Option func(*Server)

// WithSelector overrides the video selector, letting tests seed it.
func WithSelector(selector *assets.Selector) Option {
	return func(s *Server) {
		if selector != nil {
			s.selector = selector
		}
	}
}

// WithSynthesizer overrides the prompt synthesizer.
func WithSynthesizer(synthesizer *prompt.Synthesizer) Option {
	return func(s *Server) {
		if synthesizer != nil {
			s.synthesizer = synthesizer
		}
	}
}

// New wires the HTTP surface. The runs store and generator may be nil;
// the generation endpoint then reports the feature as unavailable.
func New(cfg *config.Config, store *participants.Store, runsStore *runs.Store, generator Generator, logger *slog.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if store == nil {
		return nil, errors.New("participant store required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	srv := &Server{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "server"),
		store:       store,
		runsStore:   runsStore,
		generator:   generator,
		selector:    assets.NewSelector(cfg.Selection, rand.New(rand.NewSource(time.Now().UnixNano()))),
		synthesizer: prompt.NewSynthesizer(nil),
	}
	for _, opt := range opts {
		opt(srv)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/init-experiment", srv.handleInitExperiment)
	mux.HandleFunc("/save-response", srv.handleSaveResponse)
	mux.HandleFunc("/finish-experiment", srv.handleFinishExperiment)
	mux.HandleFunc("/generate-from-local-image", srv.handleGenerate)
	mux.HandleFunc("/get-stats", srv.handleGetStats)
	mux.HandleFunc("/export-csv", srv.handleExportCSV)
	mux.HandleFunc("/export-json", srv.handleExportJSON)
	mux.Handle("/videos/", http.StripPrefix("/videos/", http.FileServer(http.Dir(cfg.Paths.VideosDir))))
	if strings.TrimSpace(cfg.Paths.WebDir) != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.Paths.WebDir)))
	}

	srv.server = &http.Server{
		Handler:           withCORS(srv.withRequestID(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Start binds the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Paths.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Paths.Bind, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("experiment server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// withRequestID tags every request with a correlation identifier so log
// lines from handlers and the orchestrator can be tied back to one call.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

// withCORS lets the questionnaire page call the API from file:// or a
// different origin during local runs.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"success": false, "message": message})
}

func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return decoder.Decode(target)
}
