package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/himanishpuri/SampleTree/internal/metrics"
	"github.com/himanishpuri/SampleTree/pkg/logger"
	"github.com/himanishpuri/SampleTree/pkg/models"
	"github.com/himanishpuri/SampleTree/pkg/sampletree"
	"github.com/himanishpuri/SampleTree/pkg/utils"
	"go.uber.org/zap"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service sampletree.Service
	config  *ServerConfig
	log     sampletree.Logger
	zap     *zap.Logger
	metrics *metrics.Recorder
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int
	StoreURI        string
	MatchMode       string
	Strict          bool
	History         bool
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// NewServer creates a new server instance
func NewServer(service sampletree.Service, config *ServerConfig, rec *metrics.Recorder) *Server {
	log := logger.GetLogger()
	return &Server{
		service: service,
		config:  config,
		log:     log,
		zap:     log.Zap(),
		metrics: rec,
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondResolveError maps resolver failures to status codes
func (s *Server) respondResolveError(w http.ResponseWriter, title string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sampletree.ErrEmptyTitle):
		status = http.StatusBadRequest
	case errors.Is(err, sampletree.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Errorf("Resolve %q failed: %v", title, err)
	}
	s.respondError(w, status, err.Error())
}

// titleParam returns the {title} path segment, unescaped. chi matches on
// RawPath when it is set, so only then is the segment still escaped.
func titleParam(r *http.Request) string {
	title := chi.URLParam(r, "title")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(title); err == nil {
			title = unescaped
		}
	}
	return strings.TrimSpace(title)
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "SampleTree API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":  "GET /health",
			"metrics": "GET /api/health/metrics",
			"song":    "GET /api/song/{title}",
			"tree":    "GET /api/song/{title}/tree?direction=sampled_by|both",
			"songs":   "GET /api/songs",
			"history": "GET /api/history?limit=N",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Time: time.Now().Format(time.RFC3339)}
	if err := s.service.Ping(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.log.Errorf("Failed to get store stats: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:      "healthy",
		Store:       storeScheme(s.config.StoreURI),
		MatchMode:   s.config.MatchMode,
		Strict:      s.config.Strict,
		SongCount:   stats.Songs,
		LookupCount: stats.Lookups,
	})
}

// storeScheme reports the backend kind without credentials
func storeScheme(uri string) string {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return "unknown"
	}
	return strings.ToLower(scheme)
}

// handleGetSong handles GET /api/song/{title}
func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	title := titleParam(r)

	rec, err := s.service.Resolve(r.Context(), title)
	if err != nil {
		s.respondResolveError(w, title, err)
		return
	}

	s.recordLookup(r, rec)
	s.respondJSON(w, http.StatusOK, rec)
}

// recordLookup appends a history entry; failures are only logged
func (s *Server) recordLookup(r *http.Request, rec *models.LineageRecord) {
	if !s.config.History {
		return
	}

	entry := &models.HistoryEntry{
		IP:           utils.ClientIP(r),
		Timestamp:    time.Now().UTC(),
		RootSong:     rec.Title,
		TreeSnapshot: sampletree.Build(rec),
	}
	if err := s.service.RecordLookup(context.WithoutCancel(r.Context()), entry); err != nil {
		s.log.Warnf("Failed to record lookup of %q: %v", rec.Title, err)
	}
}

// handleGetTree handles GET /api/song/{title}/tree
func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	dir, err := sampletree.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	title := titleParam(r)
	rec, err := s.service.Resolve(r.Context(), title)
	if err != nil {
		s.respondResolveError(w, title, err)
		return
	}

	s.respondJSON(w, http.StatusOK, sampletree.BuildTree(rec, dir))
}

// handleListSongs handles GET /api/songs
func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.service.ListSongs(r.Context())
	if err != nil {
		s.log.Errorf("Failed to list songs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve songs")
		return
	}
	if songs == nil {
		songs = []models.LineageRecord{}
	}

	s.respondJSON(w, http.StatusOK, ListSongsResponse{
		Songs: songs,
		Count: len(songs),
	})
}

// handleHistory handles GET /api/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	entries, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.log.Errorf("Failed to list history: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	s.respondJSON(w, http.StatusOK, HistoryResponse{
		Entries: entries,
		Count:   len(entries),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, http.StatusNotFound, "no route for "+r.URL.Path)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
}
