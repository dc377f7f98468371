package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(s.requestLogger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         3600,
	}))

	router.NotFound(s.handleNotFound)
	router.MethodNotAllowed(s.handleMethodNotAllowed)

	router.Get("/", s.handleRoot)
	router.Get("/health", s.handleHealth)
	router.Get("/api/health/metrics", s.handleMetrics)
	router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/song/{title}", s.handleGetSong)
		r.Get("/song/{title}/tree", s.handleGetTree)
		r.Get("/songs", s.handleListSongs)
		r.Get("/history", s.handleHistory)
	})

	return router
}

// requestLogger logs every request through zap and counts it by route pattern
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.ObserveRequest(r.Method, route, strconv.Itoa(status))

		s.zap.Info("HTTP Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestID", middleware.GetReqID(r.Context())),
			zap.String("remoteAddr", r.RemoteAddr),
		)
	})
}

// Start serves HTTP until ctx is canceled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infof("SampleTree server starting on %s", addr)
	s.log.Infof("   Store: %s (match: %s, strict: %v)", storeScheme(s.config.StoreURI), s.config.MatchMode, s.config.Strict)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET /health                    - Health check")
	s.log.Infof("   GET /api/health/metrics        - Store counters")
	s.log.Infof("   GET /api/song/{title}          - Resolve lineage record")
	s.log.Infof("   GET /api/song/{title}/tree     - Lineage tree")
	s.log.Infof("   GET /api/songs                 - List stored songs")
	s.log.Infof("   GET /api/history               - Recent lookups")
	s.log.Infof("   GET /metrics                   - Prometheus metrics")

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Infof("Shutting down, waiting up to %s for in-flight requests", s.config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warnf("Graceful shutdown did not complete: %v", err)
		return srv.Close()
	}
	s.log.Infof("Server stopped")
	return nil
}
