package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	httperr "github.com/aevon-lab/tradepulse/internal/core/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthTimeout = 2 * time.Second

// HealthChecker is an interface for components that can report their health status.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Flusher drops every cached result.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Addr           string
	Mode           string // debug | release
	RateLimitRPS   float64
	RateLimitBurst int
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Checks are pinged by GET /health, keyed by component name.
	Checks map[string]HealthChecker
	Cache  Flusher
}

type Server struct {
	Engine *gin.Engine
	Addr   string
	api    *gin.RouterGroup
	checks map[string]HealthChecker
	cache  Flusher
}

func New(opts Options) *Server {
	// Set Gin mode based on configuration
	if opts.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger())
	if opts.Mode == "debug" {
		r.Use(gin.Logger())
	}

	s := &Server{
		Engine: r,
		Addr:   opts.Addr,
		checks: opts.Checks,
		cache:  opts.Cache,
	}

	r.GET("/health", s.healthHandler)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	s.api = r.Group("/api/v1")
	if opts.RateLimitRPS > 0 {
		s.api.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	}
	s.api.POST("/cache/flush", s.flushHandler)

	return s
}

// API returns the /api/v1 route group that feature services register on.
func (s *Server) API() gin.IRouter {
	return s.api
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			slog.Error("[Health] Check failed", "component", name, "error", err)
			status[name] = "unreachable"
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnhealthy,
			Message:   "One or more dependencies are unreachable",
			Details:   status,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"checks": status,
	})
}

func (s *Server) flushHandler(c *gin.Context) {
	if s.cache == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if err := s.cache.Flush(c.Request.Context()); err != nil {
		httperr.Respond(c, err, "Failed to flush cache")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("[Server] Starting HTTP server", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("[Server] Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("[Server] Forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
