// Package server exposes the review and diagram operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rahul/sentinel/internal/agent"
	"github.com/rahul/sentinel/internal/artifacts"
	"github.com/rahul/sentinel/internal/diagram"
	"github.com/rahul/sentinel/internal/observability"
	"github.com/rahul/sentinel/internal/prompts"
)

// Reviewer runs one plan/execute pass. *agent.Orchestrator satisfies it.
type Reviewer interface {
	Execute(ctx context.Context, goal string) (*agent.Run, error)
}

// DiagramGenerator is satisfied by *diagram.Generator.
type DiagramGenerator interface {
	Generate(ctx context.Context, kind diagram.Kind, in diagram.Input) (*diagram.Diagram, error)
}

// Notifier is told about every finished review.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Options configures a Server. Gate must be the one shared with every other
// entry point that starts runs; a nil Gate serialises only this server.
type Options struct {
	Reviewer       Reviewer
	Diagrams       DiagramGenerator
	Workspace      *artifacts.Workspace
	Prompts        *prompts.Manager
	Tracker        *observability.Tracker
	Logger         *observability.Logger
	Gatherer       prometheus.Gatherer
	Notifier       Notifier
	Gate           *agent.RunGate
	AllowedOrigins []string
	RunTimeout     time.Duration
}

type Server struct {
	engine     *gin.Engine
	reviewer   Reviewer
	diagrams   DiagramGenerator
	workspace  *artifacts.Workspace
	prompts    *prompts.Manager
	tracker    *observability.Tracker
	logger     *observability.Logger
	notifier   Notifier
	runTimeout time.Duration
	gate       *agent.RunGate
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewNop()
	}
	if opts.Tracker == nil {
		opts.Tracker = observability.NewTracker()
	}
	if opts.Workspace == nil {
		opts.Workspace = artifacts.NewWorkspace(".")
	}
	if opts.Gate == nil {
		opts.Gate = &agent.RunGate{}
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		reviewer:   opts.Reviewer,
		diagrams:   opts.Diagrams,
		workspace:  opts.Workspace,
		prompts:    opts.Prompts,
		tracker:    opts.Tracker,
		logger:     opts.Logger,
		notifier:   opts.Notifier,
		runTimeout: opts.RunTimeout,
		gate:       opts.Gate,
	}

	r := gin.New()
	r.Use(s.requestLogger(), gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("handler panic", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprint(recovered)})
	}))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	r.POST("/process_terraform/", s.processTerraform)
	r.POST("/generate_infrastructure_diagram/", s.generateInfrastructureDiagram)
	r.POST("/generate_security_graph/", s.generateSecurityGraph)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/status", func(c *gin.Context) { c.JSON(http.StatusOK, s.tracker.Snapshot()) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	s.engine = r
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	}
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var missing *artifacts.MissingInputError
	switch {
	case errors.As(err, &missing), agent.KindOf(err) == agent.KindInput:
		return http.StatusNotFound
	case agent.KindOf(err) == agent.KindBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}
