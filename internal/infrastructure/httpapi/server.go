// Package httpapi exposes the command pipeline over HTTP for host
// applications that cannot link the module directly.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/doeshing/vocmd/internal/application/dispatch"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/catalog"
	"github.com/doeshing/vocmd/internal/ports"
)

// Dispatcher runs and tracks commands.
type Dispatcher interface {
	Execute(ctx context.Context, text string, cctx domain.CommandContext) domain.CommandResult
	Approve(ctx context.Context, permissionID, approver string, cctx domain.CommandContext) domain.CommandResult
	Deny(permissionID string, cctx domain.CommandContext) domain.CommandResult
	Pending() []domain.PermissionRequest
	RecentCommands(userID string, n int) []string
	Status() dispatch.Status
}

// Suggester ranks suggestions from the user's stored profile.
type Suggester interface {
	SuggestFor(userID string, ct domain.ContextType, recent []string, activity domain.ActivityLevel) []domain.SmartSuggestion
}

// ContextTracker is the context detector surface the API needs.
type ContextTracker interface {
	CurrentContext() (domain.ContextInfo, bool)
	ManuallySetContext(ct domain.ContextType, confidence float64, metadata map[string]interface{}) domain.ContextInfo
	Observe(sig domain.Signal) (domain.ContextInfo, bool)
	History() []domain.ContextTransition
	Subscribe() (<-chan domain.ContextChange, func())
}

// ModeSource exposes per-context settings and their change feed.
type ModeSource interface {
	SettingsFor(ct domain.ContextType) domain.ContextualSettings
	SubscribeCommandsChanged() (<-chan domain.CommandsChanged, func())
}

// HelpProvider renders the catalog grouped by category.
type HelpProvider interface {
	Help(filter func(domain.Category) bool) []catalog.HelpSection
}

// AuditSource reads the newest audit entries.
type AuditSource interface {
	AuditEntries(limit int) ([]domain.AuditEntry, error)
}

// Dependencies holds everything the handlers call into.
type Dependencies struct {
	Dispatcher  Dispatcher
	Suggestions Suggester
	Context     ContextTracker
	Modes       ModeSource
	Help        HelpProvider
	Audit       AuditSource
	Logger      ports.Logger
	// UserID is used when a request does not name one.
	UserID string
}

// Server serves the HTTP API.
type Server struct {
	deps   Dependencies
	router *gin.Engine
	server *http.Server

	shutdownTimeout time.Duration
}

// Option customizes a Server.
type Option func(*Server)

// WithShutdownTimeout bounds graceful shutdown in Run.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New builds a server. Dispatcher is required.
func New(deps Dependencies, opts ...Option) (*Server, error) {
	if deps.Dispatcher == nil {
		return nil, errors.New("httpapi: dispatcher is required")
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		deps:            deps,
		router:          gin.New(),
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(loggingMiddleware(s.deps.Logger))
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/v1")
	{
		v1.POST("/execute", s.execute)
		v1.GET("/status", s.status)
		v1.GET("/help", s.help)
		v1.GET("/suggestions", s.suggestions)
		v1.GET("/context", s.currentContext)
		v1.POST("/context", s.setContext)
		v1.GET("/context/history", s.contextHistory)
		v1.POST("/signals", s.signal)
		v1.GET("/audit", s.audit)
		v1.GET("/events", s.events)

		permissions := v1.Group("/permissions")
		{
			permissions.GET("", s.pending)
			permissions.POST("/:id/approve", s.approve)
			permissions.POST("/:id/deny", s.deny)
		}
	}
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("http api listening", map[string]interface{}{"addr": addr})
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{})        {}
func (nopLogger) Info(string, map[string]interface{})         {}
func (nopLogger) Warn(string, map[string]interface{})         {}
func (nopLogger) Error(string, error, map[string]interface{}) {}
