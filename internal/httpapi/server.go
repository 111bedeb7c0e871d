// Package httpapi serves the administration API: policy and log listings,
// policy soft delete, and the guarded manual crawl trigger.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"PolicyScanner/internal/usecase"
)

// Deps wires stores, the pipeline runner and guard settings into the router.
type Deps struct {
	Policies      PolicyStore
	Logs          LogStore
	Runner        usecase.Runner
	BearerToken   string
	TriggerWindow time.Duration
	Gatherer      prometheus.Gatherer
	Logger        *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := deps.TriggerWindow
	if window <= 0 {
		window = 15 * time.Minute
	}

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	h := &handlers{policies: deps.Policies, logs: deps.Logs, runner: deps.Runner}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	v1.GET("/policies", h.listPolicies)
	v1.DELETE("/policies/:id", h.deletePolicy)
	v1.GET("/logs", h.listLogs)
	v1.GET("/crawler", BearerAuth(deps.BearerToken), NewClientLimiter(window).Middleware(), h.triggerCrawler)

	return router
}

// Server owns the HTTP listener lifecycle.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer binds handler to addr.
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown; it returns nil on graceful close.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
