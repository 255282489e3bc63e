// Package api serves the latest host metrics over HTTP.
//
// Routes:
//
//	GET    /api/hosts                     host list with state and rates
//	GET    /api/hosts/:id                 one host with every stored field
//	GET    /api/hosts/:id/fields/:field   one named field
//	POST   /api/hosts/:id/poll            run a tick now
//	POST   /api/connect                   connect every host
//	POST   /api/disconnect                disconnect every host
//	DELETE /api/hosts/:id                 stop polling a host
//	GET    /metrics                       Prometheus exposition
//	GET    /healthz                       liveness
package api

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/logger"
	"github.com/rileyhilliard/rackwatch/internal/poller"
	"github.com/rileyhilliard/rackwatch/internal/store"
)

// ShutdownTimeout bounds how long in-flight requests get on shutdown.
const ShutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	// Listen is the host:port to bind.
	Listen string
	// History supplies throughput rates. Optional.
	History *store.History
	Logger  logger.Logger
	// Debug puts gin in debug mode.
	Debug bool
}

// Server is the HTTP read surface over a registry and its store.
type Server struct {
	registry *poller.Registry
	store    *store.Store
	history  *store.History
	log      logger.Logger
	engine   *gin.Engine
	listen   string
}

// NewServer builds the router. Nothing listens until Run.
func NewServer(reg *poller.Registry, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewEnvLogger("[api]")
	}
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		registry: reg,
		store:    reg.Store(),
		history:  opts.History,
		log:      log,
		engine:   gin.New(),
		listen:   opts.Listen,
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		NewCollector(reg),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.engine.Use(gin.Recovery(), requestLogger(log))
	s.registerRoutes(promReg)
	return s
}

func (s *Server) registerRoutes(promReg *prometheus.Registry) {
	apiGroup := s.engine.Group("/api")
	{
		apiGroup.GET("/hosts", s.listHosts)
		apiGroup.GET("/hosts/:id", s.getHost)
		apiGroup.GET("/hosts/:id/fields/:field", s.getField)
		apiGroup.POST("/hosts/:id/poll", s.pollHost)
		apiGroup.DELETE("/hosts/:id", s.removeHost)
		apiGroup.POST("/connect", s.connectAll)
		apiGroup.POST("/disconnect", s.disconnectAll)
	}
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))
	s.engine.GET("/healthz", s.healthz)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI,
			"Couldn't listen on "+s.listen,
			"Pick another address with --listen or serve.listen.")
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.WrapWithCode(err, errors.ErrAPI, "HTTP server stopped", "")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI, "HTTP server did not shut down cleanly", "")
	}
	s.log.Info("server stopped")
	return nil
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		logFunc := log.Debug
		if status >= 400 && status < 500 {
			logFunc = log.Warn
		} else if status >= 500 {
			logFunc = log.Error
		}
		logFunc("%3d | %13v | %15s | %-7s %s",
			status, latency, c.ClientIP(), c.Request.Method, c.Request.URL.Path)
	}
}
