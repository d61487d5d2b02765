package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/caldway/tradehelm/internal/recorder"
	"github.com/caldway/tradehelm/pkg/logger"
)

// Option configures the health server.
type Option func(*config)

type config struct {
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Server exposes the recorder's health and metrics over HTTP. Its
// lifecycle is independent of pipeline runs: started once at boot,
// shut down gracefully with the process.
type Server struct {
	echo *echo.Echo
	cfg  *config
	log  *logger.Logger
}

func New(rec *recorder.Recorder, log *logger.Logger, opts ...Option) *Server {
	cfg := &config{
		addr:         ":8090",
		readTimeout:  5 * time.Second,
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, rec.Health())
	})
	e.GET("/metrics", echo.WrapHandler(rec.MetricsHandler()))

	e.Server.ReadTimeout = cfg.readTimeout
	e.Server.WriteTimeout = cfg.writeTimeout

	return &Server{echo: e, cfg: cfg, log: log}
}

// Start begins serving in the background. Listen errors other than a
// clean shutdown are logged, not returned: a dead health endpoint
// must not take trading down with it.
func (s *Server) Start() {
	go func() {
		s.log.Info("health server listening", logger.String("addr", s.cfg.addr))
		if err := s.echo.Start(s.cfg.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("health server failed", logger.Err(err))
		}
	}()
}

// Stop drains in-flight requests and rejects new ones, bounded by the
// context deadline.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	s.log.Info("health server stopped")
	return nil
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithTimeouts sets read and write timeouts.
func WithTimeouts(read, write time.Duration) Option {
	return func(c *config) {
		c.readTimeout = read
		c.writeTimeout = write
	}
}
