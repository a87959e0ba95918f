package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"bondsignal/internal/config"
	"bondsignal/internal/engine"
	"bondsignal/internal/provider"
	"bondsignal/internal/scanner"
	"bondsignal/pkg/model"
)

// Universe is the reference store as seen by the API
type Universe interface {
	scanner.References
	Bonds() []model.Bond
}

// Deps are the collaborators the API serves from
type Deps struct {
	Analyzer *engine.Analyzer
	Provider provider.Provider
	Universe Universe // may be nil
	Scanner  *scanner.Scanner
	Gatherer prometheus.Gatherer
	Log      zerolog.Logger
}

// Server represents the web server
type Server struct {
	echo   *echo.Echo
	config config.ServerConfig
	deps   Deps
	log    zerolog.Logger
}

// NewServer creates the server and registers routes
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		config: cfg,
		deps:   deps,
		log:    deps.Log.With().Str("component", "web").Logger(),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))
	e.Use(s.requestLogger)

	e.GET("/healthz", s.handleHealth)
	if deps.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.POST("/analyze", s.handleAnalyze)
	api.GET("/bonds", s.handleBonds)
	api.GET("/bonds/:code", s.handleBond)
	api.POST("/risk", s.handleRisk)
	api.POST("/scan", s.handleScan)

	return s
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	s.log.Info().Str("addr", s.config.Addr).Msg("http server listening")
	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.log.Info().
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", c.Response().Status).
			Dur("took", time.Since(start)).
			Msg("request")
		return nil
	}
}
