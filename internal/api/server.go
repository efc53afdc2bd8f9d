// Package api exposes the detection pipeline over HTTP using Echo.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/detect"
	"github.com/veridict/voiceguard-go/internal/logging"
	"github.com/veridict/voiceguard-go/internal/observability"
)

// VoiceDetector is the pipeline surface the handler depends on.
type VoiceDetector interface {
	Detect(ctx context.Context, language string, audioData []byte, format string) (*detect.Result, error)
}

// Server wires the Echo instance, routes and middleware.
type Server struct {
	echo     *echo.Echo
	settings *conf.Settings
	detector VoiceDetector
	metrics  *observability.Metrics
	logger   *slog.Logger
	inFlight chan struct{}
}

// New builds the HTTP server. Metrics may be nil.
func New(settings *conf.Settings, detector VoiceDetector, metrics *observability.Metrics) *Server {
	s := &Server{
		echo:     echo.New(),
		settings: settings,
		detector: detector,
		metrics:  metrics,
		logger:   logging.ForService("api"),
	}

	maxInFlight := settings.Web.MaxInFlight
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	s.inFlight = make(chan struct{}, maxInFlight)

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	s.echo.GET("/healthz", s.handleHealthz)
	if settings.Web.EnableMetrics && metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
	}

	detection := s.echo.Group("/api")
	detection.Use(apiKeyAuth(settings.Web.APIKeys))
	detection.Use(s.limitInFlight)
	detection.POST("/voice-detection", s.handleDetection)

	return s
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.settings.Web.Host, s.settings.Web.Port)
	s.logger.Info("HTTP server listening", "addr", addr)
	err := s.echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// limitInFlight bounds concurrent detection work. Requests beyond the limit
// are rejected immediately so callers can retry elsewhere instead of queueing
// behind slow inference.
func (s *Server) limitInFlight(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		select {
		case s.inFlight <- struct{}{}:
			if s.metrics != nil {
				s.metrics.RequestsInFlight.Inc()
			}
			defer func() {
				<-s.inFlight
				if s.metrics != nil {
					s.metrics.RequestsInFlight.Dec()
				}
			}()
			return next(c)
		default:
			return c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Status:  "error",
				Message: "server is at capacity, retry later",
			})
		}
	}
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
