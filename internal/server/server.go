// internal/server/server.go
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proposition-engine/internal/common/config"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/common/observability"
	"proposition-engine/internal/models"
)

// Ranker produces a ranked result for a validated request.
type Ranker interface {
	Rank(ctx context.Context, req *models.RankingRequest) (*models.RankingResult, error)
	Healthy() bool
	ModelVersion() string
}

// ResponseCache is the read-through cache the suggest handler consults
// before ranking.
type ResponseCache interface {
	Key(req *models.RankingRequest, modelVersion string) string
	Get(ctx context.Context, key string) *models.RankingResult
	Set(ctx context.Context, key string, res *models.RankingResult)
}

// FeedbackRecorder accepts interaction events without blocking.
type FeedbackRecorder interface {
	Record(ev models.FeedbackEvent)
}

// Server exposes the ranking pipeline over HTTP.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	cfg    config.ServerConfig
	logger logger.Logger
}

func New(cfg config.Config, ranker Ranker, cache ResponseCache, feedback FeedbackRecorder, obs *observability.Observability, log logger.Logger) *Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		cfg:    cfg.Server,
		logger: log,
	}

	h := newHandlers(cfg.Ranking, ranker, cache, feedback, obs, log)
	engine.POST("/suggest", h.suggest)
	engine.POST("/log_event", h.logEvent)
	engine.GET("/health", h.health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.http = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{
		"address": s.http.Addr,
	})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
