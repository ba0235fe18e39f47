// cmd/proposition-engine/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"proposition-engine/internal/cache"
	"proposition-engine/internal/catalog"
	"proposition-engine/internal/common/config"
	"proposition-engine/internal/common/database"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/common/observability"
	"proposition-engine/internal/features"
	"proposition-engine/internal/feedback"
	"proposition-engine/internal/ranking"
	"proposition-engine/internal/ranking/ml"
	"proposition-engine/internal/ranking/rule"
	"proposition-engine/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// pipeline pairs the orchestrator with the ML ranker's health surface
// for the HTTP layer.
type pipeline struct {
	*ranking.Orchestrator
	ml *ml.Ranker
}

func (p *pipeline) Healthy() bool        { return p.ml.Healthy() }
func (p *pipeline) ModelVersion() string { return p.ml.ModelVersion() }

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting proposition engine...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Feature schema ---
	schema, err := features.LoadSchema(cfg.Features.SchemaPath)
	if err != nil {
		zapLog.Fatal("feature schema load failed", zap.Error(err))
	}
	zapLog.Info("Feature schema loaded", zap.String("version", schema.Version))

	// --- Catalog ---
	holder := catalog.NewHolder(nil)
	loader := catalog.NewLoader(esClient, holder, cfg.Database.Elasticsearch.Index, time.Duration(cfg.Catalog.RefreshInterval)*time.Second, log)
	if err := loader.Refresh(ctx); err != nil {
		// The service starts anyway; /suggest reports the catalog as
		// unavailable until the first successful refresh.
		zapLog.Warn("initial catalog load failed", zap.Error(err))
	}

	loaderCtx, stopLoader := context.WithCancel(ctx)
	defer stopLoader()
	go loader.Run(loaderCtx)

	generator := catalog.NewGenerator(holder, cfg.Catalog.TopNPerCategory, cfg.Catalog.MaxCandidates, log)

	// --- Feature accessor ---
	aggregates := features.NewPostgresSource(pg.DB)
	accessor := features.NewAccessor(aggregates, config.GetDuration(cfg.Features.StoreTimeout), log)

	// --- Rankers ---
	var handle *ml.ModelHandle
	if cfg.Model.Version != "" {
		handle, err = ml.LoadArtifact(cfg.Model.Dir, cfg.Model.Version)
		if err != nil {
			// Rule path serves until a model is loaded.
			zapLog.Warn("model artifact load failed, serving rule path only", zap.Error(err))
		} else {
			zapLog.Info("Model artifact loaded", zap.String("version", handle.Version))
		}
	}

	mlRanker := ml.NewRanker(ml.NewProvider(handle), cfg.Model, log)
	ruleRanker := rule.New(cfg.Ranking.Rule, log)

	orchestrator := ranking.NewOrchestrator(generator, accessor, mlRanker, ruleRanker, schema, cfg.Ranking, log)

	// --- Cache ---
	responseCache := cache.NewResponseCache(
		redisClient.GetClient(),
		time.Duration(cfg.Cache.TTL)*time.Second,
		cfg.Cache.MaxLocalEntries,
		log,
	)

	// --- Feedback ---
	emitter := feedback.NewEmitter(feedback.NewPostgresSink(pg), cfg.Feedback, log)
	defer emitter.Close()

	// --- HTTP server ---
	srv := server.New(*cfg, &pipeline{Orchestrator: orchestrator, ml: mlRanker}, responseCache, emitter, obs, log)
	go func() {
		if err := srv.Run(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			// Hot model reload: swap the artifact and orphan every
			// cached ranking in one step.
			reloaded, err := ml.LoadArtifact(cfg.Model.Dir, cfg.Model.Version)
			if err != nil {
				zapLog.Warn("model reload failed, keeping current model", zap.Error(err))
				continue
			}
			version := mlRanker.SwapModel(reloaded)
			responseCache.InvalidateAll()
			zapLog.Info("Model reloaded", zap.String("version", version))
			continue
		}
		break
	}

	zapLog.Info("Shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("http shutdown incomplete", zap.Error(err))
	}
	stopLoader()

	zapLog.Info("Proposition engine stopped")
}
