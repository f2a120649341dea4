package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/quotedesk/internal/app"
	"github.com/noah-isme/quotedesk/internal/audit"
	"github.com/noah-isme/quotedesk/internal/config"
	"github.com/noah-isme/quotedesk/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	if cfg.RedisURL == "" {
		logger.Fatal().Msg("REDIS_URL is required for the audit worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := app.NewRedis(ctx, cfg.RedisURL, false, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	gateway, _, err := app.NewGateway(cfg, rdb, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog gateway")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.AuditQueueConcurrency,
		Queues:      map[string]int{app.AuditQueue: 1},
		Logger:      asynqLogger{log: logger.With().Str("component", "asynq").Logger()},
	})
	mux := asynq.NewServeMux()
	mux.Handle(audit.TaskTypeAppend, audit.AppendHandler{Appender: gateway})

	logger.Info().Int("concurrency", cfg.AuditQueueConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
