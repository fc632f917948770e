package main

import (
	"context"
	"log"

	"altotrafico-web/internal/config"
	"altotrafico-web/internal/hubspot"
	"altotrafico-web/internal/logger"
	"altotrafico-web/internal/queue"
	"altotrafico-web/internal/storage"
	"altotrafico-web/internal/telemetry"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
	}

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	redisOpt, err := config.RedisOptions(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	kv := storage.NewRedisKV(rdb)
	store := storage.NewStore(kv)
	blog := hubspot.NewClient(hubspot.Config{
		APIURL:   cfg.HubSpotAPIURL,
		RPM:      cfg.HubSpotRPM,
		CacheTTL: cfg.BlogCacheTTL,
	}, hubspot.StoreTokens{Store: store, EnvToken: cfg.HubSpotAccessToken}, kv, metrics)

	server := asynq.NewServer(
		queue.RedisConnOpt(redisOpt),
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	logger.Info("starting asynq worker", "concurrency", 2, "redis", redisOpt.Addr)

	// Run handles SIGTERM/SIGINT and drains in-flight tasks.
	if err := server.Run(queue.NewServeMux(queue.NewTaskProcessor(blog))); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
