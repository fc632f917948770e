package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"altotrafico-web/internal/auth"
	"altotrafico-web/internal/config"
	"altotrafico-web/internal/hubspot"
	"altotrafico-web/internal/logger"
	"altotrafico-web/internal/queue"
	"altotrafico-web/internal/ratelimit"
	"altotrafico-web/internal/scheduler"
	"altotrafico-web/internal/storage"
	"altotrafico-web/internal/telemetry"
	"altotrafico-web/middleware"
	"altotrafico-web/models"
	"altotrafico-web/routes"
	"altotrafico-web/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

const (
	serviceName    = "altotrafico-web"
	maxRequestBody = 1 << 20
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(telemetry.TracerConfig{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRate:  cfg.OTELSampleRate,
		Environment: cfg.GinMode,
	})
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
	}

	// Redis holds site documents, sessions and the blog cache
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

	// Audit trail: MongoDB when configured, structured log otherwise
	var auditSink models.AuditSink = models.LogAuditSink{Logger: logger.With("component", "audit")}
	if cfg.MongoURI != "" {
		mongoClient, err := config.ConnectMongoDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(ctx)
		}()
		auditSink = models.NewMongoAuditSink(mongoClient.Database(cfg.DBName))
	}
	auditor := models.NewAuditLogger(auditSink)

	limiter := ratelimit.New(
		ratelimit.WithMaxAttempts(cfg.LoginMaxAttempts),
		ratelimit.WithWindow(cfg.LoginWindow),
	)
	authenticator := auth.NewAuthenticator(store, limiter, metrics)
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL, kv)
	if err != nil {
		log.Fatal("Failed to create token issuer:", err)
	}

	blog := hubspot.NewClient(hubspot.Config{
		APIURL:   cfg.HubSpotAPIURL,
		RPM:      cfg.HubSpotRPM,
		CacheTTL: cfg.BlogCacheTTL,
	}, hubspot.StoreTokens{Store: store, EnvToken: cfg.HubSpotAccessToken}, kv, metrics)

	taskClient := asynq.NewClient(queue.RedisConnOpt(redisOpt))
	defer taskClient.Close()

	// Background maintenance
	sched := scheduler.NewScheduler()
	if err := scheduleMaintenance(sched, cfg, limiter, blog, metrics); err != nil {
		log.Fatal("Failed to schedule maintenance:", err)
	}
	sched.Start()
	defer sched.Stop()

	// Initialize Gin router
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.RequestSizeLimit(maxRequestBody))
	router.Use(middleware.RateLimitMiddleware(kv, cfg.RateLimitReqs, time.Duration(cfg.RateLimitWindow)*time.Second))

	authMiddleware := middleware.NewAuthMiddleware(tokens)
	audit := middleware.AuditMiddleware(auditor, metrics)

	// Setup routes
	routes.SetupPublicRoutes(router, store, blog)
	routes.SetupAuthRoutes(router, authenticator, tokens, authMiddleware, cfg.IsRelease(), audit)
	routes.SetupAdminRoutes(router, routes.AdminDeps{
		Store:   store,
		Users:   services.NewUsersService(store, cfg.BcryptCost),
		Blog:    blog,
		Auditor: auditor,
		Queue:   taskClient,
	}, authMiddleware, audit)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "mode", cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	auditor.Wait()

	logger.Info("Server exited")
}
