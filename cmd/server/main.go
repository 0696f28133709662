package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"voicefeedback/internal/cache"
	"voicefeedback/internal/config"
	"voicefeedback/internal/observability"
	"voicefeedback/internal/platform/logger"
	"voicefeedback/internal/repository"
	"voicefeedback/internal/service"
	"voicefeedback/internal/transport/rest"
	"voicefeedback/internal/transport/ws"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	shutdownTracing := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "question-selection",
		Environment: cfg.Tracing.Environment,
		Version:     version,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("failed to ping MongoDB", "error", err)
	}
	log.Info("connected to MongoDB", "database", cfg.MongoDatabase)

	db := mongoClient.Database(cfg.MongoDatabase)

	// Initialize repositories
	questionRepo := repository.NewQuestionRepo(db)
	triggerRepo := repository.NewTriggerRepo(db)
	ruleRepo := repository.NewRuleRepo(db)
	activationRepo := repository.NewActivationRepo(db)
	if err := activationRepo.EnsureIndexes(pingCtx); err != nil {
		log.Warn("activation log indexes not created", "error", err)
	}

	// Frequency counters, memoized plans and customer sequences
	var (
		frequency cache.FrequencyStore
		combos    cache.CombinationCache
		sequence  cache.SequenceCounter
	)
	if strings.EqualFold(cfg.Engine.Backend, "memory") {
		log.Warn("using in-process counters; frequency limits are not shared between instances")
		frequency = cache.NewMemoryFrequencyStore()
		combos = cache.NewMemoryCombinationCache()
		sequence = cache.NewMemorySequenceCounter()
	} else {
		// Remove redis:// prefix if present
		redisAddr := strings.TrimPrefix(cfg.RedisAddr, "redis://")
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()

		if _, err := rdb.Ping(pingCtx).Result(); err != nil {
			log.Fatal("failed to ping Redis", "addr", redisAddr, "error", err)
		}
		log.Info("connected to Redis", "addr", redisAddr)

		frequency = cache.NewFrequencyStore(rdb)
		combos = cache.NewCombinationCache(rdb)
		sequence = cache.NewSequenceCounter(rdb)
	}

	// Initialize WebSocket hub
	wsHub := ws.NewHub(log)
	defer wsHub.Close()

	// Initialize services
	authSvc := service.NewAuthService(cfg.ClientID, cfg.ClientSecret, cfg.JWTSecret)

	activations := service.NewActivationLogger(activationRepo, log, cfg.Engine.LogQueueSize)
	// Inject broadcaster (wsHub implements service.Broadcaster)
	activations.SetBroadcaster(wsHub)
	activations.Start(ctx)

	selectionSvc := service.NewSelectionService(
		questionRepo, triggerRepo, ruleRepo,
		frequency, combos, sequence,
		activations,
		cfg.Engine,
		log,
	)

	sweeper := service.NewRetentionSweeper(activationRepo, cfg.Retention.Days, log)
	if err := sweeper.Start(cfg.Retention.Schedule); err != nil {
		log.Fatal("invalid retention schedule", "schedule", cfg.Retention.Schedule, "error", err)
	}

	// Create router with container
	router := rest.NewRouter(&rest.Container{
		AuthService:      authSvc,
		SelectionService: selectionSvc,
		ActivationLogger: activations,
		WSHub:            wsHub,
		RequestTimeout:   time.Duration(cfg.Engine.RequestTimeout) * time.Millisecond,
		Log:              log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "backend", cfg.Engine.Backend, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe failed", "error", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	sweeper.Stop()
	// drain queued activation writes before the database goes away
	activations.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "error", err)
	}

	log.Info("server exited")
}
