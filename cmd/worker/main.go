package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"projectflow/config"
	mqcontracts "projectflow/contracts/mq"
	"projectflow/internal/mqhandler"
	"projectflow/internal/repository"
	"projectflow/pkg/db"
	"projectflow/pkg/logger"
	"projectflow/pkg/mq"
	redisclient "projectflow/pkg/redis"
	"projectflow/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// retryCounterTTL bounds how long a failing event's retry count is kept.
const retryCounterTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load("", "config")
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()

	log.Info("Starting projectflow worker...",
		zap.String("env", cfg.Env),
		zap.String("queue", cfg.MQ.Queue),
		zap.Int("prefetch", cfg.MQ.Prefetch),
	)
	if cfg.Store != config.StorePostgres {
		log.Fatal("The activity worker needs the postgres store", zap.String("store", cfg.Store))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	pool, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer pool.Close()
	if _, err := repository.Migrate(ctx, pool, log); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}
	activity := repository.NewActivityRepository(pool, log)

	// Redis: 去重 + 重试计数
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	if err := redisclient.Ping(ctx, rdb); err != nil {
		log.Fatal("Failed to reach redis", zap.Error(err))
	}
	deduper := util.NewDeduperWithLogger(rdb, cfg.IdempotencyTTL(), log)
	retries := util.NewRetryCounter(rdb, retryCounterTTL)

	// DLQ publisher
	dlq, err := mq.NewPublisher(cfg.MQ.URL, "projectflow-worker")
	if err != nil {
		log.Fatal("Failed to init DLQ publisher", zap.Error(err))
	}
	defer dlq.Close()

	activityHandler := mqhandler.NewActivityHandler(activity, dlq, deduper, retries, log).
		WithMaxRetries(cfg.Worker.MaxRetries)

	log.Info("Initializing MQ consumer...",
		zap.String("queue", cfg.MQ.Queue),
		zap.String("binding", mqcontracts.WorkflowBinding),
	)
	consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Queue, mqcontracts.WorkflowBinding, cfg.MQ.Prefetch, log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(activityHandler.Handle)

	// Metrics
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	srv := &http.Server{Addr: ":" + cfg.Worker.MetricsPort, Handler: router}
	go func() {
		log.Info("Metrics server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	log.Info("Worker is ready to process messages")
	if err := consumer.StartConsuming(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Consumer stopped with error", zap.Error(err))
	}

	log.Info("Shutting down projectflow worker gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Metrics server shutdown error", zap.Error(err))
	}
	log.Info("projectflow worker shutdown complete")
}
