package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"projectflow/config"
	"projectflow/internal/derive"
	"projectflow/internal/handler"
	"projectflow/internal/httpserver"
	"projectflow/internal/notify"
	"projectflow/internal/repository"
	"projectflow/internal/workflow"
	"projectflow/pkg/db"
	"projectflow/pkg/logger"
	"projectflow/pkg/mq"
	"projectflow/pkg/outbox"
	redisclient "projectflow/pkg/redis"
	"projectflow/pkg/util"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("", "config")
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()

	log.Info("Starting projectflow server...",
		zap.String("env", cfg.Env),
		zap.String("store", cfg.Store),
		zap.String("port", cfg.Server.Port),
	)
	if cfg.JWT.Secret == "" {
		log.Fatal("jwt.secret is required (set JWT_SECRET)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ready := map[string]httpserver.Check{}

	// Store
	var (
		store    repository.Store
		activity repository.ActivityStore
		pool     *pgxpool.Pool
	)
	switch cfg.Store {
	case config.StoreMemory:
		mem := repository.NewMemory()
		store, activity = mem, mem
		log.Warn("Using in-memory store, data is lost on restart")
	default:
		log.Info("Initializing database connection...")
		pool, err = db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			log.Fatal("Failed to init DB", zap.Error(err))
		}
		defer pool.Close()
		version, err := repository.Migrate(ctx, pool, log)
		if err != nil {
			log.Fatal("Failed to migrate schema", zap.Error(err))
		}
		log.Info("Database connection established", zap.Int("schema_version", version))

		pg := repository.NewPostgres(pool, log)
		store, activity = repository.NewGuarded(pg, cfg.Breaker, log), pg
	}
	ready["store"] = store.Ping

	// Redis (Idempotency-Key)
	var idem httpserver.OnceGuard
	if cfg.Redis.Addr != "" {
		rdb := redisclient.NewRedisClient(cfg.Redis)
		defer rdb.Close()
		if err := redisclient.Ping(ctx, rdb); err != nil {
			log.Warn("Redis not reachable, idempotency keys are not enforced until it is", zap.Error(err))
		}
		idem = util.NewDeduperWithLogger(rdb, cfg.IdempotencyTTL(), log)
		ready["redis"] = func(ctx context.Context) error { return redisclient.Ping(ctx, rdb) }
	}

	// MQ publisher（事件发布失败不影响业务）
	var (
		events    workflow.Publisher
		publisher *mq.Publisher
	)
	if cfg.MQ.URL != "" {
		publisher, err = mq.NewPublisher(cfg.MQ.URL, "projectflow-server")
		if err != nil {
			log.Warn("MQ not reachable, workflow events go to the outbox only", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
			events = publisher
			ready["mq"] = func(context.Context) error {
				if !publisher.IsConnected() {
					return errors.New("mq connection closed")
				}
				return nil
			}
		}
	}

	// Outbox: 发布失败的事件落库，由 Dispatcher 重发
	if pool != nil && cfg.MQ.URL != "" {
		box := outbox.NewRepository(pool)
		var direct outbox.Publisher
		if publisher != nil {
			direct = publisher
			dispatcher := outbox.NewDispatcher(box, publisher, log).
				WithInterval(cfg.Outbox.Interval).
				WithMaxRetries(cfg.Outbox.MaxRetries).
				WithBatchSize(cfg.Outbox.BatchSize)
			go dispatcher.Start(ctx)
		}
		events = outbox.NewSpool(direct, box, log)
	}

	position := notify.Position(cfg.Notify.DefaultPosition)
	dashboard := derive.DashboardOptions{
		RecentLimit:   cfg.Workflow.RecentProjects,
		UpcomingLimit: cfg.Workflow.UpcomingTasks,
		UpcomingDays:  cfg.Workflow.UpcomingDays,
	}
	sessions := workflow.NewSessions(func(owner string) *workflow.Controller {
		q := notify.NewQueue(
			notify.WithDefaults(cfg.Notify.DefaultDuration, position),
			notify.WithLogger(log.With(zap.String("owner_id", owner))),
		)
		opts := []workflow.Option{
			workflow.WithLogger(log),
			workflow.WithDashboardOptions(dashboard),
			workflow.WithUpcomingDays(cfg.Workflow.UpcomingDays),
		}
		if events != nil {
			opts = append(opts, workflow.WithEvents(events))
		}
		return workflow.New(store, q, owner, opts...)
	})
	defer sessions.Close()

	notifications := handler.NewNotificationHandler(sessions, log)
	router := httpserver.NewRouter(httpserver.Deps{
		Workflow:      handler.NewWorkflowHandler(sessions, activity, log),
		Notifications: notifications,
		JWTSecret:     cfg.JWT.Secret,
		Idempotency:   idem,
		Ready:         ready,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	// SSE 长连接不会因 Shutdown 自动断开
	srv.RegisterOnShutdown(notifications.Close)

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	<-ctx.Done()
	log.Info("Shutting down projectflow server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("projectflow server shutdown complete", zap.Int("sessions", sessions.Len()))
}
