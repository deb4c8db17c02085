package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"examflow/internal/auth/jwt"
	"examflow/internal/blob"
	"examflow/internal/directory"
	directoryhandler "examflow/internal/directory/handler"
	"examflow/internal/feedback"
	"examflow/internal/notification"
	notificationhandler "examflow/internal/notification/handler"
	"examflow/internal/platform/config"
	"examflow/internal/platform/httpserver"
	"examflow/internal/platform/logger"
	"examflow/internal/platform/metrics"
	"examflow/internal/platform/middleware"
	platformredis "examflow/internal/platform/redis"
	"examflow/internal/version"
	workflowhandler "examflow/internal/workflow/handler"
	workflowservice "examflow/internal/workflow/service"
	workflowstore "examflow/internal/workflow/store"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Stores: Postgres when a DSN is configured, in-memory otherwise.
	var (
		docStore      workflowservice.DocumentStore
		versionStore  workflowservice.VersionStore
		feedbackStore workflowservice.FeedbackStore
		dirStore      directory.Store
		noteStore     notification.Store
		txRunner      workflowservice.TxRunner
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		docStore = workflowstore.NewPostgres(db)
		versionStore = version.NewPostgres(db)
		feedbackStore = feedback.NewPostgres(db)
		dirStore = directory.NewPostgres(db)
		noteStore = notification.NewPostgres(db)
		txRunner = &postgresTxRunner{db: db}
		log.Info("using postgres stores")
	} else {
		docStore = workflowstore.NewInMemory()
		versionStore = version.NewInMemory()
		feedbackStore = feedback.NewInMemory()
		dirStore = directory.NewInMemory()
		noteStore = notification.NewInMemory()
		log.Info("using in-memory stores")
	}

	dispatcherOpts := []notification.DispatcherOption{
		notification.WithLogger(log),
		notification.WithMetrics(m),
	}
	redisClient, err := platformredis.New(config.DefaultRedisConfig(cfg.RedisURL))
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		dispatcherOpts = append(dispatcherOpts,
			notification.WithUnreadCache(notification.NewRedisUnreadCache(redisClient.Client)))
		log.Info("unread counter cache enabled")
	}
	dispatcher := notification.NewDispatcher(noteStore, dispatcherOpts...)

	var sink notification.Sink = notification.NewLogSink(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := notification.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("kafka notification sink enabled", slog.String("topic", cfg.KafkaTopic))
	}
	worker := notification.NewWorker(sink, dispatcher.Queue(),
		notification.WithWorkerLogger(log),
		notification.WithWorkerMetrics(m))

	dirService := directory.NewService(dirStore, directory.WithLogger(log))

	engineOpts := []workflowservice.Option{
		workflowservice.WithNotifier(dispatcher),
		workflowservice.WithLogger(log),
		workflowservice.WithMetrics(m),
	}
	if txRunner != nil {
		engineOpts = append(engineOpts, workflowservice.WithTxRunner(txRunner))
	}
	engine := workflowservice.NewService(docStore, versionStore, feedbackStore, dirService, engineOpts...)

	jwtService := jwt.NewService(cfg.JWTSigningKey, "examflow")

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())

	wfHandler := workflowhandler.New(engine, blob.NewInMemory(), log)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtService, log))
		wfHandler.RegisterUploads(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			wfHandler.Register(r)
			notificationhandler.New(dispatcher, log).Register(r)
			directoryhandler.New(dirService, log).Register(r)
		})
	})

	server := httpserver.New(cfg.Addr, router)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := worker.Run(gCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
