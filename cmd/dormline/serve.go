package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/dormline/dormline/internal/channel"
	"github.com/dormline/dormline/internal/channel/adapters/whatsapp"
	"github.com/dormline/dormline/internal/classify"
	"github.com/dormline/dormline/internal/config"
	"github.com/dormline/dormline/internal/conversation"
	"github.com/dormline/dormline/internal/db"
	"github.com/dormline/dormline/internal/dedupe"
	"github.com/dormline/dormline/internal/events"
	"github.com/dormline/dormline/internal/handlers"
	"github.com/dormline/dormline/internal/inbound"
	"github.com/dormline/dormline/internal/listings"
	"github.com/dormline/dormline/internal/logger"
	"github.com/dormline/dormline/internal/media"
	"github.com/dormline/dormline/internal/media/providers/localfs"
	medminio "github.com/dormline/dormline/internal/media/providers/minio"
	"github.com/dormline/dormline/internal/schedule"
	"github.com/dormline/dormline/internal/server"
	"github.com/dormline/dormline/internal/subscriptions"
	"github.com/dormline/dormline/internal/users"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			users.NewStore,
			listings.NewStore,
			subscriptions.NewStore,
			provideClassifier,
			provideMediaService,
			provideWhatsAppAdapter,
			provideChannelRegistry,
			provideMatcher,
			provideEventsPublisher,
			provideAssembler,
			provideEngine,
			provideDeduper,
			provideProcessor,
			provideWebhookHandler,
			handlers.NewPingHandler,
			provideAuthHandler,
			handlers.NewListingsHandler,
			provideScheduler,
			provideServer,
		),
		fx.Invoke(
			startScheduler,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideClassifier(log *slog.Logger, cfg config.Config) *classify.Service {
	var primary classify.Classifier
	if model := classify.NewModelClassifier(cfg.Classifier); model.Configured() {
		primary = model
	}
	return classify.NewService(log, primary, classify.NewKeywordClassifier())
}

func provideMediaService(log *slog.Logger, cfg config.Config) (*media.Service, error) {
	var provider media.StorageProvider
	switch cfg.Media.Provider {
	case "minio":
		p, err := medminio.New(
			context.Background(),
			cfg.Media.Minio.Endpoint,
			cfg.Media.Minio.AccessKey,
			cfg.Media.Minio.SecretKey,
			cfg.Media.Minio.Bucket,
			cfg.Media.Minio.UseSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("init minio media provider: %w", err)
		}
		provider = p
	default:
		p, err := localfs.New(cfg.Media.DataRoot, cfg.Media.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("init local media provider: %w", err)
		}
		provider = p
	}
	return media.NewService(log, provider), nil
}

func provideWhatsAppAdapter(log *slog.Logger, cfg config.Config) *whatsapp.Adapter {
	return whatsapp.New(log, cfg.WhatsApp)
}

func provideChannelRegistry(log *slog.Logger, adapter *whatsapp.Adapter) *channel.Registry {
	registry := channel.NewRegistry()
	registry.MustRegister(adapter)
	log.Info("channels registered", slog.Any("types", registry.Types()))
	return registry
}

func provideMatcher(log *slog.Logger, store *subscriptions.Store, adapter *whatsapp.Adapter) *subscriptions.Matcher {
	return subscriptions.NewMatcher(log, store, adapter)
}

// provideEventsPublisher is nil when no NATS URL is configured; the assembler
// then skips the publish event.
func provideEventsPublisher(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*events.Publisher, error) {
	if cfg.NATS.URL == "" {
		return nil, nil
	}
	conn, err := events.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error {
		conn.Close()
		return nil
	}})
	return events.NewPublisher(log, conn, cfg.NATS.Subject), nil
}

func provideAssembler(log *slog.Logger, store *listings.Store, matcher *subscriptions.Matcher, publisher *events.Publisher) *listings.Assembler {
	var eventsPublisher listings.Publisher
	if publisher != nil {
		eventsPublisher = publisher
	}
	return listings.NewAssembler(log, store, matcher, eventsPublisher)
}

func provideEngine(log *slog.Logger, userStore *users.Store, listingStore *listings.Store, assembler *listings.Assembler, requestStore *subscriptions.Store, classifier *classify.Service) *conversation.Engine {
	return conversation.NewEngine(log, userStore, listingStore, assembler, requestStore, classifier)
}

// provideDeduper prefers Redis so duplicate webhook deliveries are caught
// across replicas; without Redis a per-process map still catches retries
// hitting the same instance.
func provideDeduper(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) dedupe.Deduper {
	if cfg.Redis.Addr == "" {
		return dedupe.NewMemoryDeduper()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return client.Close() }})
	return dedupe.NewRedisDeduper(log, client)
}

func provideProcessor(log *slog.Logger, engine *conversation.Engine, registry *channel.Registry, mediaService *media.Service, deduper dedupe.Deduper) *inbound.Processor {
	return inbound.NewProcessor(log, engine, registry, mediaService, deduper)
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, processor *inbound.Processor) *whatsapp.WebhookHandler {
	return whatsapp.NewWebhookHandler(log, cfg.WhatsApp, processor)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, cfg.Admin, cfg.Auth)
}

func provideServer(
	log *slog.Logger,
	cfg config.Config,
	pingHandler *handlers.PingHandler,
	authHandler *handlers.AuthHandler,
	listingsHandler *handlers.ListingsHandler,
	webhookHandler *whatsapp.WebhookHandler,
) *server.Server {
	return server.NewServer(log, cfg, pingHandler, authHandler, listingsHandler, webhookHandler)
}

func provideScheduler(log *slog.Logger, listingStore *listings.Store, requestStore *subscriptions.Store, userStore *users.Store) *schedule.Scheduler {
	return schedule.NewScheduler(log, listingStore, requestStore, userStore)
}

func startScheduler(lc fx.Lifecycle, scheduler *schedule.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
