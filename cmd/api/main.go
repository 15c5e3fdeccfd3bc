package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/announce-service/internal/api/http"
	"github.com/spec-kit/announce-service/internal/api/http/handlers"
	"github.com/spec-kit/announce-service/internal/auth"
	"github.com/spec-kit/announce-service/internal/config"
	"github.com/spec-kit/announce-service/internal/delivery/telegram"
	"github.com/spec-kit/announce-service/internal/dispatch"
	"github.com/spec-kit/announce-service/internal/events"
	"github.com/spec-kit/announce-service/internal/lifecycle"
	"github.com/spec-kit/announce-service/internal/locker"
	"github.com/spec-kit/announce-service/internal/observability"
	"github.com/spec-kit/announce-service/internal/persistence"
	"github.com/spec-kit/announce-service/internal/repository"
	"github.com/spec-kit/announce-service/internal/seed"
	"github.com/spec-kit/announce-service/internal/service"
	"github.com/spec-kit/announce-service/internal/worker"
)

func main() {
	flags := pflag.NewFlagSet("announce-api", pflag.ContinueOnError)
	envFile := flags.String("env-file", "", "dotenv file to load before reading the environment")
	seedFile := flags.String("seed", "", "YAML file with users, chats and API keys to create on start")
	migrate := flags.Bool("migrate", true, "apply SQL migrations when the postgres store is used")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("failed to parse flags: %v", err)
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if flags.Changed("migrate") {
		cfg.Postgres.RunMigrations = *migrate
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, pingers, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	redis := persistence.NewRedis(cfg.Redis, logger)
	var ticketLocks locker.Locker = locker.NewLocalLocker()
	if redis != nil {
		defer redis.Close()
		ticketLocks = locker.NewRedisLocker(redis.Client, "announce:lock:")
		pingers["redis"] = redis
	}

	dispatcher := events.NewInMemoryDispatcher()
	var forwarders []worker.Forwarder
	if cfg.MQTT.Broker != "" {
		bridge, err := events.NewMQTTBridge(cfg.MQTT, logger)
		if err != nil {
			logger.Fatal("failed to start mqtt bridge", zap.Error(err))
		}
		defer bridge.Close()
		forwarders = append(forwarders, bridge)
	}

	bot, err := telegram.NewBot(cfg.Telegram)
	if err != nil {
		logger.Fatal("failed to init telegram bot", zap.Error(err))
	}
	channel := telegram.NewChannel(bot)
	executor := dispatch.NewExecutor(channel, dispatch.Config{
		BatchSize:   cfg.Dispatch.BatchSize,
		BatchPause:  cfg.Dispatch.BatchPause,
		CallTimeout: cfg.Dispatch.CallTimeout,
	}, logger)

	metrics := observability.NewMetrics()
	userService := service.NewUserService(store.Users)
	chatService := service.NewChatService(service.ChatDependencies{
		ChatRepo:   store.Chats,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: store.Tickets,
		UserRepo:   store.Users,
		Engine:     lifecycle.NewEngine(store.Tickets),
		Executor:   executor,
		Chats:      chatService,
		Locker:     ticketLocks,
		LockTTL:    cfg.Redis.LockTTL,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{APIKeyRepo: store.APIKeys})
	notificationService := service.NewNotificationService(dispatcher, channel, cfg.Telegram.ReviewChatID, logger)
	worker.StartNotificationWorker(dispatcher, notificationService, logger, forwarders...)

	if *seedFile != "" {
		if err := applySeed(ctx, *seedFile, seed.Services{Users: userService, Chats: chatService, Auth: authService}, logger); err != nil {
			logger.Fatal("failed to apply seed", zap.Error(err))
		}
	}

	if cfg.Reminder.Enabled {
		reminder, err := worker.NewPendingReminder(ticketService, notificationService, cfg.Reminder, logger)
		if err != nil {
			logger.Fatal("failed to configure reminder", zap.Error(err))
		}
		if err := reminder.Start(ctx); err != nil {
			logger.Fatal("failed to start reminder", zap.Error(err))
		}
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			reminder.Stop(stopCtx)
		}()
	}

	if cfg.Telegram.Token != "" {
		membership := worker.NewMembershipWorker(bot, chatService, userService, logger)
		membership.Start()
		defer membership.Stop()
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set; deliveries will fail and membership tracking is off")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pingers, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Chats:          handlers.NewChatsHandler(chatService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), authService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, map[string]handlers.Pinger, func(), error) {
	pingers := map[string]handlers.Pinger{}
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return repository.Store{}, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return repository.Store{}, nil, nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pingers["postgres"] = pg
		return repository.NewPostgresStore(pg.PoolHandle()), pingers, pg.Close, nil
	case config.StoreDriverMongo:
		mg, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			return repository.Store{}, nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := repository.EnsureMongoIndexes(ctx, mg.DB); err != nil {
			mg.Close(context.Background())
			return repository.Store{}, nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		pingers["mongo"] = mg
		return repository.NewMongoStore(mg.DB), pingers, func() { mg.Close(context.Background()) }, nil
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), pingers, func() {}, nil
	}
}

func applySeed(ctx context.Context, path string, svc seed.Services, logger *zap.Logger) error {
	f, err := seed.Load(path)
	if err != nil {
		return err
	}
	res, err := seed.Apply(ctx, f, svc, logger)
	if err != nil {
		return err
	}
	logger.Info("seed applied", zap.String("file", path), zap.Int("created", res.Created), zap.Int("skipped", res.Skipped))
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
