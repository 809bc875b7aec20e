package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/chatrelay-api/internal/config"
	"github.com/phrazzld/chatrelay-api/internal/events"
	"github.com/phrazzld/chatrelay-api/internal/generation"
	"github.com/phrazzld/chatrelay-api/internal/platform/postgres"
	"github.com/phrazzld/chatrelay-api/internal/platform/rabbitmq"
	"github.com/phrazzld/chatrelay-api/internal/platform/redis"
	"github.com/phrazzld/chatrelay-api/internal/pubsub"
	"github.com/phrazzld/chatrelay-api/internal/service"
	"github.com/phrazzld/chatrelay-api/internal/service/auth"
	"github.com/phrazzld/chatrelay-api/internal/store"
	"github.com/phrazzld/chatrelay-api/internal/stream"
	"github.com/phrazzld/chatrelay-api/internal/task"
)

// backends groups the storage, messaging and provider collaborators that
// differ between deployments.
type backends struct {
	conversations store.ConversationStore
	users         store.UserStore
	ledger        store.CreditLedger
	messages      store.MessageStore
	registry      task.Registry
	broker        task.Broker
	adapters      task.AdapterResolver
	multipliers   task.MultiplierSource
}

// application holds the shared dependencies and releases them on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	db    *sql.DB
	redis *goredis.Client
	amqp  *amqp.Connection

	jwtService  auth.JWTService
	taskService service.TaskService
	streams     *stream.Reader
	taskRunner  *task.TaskRunner
}

// newApplication opens the database, Redis and (when selected) RabbitMQ
// connections, builds the provider adapters and wires the task pipeline.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{config: cfg, logger: logger}

	ok := false
	defer func() {
		if !ok {
			app.cleanup()
		}
	}()

	var err error
	app.db, err = postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established")

	app.redis, err = redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	logger.Info("redis connection established", "addr", cfg.Redis.Addr)

	b := backends{
		conversations: postgres.NewConversationStore(app.db, logger),
		users:         postgres.NewUserStore(app.db, logger),
		ledger:        postgres.NewCreditLedger(app.db, logger),
		messages:      redis.NewMessageStore(app.redis),
	}

	ttl := time.Duration(cfg.Task.StatusTTLMinutes) * time.Minute
	switch cfg.Broker.Driver {
	case config.BrokerMemory:
		b.registry = task.NewMemoryRegistry(ttl)
		b.broker = pubsub.NewMemoryBroker(pubsub.DefaultBufferSize, logger)
	case config.BrokerRedis:
		b.registry = redis.NewRegistry(app.redis, ttl)
		b.broker = redis.NewBroker(app.redis, pubsub.DefaultBufferSize, logger)
	case config.BrokerRabbitMQ:
		app.amqp, err = rabbitmq.Dial(cfg.Broker.RabbitMQURL)
		if err != nil {
			return nil, err
		}
		b.registry = redis.NewRegistry(app.redis, ttl)
		b.broker = rabbitmq.NewBroker(app.amqp, 0, logger)
	default:
		return nil, fmt.Errorf("unknown broker driver: %s", cfg.Broker.Driver)
	}
	logger.Info("task broker selected", "driver", cfg.Broker.Driver)

	adapters, err := buildAdapters(ctx, cfg.LLM.Providers, logger)
	if err != nil {
		return nil, err
	}
	b.adapters = adapters

	catalog, err := generation.LoadCatalog(cfg.LLM.CatalogPath)
	if err != nil {
		return nil, err
	}
	b.multipliers = catalog

	if err := app.wire(b); err != nil {
		return nil, err
	}

	ok = true
	logger.Info("application initialized successfully")
	return app, nil
}

// wire builds the task pipeline on top of b and starts the task runner.
func (app *application) wire(b backends) error {
	cfg := app.config

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	factory, err := task.NewExecutorFactory(task.ExecutorDeps{
		Conversations: b.conversations,
		Messages:      b.messages,
		Ledger:        b.ledger,
		Registry:      b.registry,
		Broker:        b.broker,
		Adapters:      b.adapters,
		Multipliers:   b.multipliers,
		TitlePrompt:   cfg.LLM.TitlePrompt,
		Logger:        app.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create task factory: %w", err)
	}

	app.taskRunner = task.NewTaskRunner(task.TaskRunnerConfig{
		WorkerCount:   cfg.Task.WorkerCount,
		QueueSize:     cfg.Task.QueueSize,
		ShutdownGrace: time.Duration(cfg.Task.ShutdownGraceSeconds) * time.Second,
	}, app.logger)
	if err := app.taskRunner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(app.logger)
	emitter.RegisterHandler(task.NewTaskFactoryEventHandler(factory, app.taskRunner, app.logger))

	app.taskService, err = service.NewTaskService(b.conversations, b.users, b.registry, emitter, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create task service: %w", err)
	}

	pacing := time.Duration(cfg.Task.StreamPacingMillis) * time.Millisecond
	app.streams = stream.NewReader(b.registry, b.broker, pacing, app.logger)
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the task runner and closes every open connection.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.amqp != nil {
		if err := app.amqp.Close(); err != nil {
			app.logger.Error("error closing rabbitmq connection", "error", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis connection", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
