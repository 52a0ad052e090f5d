package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	directoryrepo "github.com/Ramsey-B/fern/internal/repositories/directory"
	entityrepo "github.com/Ramsey-B/fern/internal/repositories/entity"
	relationshiprepo "github.com/Ramsey-B/fern/internal/repositories/relationship"
	entityservice "github.com/Ramsey-B/fern/internal/services/entity"
	relationshipservice "github.com/Ramsey-B/fern/internal/services/relationship"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/integrity"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/scope"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/traversal"
)

func main() {
	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := buildZapLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("fern exited with error")
		os.Exit(1)
	}
}

func buildZapLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.PrettyLogs {
		return zap.NewDevelopment()
	}

	zapCfg := zap.NewProductionConfig()
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = level
	}
	return zapCfg.Build()
}

func run(cfg *config.Config, logger ectologger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, tracing.SetupConfig{
		ServiceName:  cfg.AppName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPProtocol: cfg.OTLPProtocol,
		Insecure:     cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)
	sqlxDB, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	db := database.NewDatabaseInstance(sqlxDB, logger)

	driver, err := postgres.WithInstance(sqlxDB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	locker := redis.NewLocker(redisClient, cfg.RedisKeyPrefix)

	var graphClient *graph.Client
	var graphEntities *graph.EntityService
	var graphRelationships *graph.RelationshipService
	if cfg.GraphDBEnabled {
		graphClient, err = graph.NewClient(graph.Config{
			Host:     cfg.GraphDBHost,
			Port:     cfg.GraphDBPort,
			Username: cfg.GraphDBUser,
			Password: cfg.GraphDBPassword,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to graph database: %w", err)
		}
		graphEntities = graph.NewEntityService(graphClient, logger)
		graphRelationships = graph.NewRelationshipService(graphClient, logger)
	}

	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaEventsTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
	}
	emitter := events.NewEmitter(producer, logger)

	scopes := scope.NewService()
	entities := entityrepo.NewRepository(db, scopes, logger)
	relationships := relationshiprepo.NewRepository(db, logger)
	dir := directoryrepo.NewRepository(db, logger)

	entitySvc := entityservice.NewService(logger, entities, relationships, scopes, emitter, graphEntities)
	relationshipSvc := relationshipservice.NewService(logger, relationships, entities, scopes, emitter, graphRelationships)

	engineCfg := traversal.DefaultConfig()
	engineCfg.DefaultMaxHops = cfg.TraversalDefaultMaxHops
	engineCfg.DefaultMaxEntities = cfg.TraversalDefaultMaxEntities
	engine := traversal.NewEngine(logger, entities, relationships, scopes, engineCfg)

	enforcer := integrity.NewEnforcer(logger, dir, entities, relationships, expressions.NewEvaluator(), integrity.EnforcerConfig{
		AgentIDPaths: cfg.IntegrityAgentIDPaths,
	})

	if err := registerDependencies(containerDeps{
		logger:          logger,
		db:              db,
		entities:        entities,
		relationships:   relationships,
		directory:       dir,
		scopes:          scopes,
		entitySvc:       entitySvc,
		relationshipSvc: relationshipSvc,
		engine:          engine,
		enforcer:        enforcer,
		locker:          locker,
		graphEntities:   graphEntities,
	}); err != nil {
		return fmt.Errorf("failed to register dependencies: %w", err)
	}

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaWorkSessionTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, workSessionHandler(enforcer, locker, logger))
	}

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(dependency{
		name:  "postgres",
		start: func(ctx context.Context) error { return sqlxDB.PingContext(ctx) },
		stop:  func(context.Context) error { return sqlxDB.Close() },
	})
	boot.AddDependency(dependency{
		name:  "redis",
		start: redisClient.Ping,
		stop:  func(context.Context) error { return redisClient.Close() },
	})
	if graphClient != nil {
		boot.AddDependency(dependency{
			name:  "memgraph",
			start: graphClient.VerifyConnectivity,
			stop:  graphClient.Close,
		})
	}
	if producer != nil {
		boot.AddDependency(dependency{
			name: "kafka-producer",
			stop: func(context.Context) error { return producer.Close() },
		})
	}
	if consumer != nil {
		boot.AddDependency(dependency{
			name:      "kafka-consumer",
			dependsOn: []string{"postgres", "redis"},
			start:     consumer.Start,
			stop:      func(context.Context) error { return consumer.Stop() },
		})
	}

	if err := boot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dependencies: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.HTTPErrorHandler = middleware.Error(logger)

	routes.Register(e, engine, logger)

	checker := health.NewChecker(sqlxDB, redisClient.Redis(), graphClient, cfg.Version)
	checker.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server stopped")
		}
	}()

	checker.SetReady(true)
	logger.WithFields(map[string]any{"port": cfg.Port, "version": cfg.Version}).Info("fern is ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	checker.SetReady(false)
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to shut down server cleanly")
	}

	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to stop dependencies cleanly")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to flush traces")
	}

	return nil
}

// workSessionHandler runs the milestone integrity sweep for a domain when
// its work session completes. The sweep shares the repair lock with the fix
// endpoint; when another pass already holds it the event is dropped, since
// the running pass covers the same milestones and the sweep is idempotent.
func workSessionHandler(enforcer *integrity.Enforcer, locker *redis.Locker, logger ectologger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.IncomingMessage) error {
		event := msg.WorkSessionEvent
		if event == nil || event.EventType != kafka.EventTypeWorkSessionCompleted {
			return nil
		}

		log := logger.WithContext(ctx).WithFields(map[string]any{
			"domain_id":       event.DomainID,
			"work_session_id": event.WorkSessionID,
		})
		log.Info("Work session completed, running milestone integrity pass")

		err := locker.WithLock(ctx, fmt.Sprintf("integrity:fix:%s", event.DomainID), 5*time.Minute, func() error {
			result, err := enforcer.Fix(ctx, models.FixIntegrityRequest{
				Types:    []string{models.FixTypeMilestoneScopes, models.FixTypeMilestoneRelationships},
				DomainID: event.DomainID,
			})
			if err != nil {
				return err
			}

			log.WithFields(map[string]any{
				"fixed":  len(result.Fixed),
				"errors": len(result.Errors),
			}).Info("Milestone integrity pass complete")
			return nil
		})
		if errors.Is(err, redis.ErrLockNotAcquired) {
			log.Info("Skipping milestone pass, another repair holds the domain lock")
			return nil
		}
		return err
	}
}

// dependency adapts a start/stop pair to the startup orchestrator.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d dependency) GetName() string     { return d.name }
func (d dependency) DependsOn() []string { return d.dependsOn }

func (d dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}
