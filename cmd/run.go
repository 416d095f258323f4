package cmd

import (
	"context"
	"fmt"
	"time"

	"cardroom/api"
	"cardroom/application"
	"cardroom/config"
	"cardroom/database"
	"cardroom/domain/interfaces"
	"cardroom/events"
	"cardroom/infrastructure"
	"cardroom/infrastructure/observability"
	"cardroom/infrastructure/rules"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging applies the configured level and formatter to logrus
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warnf("Invalid LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// ConnectNATS connects to NATS when servers are configured, or returns nil
func ConnectNATS(ctx context.Context, cfg *config.Config) (*infrastructure.NATSClient, error) {
	if !cfg.UseNATS() {
		return nil, nil
	}

	log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
	client := infrastructure.NewNATSClient(cfg.NATSServers)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("NATS connection established successfully")
	return client, nil
}

// NewRulesEngine selects the showdown engine named by RULES_ENGINE
func NewRulesEngine(cfg *config.Config, natsClient *infrastructure.NATSClient) (interfaces.RulesEngine, error) {
	switch cfg.RulesEngine {
	case "nats":
		if natsClient == nil {
			return nil, fmt.Errorf("RULES_ENGINE=nats requires NATS_SERVERS")
		}
		log.WithField("subject", cfg.RulesSubject).Info("Using remote rules engine")
		return rules.NewNATSRulesEngine(natsClient, cfg.RulesSubject, cfg.RulesRequestTimeout), nil
	default:
		log.Info("Using local showdown rules engine")
		return rules.NewShowdownEngine(), nil
	}
}

// StartTableCommandConsumer ensures the command stream and subscribes the
// coordinator to hand commands from game front ends
func StartTableCommandConsumer(cfg *config.Config, natsClient *infrastructure.NATSClient, commands infrastructure.TableCommands) error {
	if err := natsClient.EnsureStream(infrastructure.TableCommandStream, infrastructure.TableCommandSubjects()); err != nil {
		return fmt.Errorf("failed to ensure table command stream: %w", err)
	}
	consumer := infrastructure.NewTableCommandConsumer(commands, cfg.CommandTimeout)
	if err := consumer.Start(natsClient); err != nil {
		return fmt.Errorf("failed to start table command consumer: %w", err)
	}
	return nil
}

// Run initializes and starts the card room service
func Run(ctx context.Context) error {
	// Load configuration
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.WithField("environment", cfg.Environment).Info("Starting cardroom...")

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Metrics are optional; the provider stays disabled on failure
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		log.WithError(err).Warn("Failed to initialize metrics, continuing without them")
	}

	natsClient, err := ConnectNATS(ctx, cfg)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer natsClient.Close()
	}

	// Initialize event publishing
	var publisher interfaces.EventPublisher
	if natsClient != nil {
		natsPublisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper())
		if err := natsPublisher.EnsureDomainEventStream(natsClient); err != nil {
			return fmt.Errorf("failed to ensure domain event stream: %w", err)
		}
		publisher = natsPublisher
		log.Info("Publishing domain events to NATS JetStream")
	} else {
		publisher = events.NewBus()
		log.Info("NATS_SERVERS not set, using the in-process event bus")
	}

	uowFactory := infrastructure.NewUnitOfWorkFactory(db, publisher)
	application.RegisterApplicationSubscriptions(uowFactory)

	rulesEngine, err := NewRulesEngine(cfg, natsClient)
	if err != nil {
		return err
	}

	// Application services
	build := application.NewServiceBuilder(rulesEngine)
	dispatcher := application.NewTableDispatcher(cfg.DispatcherIdleTimeout, cfg.DispatcherMailboxDepth)
	coordinator := application.NewTableCoordinator(uowFactory, dispatcher, build)
	router := application.NewWaitlistRouter(uowFactory, dispatcher, build)
	sweeper := application.NewTimeoutSweeper(uowFactory, dispatcher, build)
	invites := application.NewInviteSweeper(uowFactory, build)

	if natsClient != nil {
		if err := StartTableCommandConsumer(cfg, natsClient, coordinator); err != nil {
			return err
		}
	}

	scheduler := application.NewScheduler(router, sweeper, invites)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	debugAPI := api.NewServer(cfg.DebugAPIPort, coordinator, router, sweeper, invites)
	debugAPI.Start()

	log.Infof("Cardroom is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	log.Info("Shutting down cardroom...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := debugAPI.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down debug API")
	}

	// Stop scheduling before draining mailboxes so no job submits into a closed dispatcher
	scheduler.Stop()
	dispatcher.Close()

	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}

	log.Info("Shutdown completed")
	return nil
}
