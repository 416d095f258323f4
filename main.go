package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"cardroom/application"
	"cardroom/cmd"
	"cardroom/cmd/debug"
	"cardroom/config"
	"cardroom/database"
	"cardroom/domain/entities"
	"cardroom/infrastructure"
	"cardroom/infrastructure/rules"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Check if invoked as debug-shell (via symlink)
	if filepath.Base(os.Args[0]) == "debug-shell" {
		if err := runDebugMode(); err != nil {
			log.Fatal("Debug mode error: ", err)
		}
		return
	}

	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "migrate":
			err = handleMigrationCommand()
		case "debug":
			err = runDebugMode()
		case "adjust-balance":
			err = handleBalanceAdjustment()
		case "rules-server":
			err = runRulesServer(signalContext())
		default:
			err = fmt.Errorf("unknown command %q (expected migrate, debug, adjust-balance or rules-server)", os.Args[1])
		}
		if err != nil {
			log.Fatalf("%s error: %v", os.Args[1], err)
		}
		return
	}

	// Normal service operation
	if err := cmd.Run(signalContext()); err != nil {
		log.Fatal("Application error: ", err)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	return ctx
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: cardroom migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

// handleBalanceAdjustment records an admin_adjustment transaction. The
// idempotency key is required so a repeated backfill is applied once.
func handleBalanceAdjustment() error {
	if len(os.Args) < 7 {
		return fmt.Errorf("usage: cardroom adjust-balance <user_id> <play|real> <delta> <idempotency_key> <reason...>")
	}
	userID, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	currency, err := entities.ParseCurrency(os.Args[3])
	if err != nil {
		return err
	}
	delta, err := strconv.ParseInt(os.Args[4], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid delta: %w", err)
	}
	idempotencyKey := os.Args[5]
	reason := strings.Join(os.Args[6:], " ")

	ctx := context.Background()
	cfg := config.Get()
	cmd.ConfigureLogging(cfg)

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Events from admin commands are not delivered anywhere
	uowFactory := infrastructure.NewUnitOfWorkFactory(db, infrastructure.NewNoopEventPublisher())
	build := application.NewServiceBuilder(rules.NewShowdownEngine())

	tx, err := application.AdjustBalance(ctx, uowFactory, build, userID, currency, delta, idempotencyKey, reason)
	if err != nil {
		return err
	}

	fmt.Printf("Transaction %d applied: %s balance for user %d is now %d\n", tx.ID, currency, userID, tx.BalanceAfter)
	return nil
}

// runDebugMode starts the debug shell connected to the running service's debug API
func runDebugMode() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Get()
	shell := debug.NewShell(debug.NewDebugClient(cfg.DebugAPIPort), os.Stdin)
	if err := shell.Connect(); err != nil {
		return err
	}
	return shell.Run(ctx)
}

// runRulesServer answers settlement requests for processes configured with RULES_ENGINE=nats
func runRulesServer(ctx context.Context) error {
	cfg := config.Get()
	cmd.ConfigureLogging(cfg)

	natsClient, err := cmd.ConnectNATS(ctx, cfg)
	if err != nil {
		return err
	}
	if natsClient == nil {
		return fmt.Errorf("rules-server requires NATS_SERVERS")
	}
	defer natsClient.Close()

	if err := rules.Serve(natsClient, cfg.RulesSubject, rules.NewShowdownEngine(), cfg.RulesRequestTimeout); err != nil {
		return fmt.Errorf("failed to serve rules engine: %w", err)
	}
	log.WithField("subject", cfg.RulesSubject).Info("Rules server is running")

	<-ctx.Done()
	log.Info("Rules server stopped")
	return nil
}
