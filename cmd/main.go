package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"gatekeeper/directory"
	"gatekeeper/moderation"
	"gatekeeper/platform/memory"
	"gatekeeper/repositories"
	"gatekeeper/runtime"
	"gatekeeper/runtime/workers"
	"gatekeeper/schedule"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the process lifecycle, and
// centralizes error reporting so deferred cleanup always executes
// before the program exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Platform boundary
	// The real chat transport plugs in here; the in-memory adapter
	// keeps the wiring honest until one is configured.
	platform := memory.NewPlatform()
	clock := runtime.SystemClock{}

	// 4. Core components
	domains := config.Domains()
	if domains == nil {
		domains = moderation.DefaultBlockedDomains()
	}
	matcher, err := moderation.NewMatcher(domains)
	if err != nil {
		return fmt.Errorf("blocklist setup failed: %w", err)
	}

	ledger := repositories.NewWarningLedger(db, log)
	dir := directory.New(platform, log, config.IdentityDomain)

	connection := runtime.NewConnectionSupervisor(log, platform, clock, pairingBanner{log: log},
		runtime.SupervisorConfig{
			BaseDelay:   config.ReconnectBaseDelay,
			MaxDelay:    config.ReconnectMaxDelay,
			MaxAttempts: config.MaxReconnectAttempts,
			AuthRetries: config.MaxAuthRetries,
		}, config.IdentityDomain)

	engine := moderation.NewEngine(log, platform, dir, matcher, ledger, clock, connection,
		config.IdentityDomain, config.CooldownWindow)
	batch := schedule.NewBatch(log, platform, dir, connection)

	rules, location, err := config.Rules()
	if err != nil {
		return err
	}

	// 5. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		connection,
		workers.NewModerationWorker(log, connection, engine, platform.Messages()),
		workers.NewAccessWorker(log, clock, location, rules, connection, batch),
		workers.NewStatusWorker(log, config.StatusInterval, connection),
	)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting gatekeeper",
		"close_at", config.CloseAt, "open_at", config.OpenAt, "tz", config.Timezone)
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}
