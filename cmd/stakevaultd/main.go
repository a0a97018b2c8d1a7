package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"stakevault/config"
	"stakevault/core/events"
	"stakevault/core/state"
	"stakevault/native/staking"
	"stakevault/observability/logging"
	"stakevault/rpc"
	"stakevault/storage"
)

const envVar = "STAKEVAULT_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))
	logger := logging.Setup("stakevaultd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.String("dir", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	engine := staking.NewEngine(cfg.Operator(), cfg.Pool(), cfg.Burn())
	engine.SetState(manager)
	engine.SetLedger(manager)
	engine.SetEmitter(events.NewSlogEmitter(logger))
	engine.SetPauses(cfg.Pauses())
	if cfg.PauseStaking {
		logger.Warn("staking module is paused; mutating operations will be rejected")
	}

	server := rpc.NewServer(engine, manager, logger)
	logger.Info("stakevaultd configured",
		slog.String("listen", cfg.ListenAddress),
		slog.String("operator", cfg.OperatorAddress))
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
