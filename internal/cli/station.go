package cli

import (
	"log/slog"
	"os"

	"gatecheck/internal/config"
	"gatecheck/internal/engine"
	"gatecheck/internal/remote"
	"gatecheck/internal/store"
)

// station bundles the wired pieces every command needs: configuration,
// the durable store, the backend client, and the engine over them.
type station struct {
	cfg    config.Config
	store  *store.Store
	client *remote.Client
	engine *engine.Engine
}

// openStation loads configuration and assembles the engine. The caller
// must Close the station when done.
func openStation(opts *RootOptions) (*station, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	client := remote.New(cfg.RemoteURL, remote.WithAPIKey(cfg.DeviceKey))
	eng := engine.New(st, client, engine.Options{
		CheckinType:     cfg.CheckinType,
		SessionID:       cfg.SessionID,
		Cooldown:        cfg.Cooldown,
		LogCap:          cfg.LogCap,
		MaxSyncAttempts: cfg.MaxSyncAttempts,
		ProbeInterval:   cfg.ProbeInterval,
	})

	return &station{cfg: cfg, store: st, client: client, engine: eng}, nil
}

func (s *station) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// setupLogging configures the process-wide slog handler.
func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
