package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"scenevibe/internal/app"
	"scenevibe/internal/config"
	"scenevibe/internal/daemon"
	"scenevibe/internal/history"
	"scenevibe/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	d, store, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = d.Close()
		if store != nil {
			_ = store.Close()
		}
	}()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	logger.Info("scenevibed listening",
		logging.String("address", d.APIAddress()),
		logging.String(logging.FieldEventType, "daemon_listening"),
	)

	<-ctx.Done()
	logger.Info("scenevibed shutting down")
	return nil
}

// build wires the app and daemon. The history store is optional; when it
// cannot be opened the daemon serves requests without recording runs.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, *history.Store, error) {
	var opts []app.Option
	store, err := history.Open(ctx, cfg.HistoryPath())
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.String(logging.FieldImpact, "runs will not be recorded"),
		)
		store = nil
	} else {
		opts = append(opts, app.WithHistory(store))
	}

	application, err := app.New(cfg, logger, opts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, fmt.Errorf("create app: %w", err)
	}
	d, err := daemon.New(cfg, application, logger)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, store, nil
}
