package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"scenevibe/internal/app"
	"scenevibe/internal/config"
	"scenevibe/internal/history"
	"scenevibe/internal/logging"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

type commandContext struct {
	configFlag *string
	formatFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	appOnce sync.Once
	app     *app.App
	store   *history.Store
	logger  *slog.Logger
	appErr  error
}

func newCommandContext(configFlag, formatFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		formatFlag: formatFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureApp builds the app with run history for commands that call the
// workflows. History failures degrade to an app without history.
func (c *commandContext) ensureApp(cmd *cobra.Command) (*app.App, error) {
	c.appOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.appErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.appErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger

		var opts []app.Option
		store, err := c.openHistory(cmd)
		if err != nil {
			logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions"),
				logging.String(logging.FieldImpact, "this run will not be recorded"),
			)
		} else {
			opts = append(opts, app.WithHistory(store))
		}

		c.app, c.appErr = app.New(cfg, logger, opts...)
	})
	return c.app, c.appErr
}

func (c *commandContext) openHistory(cmd *cobra.Command) (*history.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cmd.Context(), cfg.HistoryPath())
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
}

// outputFormat resolves --format, defaulting to a table for terminals and
// JSON for pipes and files.
func (c *commandContext) outputFormat(out io.Writer) string {
	if c.formatFlag != nil {
		if value := strings.ToLower(strings.TrimSpace(*c.formatFlag)); value != "" {
			return value
		}
	}
	if isTerminal(out) {
		return formatTable
	}
	return formatJSON
}

func validateFormat(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", formatTable, formatJSON:
		return nil
	default:
		return fmt.Errorf("unsupported --format %q (use table or json)", value)
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
