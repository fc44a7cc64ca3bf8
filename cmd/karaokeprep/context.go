package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"karaokeprep/internal/config"
	"karaokeprep/internal/journal"
	"karaokeprep/internal/logging"
	"karaokeprep/internal/notifications"
	"karaokeprep/internal/pipeline"
	"karaokeprep/internal/resourcelock"
	"karaokeprep/internal/stage"
	"karaokeprep/internal/stages"
)

type globalFlags struct {
	config   string
	logLevel string
	dryRun   bool
	force    bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	logger    *slog.Logger
	logCloser io.Closer
	notifier  notifications.Service
	journal   *journal.Store
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

// loggerFor builds the process logger once, writing console output to the
// command's stderr.
func (c *commandContext) loggerFor(cmd *cobra.Command) (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, closer, err := logging.NewFromConfig(cfg, strings.TrimSpace(c.flags.logLevel), cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	c.logger = logger
	c.logCloser = closer
	return logger, nil
}

func (c *commandContext) notifications() notifications.Service {
	if c.notifier == nil {
		c.notifier = notifications.NewService(c.config)
	}
	return c.notifier
}

func (c *commandContext) locker(logger *slog.Logger) *resourcelock.Locker {
	cfg := c.config
	return resourcelock.New(resourcelock.Options{
		Dir:          cfg.Paths.LockDir,
		PollInterval: time.Duration(cfg.Lock.PollIntervalMS) * time.Millisecond,
		MaxWait:      time.Duration(cfg.Lock.MaxWaitSeconds) * time.Second,
		Logger:       logger,
	})
}

// pipelineFor wires the runner and stage registry used by run and batch.
func (c *commandContext) pipelineFor(cmd *cobra.Command) (*pipeline.Runner, *stage.Registry, *slog.Logger, error) {
	logger, err := c.loggerFor(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	notifier := c.notifications()
	registry, err := stages.NewRegistry(c.config, stages.Deps{
		Logger:   logger,
		Notifier: notifier,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	runner := pipeline.New(pipeline.Options{
		Logger:   logger,
		Locker:   c.locker(logger),
		Notifier: notifier,
		DryRun:   c.flags.dryRun,
		Force:    c.flags.force,
	})
	return runner, registry, logger, nil
}

// openJournal returns nil when the journal is disabled or unavailable; the
// journal never blocks pipeline work.
func (c *commandContext) openJournal(logger *slog.Logger) *journal.Store {
	if c.journal != nil {
		return c.journal
	}
	if c.config == nil || !c.config.Batch.JournalEnabled || c.flags.dryRun {
		return nil
	}
	store, err := journal.Open(c.config.JournalPath())
	if err != nil {
		if logger != nil {
			logger.Warn("journal unavailable", logging.Error(err),
				logging.String(logging.FieldImpact, "run history will not be recorded"))
		}
		return nil
	}
	c.journal = store
	return store
}

func (c *commandContext) close() error {
	var errs []error
	if c.journal != nil {
		errs = append(errs, c.journal.Close())
		c.journal = nil
	}
	if c.logCloser != nil {
		errs = append(errs, c.logCloser.Close())
		c.logCloser = nil
	}
	return errors.Join(errs...)
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
