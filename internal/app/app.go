package app

import (
	"context"
	"fmt"

	"mod-gobot/internal/api"
	"mod-gobot/internal/bot"
	"mod-gobot/internal/config"
	"mod-gobot/internal/cron"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/storage"
)

// App orchestrates all components
type App struct {
	config    *config.Config
	store     *storage.Store
	bot       *bot.Bot
	scheduler *cron.Scheduler
	apiServer *api.APIServer
	watcher   *config.ConfigWatcher
}

// New creates a new application instance
func New(cfg *config.Config, store *storage.Store) *App {
	return &App{
		config: cfg,
		store:  store,
	}
}

// Start initializes and runs all components
func (a *App) Start(ctx context.Context) error {
	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.SetLevel(a.config.LogLevel)

	b, err := bot.New(a.config, a.store)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	a.bot = b
	logger.SetRedactor(b.Redact)

	a.scheduler = cron.NewScheduler()
	if a.config.Maintenance.Enabled {
		if err := cron.RegisterMaintenance(a.scheduler, a.config.Maintenance.SweepSchedule, b.Resolver(), b.Elevation()); err != nil {
			return fmt.Errorf("failed to schedule maintenance: %w", err)
		}
	}
	if err := a.scheduler.Start(ctx); err != nil {
		logger.Warnf("Failed to start cron scheduler: %v", err)
	}

	if a.config.ConfigPath != "" {
		watcher, err := config.NewConfigWatcher(a.config.ConfigPath, a.config, a.applyConfig)
		if err != nil {
			logger.Warnf("Config hot-reload disabled: %v", err)
		} else {
			a.watcher = watcher
			b.SetConfigWatcher(watcher)
		}
	}

	if a.config.API.Enabled {
		logger.Infof("Initializing API server on port %d...", a.config.API.Port)
		a.apiServer = api.NewAPIServer(a.config.API, b, a.store)
		go func() {
			if err := a.apiServer.Start(ctx); err != nil {
				logger.Errorf("API server error: %v", err)
			}
		}()
	}

	// Blocks until ctx is cancelled
	err = b.Start(ctx)
	a.Stop()
	return err
}

// applyConfig hands a validated, reloaded config to the bot and
// reschedules the sweep
func (a *App) applyConfig(cfg *config.Config) {
	a.bot.ApplyConfig(cfg)

	if !cfg.Maintenance.Enabled {
		a.scheduler.RemoveJob(cron.JobSweep)
		a.scheduler.RemoveJob(cron.JobSudoPrune)
		return
	}
	if err := cron.RegisterMaintenance(a.scheduler, cfg.Maintenance.SweepSchedule, a.bot.Resolver(), a.bot.Elevation()); err != nil {
		logger.Warnf("Keeping previous maintenance schedule: %v", err)
	}
}

// Stop gracefully shuts down all components
func (a *App) Stop() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.apiServer != nil {
		if err := a.apiServer.Stop(context.Background()); err != nil {
			logger.Warnf("Error stopping API server: %v", err)
		}
	}
	return nil
}
