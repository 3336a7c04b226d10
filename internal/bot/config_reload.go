package bot

import (
	"mod-gobot/internal/config"
	"mod-gobot/internal/logger"
)

// ConfigWatcher defines the interface for config hot-reload
type ConfigWatcher interface {
	TriggerReload() error
	Stop()
}

// SetConfigWatcher sets the config watcher used by /reload
func (b *Bot) SetConfigWatcher(watcher ConfigWatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configWatcher = watcher
}

// ApplyConfig swaps in a reloaded configuration. The Telegram token and
// storage path only take effect after a restart.
func (b *Bot) ApplyConfig(cfg *config.Config) {
	old := b.config()
	if old.Telegram.Token != cfg.Telegram.Token || old.StoragePath != cfg.StoragePath {
		logger.Warnf("Bot: telegram token or storage path changed, restart to apply")
	}

	logger.SetLevel(cfg.LogLevel)
	b.limiter.SetLimits(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	b.elevation.Configure(cfg.Auth.Superusers, cfg.Auth.SudoDuration)
	b.retrying.SetPolicy(retryPolicy(cfg))
	b.redactor.SetSecrets(cfg.Secrets()...)

	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()

	logger.Infof("Bot: configuration applied (%d superusers, %d requests per %s)",
		len(cfg.Auth.Superusers), cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
}
