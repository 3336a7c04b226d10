package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mod-gobot/internal/logger"
)

// reloadDebounce collapses the burst of events editors emit on save.
const reloadDebounce = 500 * time.Millisecond

// ConfigWatcher watches the configuration file, and the .env file next to
// it, and reloads on change.
type ConfigWatcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	onChange   func(*Config)
	current    *Config
	stopCh     chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
	debounce   *time.Timer
}

// NewConfigWatcher creates a new configuration watcher. current is the
// running configuration reloads are compared against and may be nil.
func NewConfigWatcher(configPath string, current *Config, onChange func(*Config)) (*ConfigWatcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory: some editors replace the file on save.
	configDir := filepath.Dir(configPath)
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", configDir, err)
	}

	cw := &ConfigWatcher{
		configPath: configPath,
		watcher:    watcher,
		onChange:   onChange,
		current:    current,
		stopCh:     make(chan struct{}),
	}

	go cw.watch()

	logger.Infof("Config watcher started for: %s", configPath)
	return cw, nil
}

// Path returns the watched config file.
func (cw *ConfigWatcher) Path() string {
	return cw.configPath
}

func (cw *ConfigWatcher) relevant(name string) bool {
	base := filepath.Base(name)
	return name == cw.configPath || base == filepath.Base(cw.configPath) || base == ".env"
}

func (cw *ConfigWatcher) watch() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.relevant(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				logger.Debugf("Config file changed: %s (op: %s)", event.Name, event.Op)
				cw.debounceReload()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("Config watcher error: %v", err)

		case <-cw.stopCh:
			return
		}
	}
}

func (cw *ConfigWatcher) debounceReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.debounce != nil {
		cw.debounce.Stop()
	}
	cw.debounce = time.AfterFunc(reloadDebounce, func() {
		if err := cw.reload(); err != nil {
			logger.Errorf("Config reload rejected: %v", err)
		}
	})
}

// reload reads and validates the new configuration, then hands it to
// onChange. An invalid file leaves the running config untouched.
func (cw *ConfigWatcher) reload() error {
	cfg, err := LoadFrom(cw.configPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	cw.mu.Lock()
	changed := ChangedSections(cw.current, cfg)
	cw.current = cfg
	cw.mu.Unlock()

	if len(changed) == 0 {
		logger.Debugf("Configuration reloaded, nothing changed")
	} else {
		logger.Infof("Configuration reloaded, changed: %v", changed)
	}

	if cw.onChange != nil {
		cw.onChange(cfg)
	}
	return nil
}

var sections = []struct {
	key string
	get func(c *Config) any
}{
	{"telegram", func(c *Config) any { return c.Telegram }},
	{"auth", func(c *Config) any { return c.Auth }},
	{"moderation", func(c *Config) any { return c.Moderation }},
	{"ratelimit", func(c *Config) any { return c.RateLimit }},
	{"retry", func(c *Config) any { return c.Retry }},
	{"maintenance", func(c *Config) any { return c.Maintenance }},
	{"api", func(c *Config) any { return c.API }},
	{"storage_path", func(c *Config) any { return c.StoragePath }},
	{"log_level", func(c *Config) any { return c.LogLevel }},
	{"redact", func(c *Config) any { return c.Redact }},
}

// ChangedSections names the top-level config keys that differ between old
// and next. A nil old reports every section.
func ChangedSections(old, next *Config) []string {
	var changed []string
	for _, s := range sections {
		if old == nil || !reflect.DeepEqual(s.get(old), s.get(next)) {
			changed = append(changed, s.key)
		}
	}
	return changed
}

// TriggerReload manually triggers a configuration reload
func (cw *ConfigWatcher) TriggerReload() error {
	logger.Infof("Manual config reload triggered")
	return cw.reload()
}

// Stop stops the watcher and cleans up resources
func (cw *ConfigWatcher) Stop() {
	cw.stopOnce.Do(func() {
		cw.mu.Lock()
		if cw.debounce != nil {
			cw.debounce.Stop()
		}
		cw.mu.Unlock()

		close(cw.stopCh)
		cw.watcher.Close()

		logger.Infof("Config watcher stopped")
	})
}
