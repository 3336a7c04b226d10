package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type changeRecorder struct {
	mu    sync.Mutex
	calls int
	last  *Config
}

func (r *changeRecorder) onChange(cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = cfg
}

func (r *changeRecorder) snapshot() (int, *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.last
}

func TestConfigWatcher(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	initialContent := `telegram:
  token: "test-token-123"
auth:
  superusers: [12345]
storage_path: "/tmp/test.db"
log_level: "info"
`
	if err := os.WriteFile(configPath, []byte(initialContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	rec := &changeRecorder{}
	watcher, err := NewConfigWatcher(configPath, nil, rec.onChange)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	updatedContent := `telegram:
  token: "test-token-456"
auth:
  superusers: [12345, 67890]
ratelimit:
  max_requests: 5
storage_path: "/tmp/test2.db"
log_level: "debug"
`
	if err := os.WriteFile(configPath, []byte(updatedContent), 0644); err != nil {
		t.Fatalf("Failed to update config file: %v", err)
	}

	time.Sleep(1 * time.Second)

	calls, last := rec.snapshot()
	if calls == 0 {
		t.Fatal("onChange was not called after config file update")
	}
	if last.Telegram.Token != "test-token-456" {
		t.Errorf("Expected token 'test-token-456', got '%s'", last.Telegram.Token)
	}
	if !last.IsSuperuser(67890) {
		t.Errorf("Expected 67890 to be a superuser, got %v", last.Auth.Superusers)
	}
	if last.RateLimit.MaxRequests != 5 {
		t.Errorf("Expected max_requests 5, got %d", last.RateLimit.MaxRequests)
	}
	if last.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", last.LogLevel)
	}
}

func TestConfigWatcherManualReload(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `telegram:
  token: "manual-token"
storage_path: "/tmp/manual.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	rec := &changeRecorder{}
	watcher, err := NewConfigWatcher(configPath, nil, rec.onChange)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	if err := watcher.TriggerReload(); err != nil {
		t.Fatalf("Manual reload failed: %v", err)
	}

	if calls, _ := rec.snapshot(); calls == 0 {
		t.Error("onChange was not called after manual reload")
	}
}

func TestConfigWatcherInvalidConfig(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	validContent := `telegram:
  token: "valid-token"
storage_path: "/tmp/valid.db"
`
	if err := os.WriteFile(configPath, []byte(validContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	rec := &changeRecorder{}
	watcher, err := NewConfigWatcher(configPath, nil, rec.onChange)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	invalidContent := `telegram:
  token: ""
retry:
  attempts: 0
`
	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to update config file: %v", err)
	}

	time.Sleep(1 * time.Second)

	if calls, _ := rec.snapshot(); calls > 0 {
		t.Error("onChange should not be called for invalid config")
	}
	if err := watcher.TriggerReload(); err == nil {
		t.Error("TriggerReload should report the validation failure")
	}
}

func TestConfigWatcherStopIsIdempotent(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("telegram:\n  token: x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	watcher, err := NewConfigWatcher(configPath, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	watcher.Stop()
	watcher.Stop()
}

func TestChangedSections(t *testing.T) {
	old := &Config{LogLevel: "info", Auth: AuthConfig{Superusers: []int64{1}}}

	next := *old
	if got := ChangedSections(old, &next); len(got) != 0 {
		t.Errorf("ChangedSections(equal) = %v", got)
	}

	next.Auth = AuthConfig{Superusers: []int64{1, 2}}
	next.LogLevel = "debug"
	got := ChangedSections(old, &next)
	if len(got) != 2 || got[0] != "auth" || got[1] != "log_level" {
		t.Errorf("ChangedSections() = %v, want [auth log_level]", got)
	}

	if got := ChangedSections(nil, &next); len(got) != len(sections) {
		t.Errorf("ChangedSections(nil) = %v", got)
	}
}
