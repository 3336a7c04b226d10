package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mod-gobot/internal/config"
	"mod-gobot/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "cli.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(cfg *config.Config) bool
	}{
		{"telegram.token", "123:abc", false, func(c *config.Config) bool { return c.Telegram.Token == "123:abc" }},
		{"auth.superusers", "1, 2,3", false, func(c *config.Config) bool {
			return len(c.Auth.Superusers) == 3 && c.Auth.Superusers[2] == 3
		}},
		{"auth.superusers", "1,bob", true, nil},
		{"auth.sudo_duration", "10m", false, func(c *config.Config) bool { return c.Auth.SudoDuration == 10*time.Minute }},
		{"auth.sudo_duration", "-1m", true, nil},
		{"moderation.warn_limit", "5", false, func(c *config.Config) bool { return c.Moderation.WarnLimit == 5 }},
		{"moderation.warn_limit", "five", true, nil},
		{"maintenance.sweep_schedule", "@every 1h", false, func(c *config.Config) bool {
			return c.Maintenance.SweepSchedule == "@every 1h"
		}},
		{"maintenance.sweep_schedule", "not a schedule", true, nil},
		{"api.enabled", "true", false, func(c *config.Config) bool { return c.API.Enabled }},
		{"log_level", "WARNING", false, func(c *config.Config) bool { return c.LogLevel == "warn" }},
		{"log_level", "loud", true, nil},
		{"no.such.key", "x", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := &config.Config{}
			err := setConfigValue(cfg, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("setConfigValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("setConfigValue(%q, %q) did not apply: %+v", tt.key, tt.value, cfg)
			}
		})
	}
}

func TestWriteDefaultConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig() error = %v", err)
	}
	if err := writeDefaultConfig(path); err == nil {
		t.Error("second writeDefaultConfig() should refuse to overwrite")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Moderation.WarnLimit != 3 {
		t.Errorf("WarnLimit = %d, want 3", cfg.Moderation.WarnLimit)
	}
	if cfg.Auth.SudoDuration != 5*time.Minute {
		t.Errorf("SudoDuration = %s, want 5m", cfg.Auth.SudoDuration)
	}
	if got := checkConfigFile(cfg); !got.passed {
		t.Errorf("checkConfigFile() = %+v", got)
	}
}

func TestListAndForgetGroups(t *testing.T) {
	store := newTestStore(t)
	var out bytes.Buffer

	if err := listGroups(&out, store); err != nil {
		t.Fatalf("listGroups() error = %v", err)
	}
	if !strings.Contains(out.String(), "No groups tracked") {
		t.Errorf("empty list output = %q", out.String())
	}

	if err := store.TrackGroup(-100, "Den"); err != nil {
		t.Fatalf("TrackGroup() error = %v", err)
	}
	if err := store.SetControlChannel(-100, -200); err != nil {
		t.Fatalf("SetControlChannel() error = %v", err)
	}

	out.Reset()
	if err := listGroups(&out, store); err != nil {
		t.Fatalf("listGroups() error = %v", err)
	}
	if !strings.Contains(out.String(), "Den") || !strings.Contains(out.String(), "-200") {
		t.Errorf("list output = %q", out.String())
	}

	if err := forgetGroup(&out, store, -999); err == nil {
		t.Error("forgetGroup() of an unknown group should fail")
	}

	out.Reset()
	if err := forgetGroup(&out, store, -100); err != nil {
		t.Fatalf("forgetGroup() error = %v", err)
	}
	if !strings.Contains(out.String(), "Forgot Den") {
		t.Errorf("forget output = %q", out.String())
	}
	if _, err := store.GetGroup(-100); !errors.Is(err, storage.ErrGroupNotFound) {
		t.Errorf("GetGroup() after forget error = %v", err)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping() error { return p.err }

func TestDoctorChecks(t *testing.T) {
	tests := []struct {
		name   string
		result checkResult
		passed bool
	}{
		{"empty token", checkTelegramToken(&config.Config{}), false},
		{"short token", checkTelegramToken(&config.Config{Telegram: config.TelegramConfig{Token: "123:abc"}}), false},
		{"good token", checkTelegramToken(&config.Config{Telegram: config.TelegramConfig{
			Token: "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"}}), true},
		{"storage down", checkStorage(fakePinger{err: errors.New("closed")}), false},
		{"storage nil", checkStorage(nil), false},
		{"storage up", checkStorage(fakePinger{}), true},
		{"maintenance off", checkSweepSchedule(&config.Config{}), true},
		{"bad schedule", checkSweepSchedule(&config.Config{Maintenance: config.MaintenanceConfig{
			Enabled: true, SweepSchedule: "every day"}}), false},
		{"api without key", checkAPI(&config.Config{API: config.APIConfig{Enabled: true}}), false},
		{"no superusers", checkSuperusers(&config.Config{}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.passed != tt.passed {
				t.Errorf("passed = %v, want %v (%s)", tt.result.passed, tt.passed, tt.result.message)
			}
		})
	}

	if r := checkAPI(&config.Config{API: config.APIConfig{Enabled: true}}); !r.required {
		t.Error("an enabled API without key should be a required failure")
	}
	if r := checkSuperusers(&config.Config{}); r.required {
		t.Error("superusers should be optional")
	}
}

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"username":"modbot","started_at":"2026-01-02T03:04:05Z","uptime":"1h2m","groups":4,"pending_commands":1,"elevated_users":0,"silenced_groups":2,"commands":30}`))
	}))
	defer srv.Close()

	st, err := fetchStatus(context.Background(), srv.URL, "secret")
	if err != nil {
		t.Fatalf("fetchStatus() error = %v", err)
	}
	if st.Username != "modbot" || st.Groups != 4 || st.Silenced != 2 {
		t.Errorf("status = %+v", st)
	}
	if st.Uptime != time.Hour+2*time.Minute {
		t.Errorf("Uptime = %s", st.Uptime)
	}

	var out bytes.Buffer
	printStatus(&out, st)
	if !strings.Contains(out.String(), "@modbot") || !strings.Contains(out.String(), "silenced: 2") {
		t.Errorf("printStatus() = %q", out.String())
	}

	if _, err := fetchStatus(context.Background(), srv.URL, "wrong"); err == nil {
		t.Error("fetchStatus() with a wrong key should fail")
	}
}

func TestRenderServiceFile(t *testing.T) {
	sc := &serviceConfig{
		Name:       serviceName,
		BinaryPath: "/usr/local/bin/mod-gobot",
		HomeDir:    "/home/mod",
		WorkDir:    "/home/mod/.mod-gobot",
		LogPath:    "/home/mod/.local/state/mod-gobot",
	}

	unit, err := renderServiceFile("linux", sc)
	if err != nil {
		t.Fatalf("renderServiceFile(linux) error = %v", err)
	}
	if !bytes.Contains(unit, []byte("ExecStart=/usr/local/bin/mod-gobot start")) {
		t.Errorf("systemd unit missing ExecStart:\n%s", unit)
	}
	if !bytes.Contains(unit, []byte("WorkingDirectory=/home/mod/.mod-gobot")) {
		t.Errorf("systemd unit missing WorkingDirectory:\n%s", unit)
	}

	plist, err := renderServiceFile("darwin", sc)
	if err != nil {
		t.Fatalf("renderServiceFile(darwin) error = %v", err)
	}
	if !bytes.Contains(plist, []byte("<string>com.mod-gobot</string>")) {
		t.Errorf("plist missing label:\n%s", plist)
	}
}

func TestTailLines(t *testing.T) {
	if got := tailLines("a\nb\nc\n", 2); got != "b\nc" {
		t.Errorf("tailLines() = %q", got)
	}
	if got := tailLines("a\n", 5); got != "a" {
		t.Errorf("tailLines() = %q", got)
	}
}

func TestMaskToken(t *testing.T) {
	tests := map[string]string{
		"":                   "(not set)",
		"short":              "***",
		"123456:ABCDEFGHIJK": "1234...HIJK",
	}
	for in, want := range tests {
		if got := maskToken(in); got != want {
			t.Errorf("maskToken(%q) = %q, want %q", in, got, want)
		}
	}
}
