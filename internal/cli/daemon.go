package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
)

const serviceName = "mod-gobot"

const (
	launchdPlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>com.{{.Name}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinaryPath}}</string>
		<string>start</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<dict>
		<key>SuccessfulExit</key>
		<false/>
	</dict>
	<key>StandardOutPath</key>
	<string>{{.LogPath}}/{{.Name}}.log</string>
	<key>StandardErrorPath</key>
	<string>{{.LogPath}}/{{.Name}}-error.log</string>
	<key>WorkingDirectory</key>
	<string>{{.WorkDir}}</string>
	<key>EnvironmentVariables</key>
	<dict>
		<key>HOME</key>
		<string>{{.HomeDir}}</string>
	</dict>
</dict>
</plist>
`

	systemdServiceTemplate = `[Unit]
Description={{.Name}} Telegram moderation bot
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} start
Restart=on-failure
RestartSec=10
WorkingDirectory={{.WorkDir}}
Environment="HOME={{.HomeDir}}"

[Install]
WantedBy=default.target
`
)

// serviceConfig fills the service file templates
type serviceConfig struct {
	Name       string
	BinaryPath string
	HomeDir    string
	WorkDir    string // the config directory, so a .env next to config.yaml is picked up
	LogPath    string
}

// serviceManager drives the user-level service manager of one OS
type serviceManager struct {
	goos string
	home string
	out  io.Writer
	run  func(name string, args ...string) ([]byte, error)
}

func newServiceManager(out io.Writer) (*serviceManager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	if runtime.GOOS != "darwin" && runtime.GOOS != "linux" {
		return nil, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
	return &serviceManager{
		goos: runtime.GOOS,
		home: home,
		out:  out,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
	}, nil
}

func newDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the mod-gobot background service",
		Long:  `Install, uninstall, start, stop, and check status of mod-gobot as a user service (launchd on macOS, systemd on Linux).`,
	}

	actions := []struct {
		use, short string
		fn         func(m *serviceManager) error
	}{
		{"install", "Install mod-gobot as a user service", (*serviceManager).install},
		{"uninstall", "Stop and remove the service", (*serviceManager).uninstall},
		{"start", "Start the service", (*serviceManager).start},
		{"stop", "Stop the service", (*serviceManager).stop},
		{"status", "Check whether the service is running", (*serviceManager).status},
		{"logs", "Show recent service logs", (*serviceManager).logs},
	}

	for _, a := range actions {
		fn := a.fn
		cmd.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := newServiceManager(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				return fn(m)
			},
		})
	}

	return cmd
}

func (m *serviceManager) servicePath() string {
	if m.goos == "darwin" {
		return filepath.Join(m.home, "Library", "LaunchAgents", "com."+serviceName+".plist")
	}
	return filepath.Join(m.home, ".config", "systemd", "user", serviceName+".service")
}

func (m *serviceManager) logPath() string {
	if m.goos == "darwin" {
		return filepath.Join(m.home, "Library", "Logs")
	}
	return filepath.Join(m.home, ".local", "state", serviceName)
}

func (m *serviceManager) serviceConfig() (*serviceConfig, error) {
	binaryPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	return &serviceConfig{
		Name:       serviceName,
		BinaryPath: binaryPath,
		HomeDir:    m.home,
		WorkDir:    filepath.Join(m.home, "."+serviceName),
		LogPath:    m.logPath(),
	}, nil
}

// renderServiceFile produces the launchd plist or systemd unit for goos
func renderServiceFile(goos string, sc *serviceConfig) ([]byte, error) {
	src := systemdServiceTemplate
	if goos == "darwin" {
		src = launchdPlistTemplate
	}
	tmpl, err := template.New(goos).Parse(src)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, sc); err != nil {
		return nil, fmt.Errorf("failed to generate service file: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *serviceManager) install() error {
	path := m.servicePath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("service already installed at %s\nRun 'mod-gobot daemon uninstall' first to reinstall", path)
	}

	sc, err := m.serviceConfig()
	if err != nil {
		return err
	}
	for _, dir := range []string{filepath.Dir(path), sc.LogPath, sc.WorkDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	content, err := renderServiceFile(m.goos, sc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}

	if m.goos == "linux" {
		if output, err := m.run("systemctl", "--user", "daemon-reload"); err != nil {
			fmt.Fprintf(m.out, "Warning: systemctl daemon-reload failed: %s\n", strings.TrimSpace(string(output)))
		}
	}

	fmt.Fprintf(m.out, "✓ Service file installed at: %s\n", path)
	fmt.Fprintf(m.out, "✓ Binary path: %s\n", sc.BinaryPath)
	fmt.Fprintln(m.out, "\nNext steps:")
	fmt.Fprintln(m.out, "  1. Run 'mod-gobot daemon start' to start the service")
	fmt.Fprintln(m.out, "  2. Run 'mod-gobot daemon status' to check if it's running")
	fmt.Fprintln(m.out, "  3. Run 'mod-gobot daemon logs' to view logs")
	return nil
}

func (m *serviceManager) uninstall() error {
	path := m.servicePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("service not installed")
	}

	// Stopping a service that is not running is fine here.
	_ = m.stop()

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove service file: %w", err)
	}
	fmt.Fprintf(m.out, "✓ Service uninstalled: %s\n", path)
	return nil
}

func (m *serviceManager) start() error {
	path := m.servicePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("service not installed. Run 'mod-gobot daemon install' first")
	}

	var output []byte
	var err error
	if m.goos == "darwin" {
		output, err = m.run("launchctl", "load", path)
	} else {
		output, err = m.run("systemctl", "--user", "start", serviceName)
	}
	if err != nil {
		return fmt.Errorf("failed to start service: %w\nOutput: %s", err, output)
	}

	fmt.Fprintln(m.out, "✓ Service started successfully")
	return nil
}

func (m *serviceManager) stop() error {
	var output []byte
	var err error
	if m.goos == "darwin" {
		output, err = m.run("launchctl", "unload", m.servicePath())
	} else {
		output, err = m.run("systemctl", "--user", "stop", serviceName)
	}
	if err != nil {
		text := string(output)
		if strings.Contains(text, "Could not find specified service") || strings.Contains(text, "not loaded") {
			fmt.Fprintln(m.out, "Service is not running")
			return nil
		}
		return fmt.Errorf("failed to stop service: %w\nOutput: %s", err, text)
	}

	fmt.Fprintln(m.out, "✓ Service stopped successfully")
	return nil
}

func (m *serviceManager) status() error {
	if m.goos == "darwin" {
		output, _ := m.run("launchctl", "list")
		label := "com." + serviceName
		found := false
		for _, line := range strings.Split(string(output), "\n") {
			if strings.Contains(line, label) {
				if !found {
					fmt.Fprintln(m.out, "✓ Service is running")
					found = true
				}
				fmt.Fprintf(m.out, "  %s\n", strings.TrimSpace(line))
			}
		}
		if !found {
			fmt.Fprintln(m.out, "✗ Service is not running")
		}
		return nil
	}

	output, err := m.run("systemctl", "--user", "status", serviceName)
	if err == nil {
		fmt.Fprintln(m.out, "✓ Service is running")
	} else {
		fmt.Fprintln(m.out, "✗ Service is not running")
	}
	fmt.Fprintln(m.out, string(output))
	return nil
}

func (m *serviceManager) logs() error {
	if m.goos == "linux" {
		output, err := m.run("journalctl", "--user", "-u", serviceName, "--no-pager", "-n", "50")
		if err != nil {
			return fmt.Errorf("failed to read logs: %w\nOutput: %s", err, output)
		}
		fmt.Fprintln(m.out, string(output))
		return nil
	}

	for _, f := range []struct{ title, file string }{
		{"Standard Output", serviceName + ".log"},
		{"Error Output", serviceName + "-error.log"},
	} {
		path := filepath.Join(m.logPath(), f.file)
		fmt.Fprintf(m.out, "=== %s ===\n", f.title)
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(m.out, "No logs found at %s\n\n", path)
			continue
		}
		fmt.Fprintln(m.out, tailLines(string(content), 50))
	}
	return nil
}

// tailLines returns the last n lines of s
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
