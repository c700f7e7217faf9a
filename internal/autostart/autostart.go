// Package autostart registers the steering daemon to launch on login.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

const label = "com.penwheel.daemon"

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.penwheel.daemon</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=penwheel
Exec={{.ExecutablePath}}
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

// Enable registers auto-start on login for the current user.
func Enable() error {
	switch runtime.GOOS {
	case "linux":
		return writeEntry(linuxEntryPath, xdgDesktopEntry)
	case "darwin":
		return writeEntry(macEntryPath, macLaunchAgentPlist)
	default:
		return fmt.Errorf("autostart: unsupported platform %s", runtime.GOOS)
	}
}

// Disable removes the auto-start registration.
func Disable() error {
	path, err := entryPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled reports whether auto-start is registered.
func IsEnabled() bool {
	path, err := entryPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func entryPath() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return linuxEntryPath()
	case "darwin":
		return macEntryPath()
	default:
		return "", fmt.Errorf("autostart: unsupported platform %s", runtime.GOOS)
	}
}

func linuxEntryPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "autostart", label+".desktop"), nil
}

func macEntryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", label+".plist"), nil
}

func writeEntry(pathFn func() (string, error), tmplText string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("autostart: resolving executable path: %w", err)
	}

	path, err := pathFn()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpl, err := template.New("entry").Parse(tmplText)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, struct{ ExecutablePath string }{execPath})
}
