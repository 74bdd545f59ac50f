//go:build linux

package ime

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Component names the bus and engine an installed component advertises.
// They must match what the running process claims on the session bus.
type Component struct {
	BusName    string
	EngineName string
	Exec       string
}

// DefaultComponent returns the component for the built-in names.
func DefaultComponent(execPath string) Component {
	return Component{BusName: CopilotBusName, EngineName: CopilotEngineName, Exec: execPath}
}

// ComponentFile returns the component description file name for engine.
func ComponentFile(engine string) string {
	if engine == "" {
		engine = CopilotEngineName
	}
	return engine + ".xml"
}

// ComponentDir returns the per-user IBus component directory.
func ComponentDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "ibus", "component"), nil
}

// XML returns the IBus component description.
func (c Component) XML() string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<component>
    <name>%s</name>
    <description>Copilot Input Method</description>
    <exec>%s --ibus</exec>
    <version>%s</version>
    <author>Copilot</author>
    <license>MIT</license>
    <textdomain>copilot</textdomain>
    <engines>
        <engine>
            <name>%s</name>
            <language>zh</language>
            <license>MIT</license>
            <author>Copilot</author>
            <layout>us</layout>
            <longname>Copilot</longname>
            <description>Inserts spaces between Latin and CJK text</description>
            <rank>0</rank>
            <symbol>C</symbol>
        </engine>
    </engines>
</component>
`, c.BusName, c.Exec, CopilotEngineVersion, c.EngineName)
}

// InstallComponent writes the component file for c into dir and asks
// ibus-daemon to reload.
func InstallComponent(dir string, c Component) (string, error) {
	if c.Exec == "" {
		return "", errors.New("engine executable path is required")
	}
	if c.BusName == "" || c.EngineName == "" {
		return "", errors.New("bus name and engine name are required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create component dir: %w", err)
	}

	path := filepath.Join(dir, ComponentFile(c.EngineName))
	if err := os.WriteFile(path, []byte(c.XML()), 0644); err != nil {
		return "", fmt.Errorf("write component: %w", err)
	}

	restartIBus()
	return path, nil
}

// UninstallComponent removes the component file for engine from dir.
func UninstallComponent(dir, engine string) error {
	err := os.Remove(filepath.Join(dir, ComponentFile(engine)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove component: %w", err)
	}
	restartIBus()
	return nil
}

// IsComponentInstalled reports whether the component file for engine exists
// in dir.
func IsComponentInstalled(dir, engine string) bool {
	_, err := os.Stat(filepath.Join(dir, ComponentFile(engine)))
	return err == nil
}

// IsActive reports whether IBus currently uses engine.
func IsActive(engine string) bool {
	output, err := exec.Command("ibus", "engine").Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == engine
}

// restartIBus asks ibus-daemon to rescan its components.
var restartIBus = func() {
	if _, err := exec.LookPath("ibus"); err != nil {
		return
	}
	exec.Command("ibus", "restart").Run()
}
