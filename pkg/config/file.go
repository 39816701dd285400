package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SaveConfig writes settings for app to path as YAML, nested under the
// application namespace.
func SaveConfig(app string, s *Settings, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(map[string]*Settings{app: s})
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SampleSettings returns the defaults plus an RPC section listening on port.
func SampleSettings(port int) *Settings {
	s := GetDefaultSettings()
	s.Thrift = &ThriftConfig{ListenPort: port}
	ApplyDefaults(s)
	return s
}

// InitConfig writes a sample configuration for app to path, or to the
// default location when path is empty. An existing file is only replaced
// when force is set.
func InitConfig(app, path string, force bool) (string, error) {
	if path == "" {
		path = GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(map[string]*Settings{app: SampleSettings(7911)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	header := fmt.Sprintf("# %s configuration\n#\n# Environment variables override any key, e.g. %s.thrift.listenPort -> %s_THRIFT_LISTENPORT\n\n",
		app, app, strings.ToUpper(app))
	if err := os.WriteFile(path, append([]byte(header), data...), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
