package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func startedStore(t *testing.T, app string, opts ...StoreOption) *Store {
	t.Helper()
	s := NewStore(app, opts...)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestStoreReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `
greeter:
  logging:
    level: debug
    output: "`+yamlSafePath(dir)+`/greeter.log"
  thrift:
    listenPort: 7911
    workerThreads: "8"
    enabled: true
`)

	s := startedStore(t, "greeter", WithFile(path))
	assert.True(t, s.IsRunning())
	assert.Equal(t, path, s.ConfigFile())
	assert.Equal(t, "greeter", s.AppName())

	port, ok, err := s.Int("greeter.thrift.listenPort")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7911, port)

	workers, ok, err := s.App().Sub("thrift").Int("workerThreads")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 8, workers)

	enabled, ok, err := s.Sub("greeter.thrift").Bool("enabled")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, enabled)

	_, ok, err = s.Int("greeter.thrift.selectorThreads")
	require.NoError(t, err)
	assert.False(t, ok)

	level, ok := s.String("greeter.logging.level")
	assert.True(t, ok)
	assert.Equal(t, "debug", level)
}

func TestStoreMissingFiles(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	// Nothing at the default location is fine.
	s := startedStore(t, "greeter")
	assert.True(t, s.IsRunning())
	assert.Empty(t, s.ConfigFile())

	// An explicit file that does not exist is not.
	missing := NewStore("greeter", WithFile(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, missing.Start(context.Background()))
	assert.False(t, missing.IsRunning())
}

func TestStoreEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `
greeter:
  thrift:
    listenPort: 7911
  metrics:
    enabled: false
`)
	t.Setenv("GREETER_THRIFT_LISTENPORT", "8000")
	t.Setenv("GREETER_METRICS_ENABLED", "true")
	t.Setenv("GREETER_SHUTDOWN_TIMEOUT", "5s")

	s := startedStore(t, "greeter", WithFile(path))

	port, err := RequireInt(s, "greeter.thrift.listenPort")
	require.NoError(t, err)
	assert.Equal(t, 8000, port)

	settings, err := LoadSettings(s)
	require.NoError(t, err)
	assert.True(t, settings.Metrics.Enabled)
	assert.Equal(t, 5*time.Second, settings.ShutdownTimeout)
	require.NotNil(t, settings.Thrift)
	assert.Equal(t, 10000, settings.Thrift.ShutdownTimeoutMillis)
}

func TestStoreBeforeStart(t *testing.T) {
	t.Setenv("ORDERS_THRIFT_LISTENPORT", "9001")
	s := NewStore("orders")

	port, ok, err := s.Int("orders.thrift.listenPort")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 9001, port)

	level, ok := s.String("orders.logging.level")
	assert.True(t, ok)
	assert.Equal(t, "INFO", level)

	assert.ErrorIs(t, s.Reload(), ErrNotStarted)
}

func TestRequireInt(t *testing.T) {
	s := NewStore("greeter")
	s.Set("greeter.thrift.listenPort", "not-a-port")

	_, err := RequireInt(s, "greeter.thrift.selectorThreads")
	assert.ErrorIs(t, err, ErrMissingMandatoryConfig)
	assert.Contains(t, err.Error(), "greeter.thrift.selectorThreads")

	_, err = RequireInt(s, "greeter.thrift.listenPort")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingMandatoryConfig)

	n, err := IntOr(s, "greeter.thrift.workerThreads", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestStoreDuration(t *testing.T) {
	s := NewStore("greeter")
	s.Set("greeter.grace", "1500ms")
	s.Set("greeter.bad", "soon")

	d, ok, err := s.App().Duration("grace")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, d)

	_, ok, err = s.App().Duration("bad")
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestViewKeys(t *testing.T) {
	s := NewStore("greeter")
	v := s.App().Sub("thrift")

	assert.Equal(t, "greeter.thrift", v.Prefix())
	assert.Equal(t, "greeter.thrift.listenPort", v.Key("listenPort"))
	assert.Equal(t, "greeter.thrift", v.Key(""))
	assert.Equal(t, "x", s.Sub("").Key("x"))

	s.Set("greeter.thrift.listenPort", 1)
	assert.True(t, v.IsSet("listenPort"))
	raw, ok := v.Get("listenPort")
	assert.True(t, ok)
	assert.Equal(t, 1, raw)
}

func TestDecodeSubtree(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `
greeter:
  thrift:
    listenPort: 7911
    bindAddress: 127.0.0.1
    selectorThreads: 2
`)
	s := startedStore(t, "greeter", WithFile(path))

	var thrift ThriftConfig
	require.NoError(t, s.App().Sub("thrift").Decode(&thrift))
	assert.Equal(t, ThriftConfig{ListenPort: 7911, BindAddress: "127.0.0.1", SelectorThreads: 2}, thrift)

	var missing ThriftConfig
	require.NoError(t, s.Decode("nobody.thrift", &missing))
	assert.Zero(t, missing)
}

func TestStoreWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "greeter:\n  logging:\n    level: INFO\n")

	s := startedStore(t, "greeter", WithFile(path), WithWatch(true))
	changed := make(chan struct{}, 8)
	s.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("greeter:\n  logging:\n    level: ERROR\n"), 0644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("configuration change was not observed")
	}
	require.Eventually(t, func() bool {
		level, _ := s.String("greeter.logging.level")
		return level == "ERROR"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestStoreWatchAfterStart(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	assert.ErrorIs(t, NewStore("greeter").Watch(), ErrNotStarted)

	// Nothing to watch without a file.
	s := startedStore(t, "greeter")
	assert.NoError(t, s.Watch())

	path := writeFile(t, t.TempDir(), "greeter:\n  watch: true\n")
	s = startedStore(t, "greeter", WithFile(path))
	require.NoError(t, s.Watch())
	require.NoError(t, s.Watch())
}

func TestReloadNotifies(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "greeter:\n  watch: false\n")
	s := startedStore(t, "greeter", WithFile(path))

	calls := 0
	s.OnChange(func() { calls++ })
	require.NoError(t, s.Reload())
	require.NoError(t, s.Reload())
	assert.Equal(t, 2, calls)
}

func TestInitConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig("greeter", "", false)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfigPath(), path)
	assert.True(t, DefaultConfigExists())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# greeter configuration")
	assert.Contains(t, string(content), "GREETER_THRIFT_LISTENPORT")

	var parsed map[string]Settings
	require.NoError(t, yaml.Unmarshal(content, &parsed))
	require.Contains(t, parsed, "greeter")
	require.NotNil(t, parsed["greeter"].Thrift)
	assert.Equal(t, 7911, parsed["greeter"].Thrift.ListenPort)

	_, err = InitConfig("greeter", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = InitConfig("greeter", "", true)
	require.NoError(t, err)

	// The generated file loads back and validates.
	s := startedStore(t, "greeter", WithFile(path))
	settings, err := LoadSettings(s)
	require.NoError(t, err)
	assert.Equal(t, DefaultShutdownTimeout, settings.ShutdownTimeout)
	assert.Equal(t, 7911, settings.Thrift.ListenPort)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	settings := GetDefaultSettings()
	settings.Logging.Level = "WARN"
	settings.ShutdownTimeout = 45 * time.Second

	require.NoError(t, SaveConfig("orders", settings, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	s := startedStore(t, "orders", WithFile(path))
	loaded, err := LoadSettings(s)
	require.NoError(t, err)
	assert.Equal(t, "WARN", loaded.Logging.Level)
	assert.Equal(t, 45*time.Second, loaded.ShutdownTimeout)
	assert.Nil(t, loaded.Thrift)
}
