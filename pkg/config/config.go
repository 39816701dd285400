package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/rpcboot/internal/logger"
)

// Reader is the read side of the configuration, used by components that
// only look values up.
type Reader interface {
	Get(key string) (any, bool)
	String(key string) (string, bool)
	Int(key string) (int, bool, error)
	Duration(key string) (time.Duration, bool, error)
	Bool(key string) (bool, bool, error)
	IsSet(key string) bool
}

// Store is the process configuration. It is itself a lifecycle unit: Start
// reads the configuration file and optionally begins watching it, Stop ends
// the watch. Values stay readable before Start (environment and defaults)
// and after Stop (last loaded values).
//
// Configuration sources (in order of precedence):
//  1. Explicit overrides (Set)
//  2. Environment variables (GREETER_THRIFT_LISTENPORT for greeter.thrift.listenPort)
//  3. Configuration file (YAML or TOML)
//  4. Default values
type Store struct {
	app   string
	path  string
	watch bool

	mu       sync.RWMutex
	v        *viper.Viper
	started  bool
	watcher  *fsnotify.Watcher
	watchWG  sync.WaitGroup
	onChange []func()
}

var _ Reader = (*Store)(nil)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFile reads configuration from path instead of the default location.
// An explicit file must exist when the store starts.
func WithFile(path string) StoreOption {
	return func(s *Store) {
		s.path = path
	}
}

// WithWatch reloads the configuration whenever the file changes.
func WithWatch(enabled bool) StoreOption {
	return func(s *Store) {
		s.watch = enabled
	}
}

// NewStore creates a store for the application app. Application settings
// live under the "<app>." namespace and get their defaults registered so
// environment overrides reach Decode.
func NewStore(app string, opts ...StoreOption) *Store {
	s := &Store{app: app, v: viper.New()}
	for _, opt := range opts {
		opt(s)
	}

	s.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	s.v.AutomaticEnv()

	if s.path != "" {
		s.v.SetConfigFile(s.path)
	} else {
		s.v.AddConfigPath(getConfigDir())
		s.v.SetConfigName("config")
		s.v.SetConfigType("yaml")
	}

	if app != "" {
		registerDefaults(s.v, app, GetDefaultSettings())
	}
	return s
}

// Name implements lifecycle.Named.
func (s *Store) Name() string {
	return "config"
}

// AppName returns the application namespace.
func (s *Store) AppName() string {
	return s.app
}

// Start implements lifecycle.Unit.
func (s *Store) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	found, err := readConfigFile(s.v, s.path != "")
	if err != nil {
		return err
	}
	if found {
		logger.Info("Configuration loaded", logger.KeyConfigFile, s.v.ConfigFileUsed())
	} else {
		logger.Debug("No configuration file found, using environment and defaults")
	}

	s.started = true
	if s.watch {
		if err := s.watchLocked(); err != nil {
			s.started = false
			return err
		}
	}
	return nil
}

// Watch reloads the configuration whenever its file changes, for stores
// created without WithWatch. It does nothing when no file was read.
func (s *Store) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	return s.watchLocked()
}

func (s *Store) watchLocked() error {
	file := s.v.ConfigFileUsed()
	if s.watcher != nil || file == "" {
		return nil
	}
	if _, err := os.Stat(file); err != nil {
		return nil
	}
	return s.startWatch(file)
}

// Stop implements lifecycle.Unit.
func (s *Store) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	err := w.Close()
	s.watchWG.Wait()
	return err
}

// IsRunning implements lifecycle.Unit.
func (s *Store) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// ConfigFile returns the file the configuration was read from, if any.
func (s *Store) ConfigFile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.ConfigFileUsed()
}

// Reload re-reads the configuration file and notifies OnChange callbacks.
func (s *Store) Reload() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	_, err := readConfigFile(s.v, s.path != "")
	callbacks := append([]func(){}, s.onChange...)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnChange registers fn to run after every reload.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Set overrides key. Overrides win over every other source.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
}

// SetDefault registers a fallback value for key.
func (s *Store) SetDefault(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.SetDefault(key, value)
}

// IsSet reports whether key has a value from any source.
func (s *Store) IsSet(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.IsSet(key)
}

// Get returns the raw value of key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.v.IsSet(key) {
		return nil, false
	}
	return s.v.Get(key), true
}

// String returns key as a string.
func (s *Store) String(key string) (string, bool) {
	raw, ok := s.Get(key)
	if !ok {
		return "", false
	}
	return cast.ToString(raw), true
}

// Int returns key as an int. A value that is present but not a number is
// an error.
func (s *Store) Int(key string) (int, bool, error) {
	raw, ok := s.Get(key)
	if !ok {
		return 0, false, nil
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, true, fmt.Errorf("config key %s: %w", key, err)
	}
	return n, true, nil
}

// Duration returns key as a duration ("30s", or nanoseconds for numbers).
func (s *Store) Duration(key string) (time.Duration, bool, error) {
	raw, ok := s.Get(key)
	if !ok {
		return 0, false, nil
	}
	d, err := cast.ToDurationE(raw)
	if err != nil {
		return 0, true, fmt.Errorf("config key %s: %w", key, err)
	}
	return d, true, nil
}

// Bool returns key as a bool.
func (s *Store) Bool(key string) (bool, bool, error) {
	raw, ok := s.Get(key)
	if !ok {
		return false, false, nil
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return false, true, fmt.Errorf("config key %s: %w", key, err)
	}
	return b, true, nil
}

// Sub returns a view of the keys under prefix.
func (s *Store) Sub(prefix string) View {
	return View{store: s, prefix: strings.Trim(prefix, ".")}
}

// App returns a view of the application namespace.
func (s *Store) App() View {
	return s.Sub(s.app)
}

// Decode decodes the subtree under prefix into target, honouring every
// source including environment overrides of registered keys.
func (s *Store) Decode(prefix string, target any) error {
	s.mu.RLock()
	tree := s.v.AllSettings()
	s.mu.RUnlock()

	var node any = tree
	if prefix = strings.Trim(prefix, "."); prefix != "" {
		for _, part := range strings.Split(strings.ToLower(prefix), ".") {
			m, ok := node.(map[string]any)
			if !ok {
				node = nil
				break
			}
			node = m[part]
		}
	}
	if node == nil {
		node = map[string]any{}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       configDecodeHooks(),
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(node); err != nil {
		return fmt.Errorf("failed to decode %q: %w", prefix, err)
	}
	return nil
}

// RequireInt returns key as an int or ErrMissingMandatoryConfig.
func RequireInt(r Reader, key string) (int, error) {
	n, ok, err := r.Int(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingMandatoryConfig, key)
	}
	return n, nil
}

// IntOr returns key as an int, or def when it is absent.
func IntOr(r Reader, key string, def int) (int, error) {
	n, ok, err := r.Int(key)
	if err != nil || !ok {
		return def, err
	}
	return n, nil
}

func (s *Store) startWatch(file string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	// Editors replace files, so watch the directory and filter by name.
	if err := w.Add(filepath.Dir(file)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", file, err)
	}
	s.watcher = w

	target := filepath.Clean(file)
	s.watchWG.Add(1)
	go func() {
		defer s.watchWG.Done()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := s.Reload(); err != nil {
					if !errors.Is(err, ErrNotStarted) {
						logger.Warn("Configuration reload failed", logger.KeyConfigFile, file, logger.Err(err))
					}
					continue
				}
				logger.Info("Configuration reloaded", logger.KeyConfigFile, file, "op", ev.Op.String())
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("Configuration watcher error", logger.Err(err))
			}
		}
	}()
	return nil
}

// readConfigFile reads the configuration file. A missing file at the
// default location is not an error, a missing explicit file is.
func readConfigFile(v *viper.Viper, explicit bool) (bool, error) {
	if explicit {
		if _, err := os.Stat(v.ConfigFileUsed()); err != nil {
			return false, fmt.Errorf("configuration file not found: %w", err)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		if os.IsNotExist(err) && !explicit {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// registerDefaults registers every leaf of settings under app so AllSettings
// sees the keys and environment overrides apply to them.
func registerDefaults(v *viper.Viper, app string, settings *Settings) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}

	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, val := range node {
			key := prefix + "." + k
			if m, ok := val.(map[string]any); ok {
				walk(key, m)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk(app, tree)
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook converts strings like "30s" and raw nanosecond numbers
// to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/rpcboot, ~/.config/rpcboot, or "."
// when no home directory is known.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "rpcboot")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "rpcboot")
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
