package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bryanchriswhite/winshift/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. WINSHIFT_LOG_LEVEL.
const EnvPrefix = "WINSHIFT"

// Config represents the application configuration
type Config struct {
	LogLevel   string       `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogPretty  bool         `json:"log_pretty" yaml:"log_pretty" mapstructure:"log_pretty"`
	ServerPort int          `json:"server_port" yaml:"server_port" mapstructure:"server_port"`
	X11        X11Config    `json:"x11" yaml:"x11" mapstructure:"x11"`
	DBus       DBusConfig   `json:"dbus" yaml:"dbus" mapstructure:"dbus"`
	Stream     StreamConfig `json:"stream" yaml:"stream" mapstructure:"stream"`
}

// X11Config selects the X display to watch
type X11Config struct {
	// Display overrides $DISPLAY when set
	Display string `json:"display" yaml:"display" mapstructure:"display"`
}

// DBusConfig controls the session bus publisher
type DBusConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// StreamConfig controls WebSocket subscribers
type StreamConfig struct {
	// Buffer is the per-subscriber queue length; changes beyond it are dropped
	Buffer int `json:"buffer" yaml:"buffer" mapstructure:"buffer"`
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		LogLevel:   "info",
		LogPretty:  true,
		ServerPort: 8686,
		Stream: StreamConfig{
			Buffer: 16,
		},
	}
}

// Validate checks values that cannot be corrected silently
func (c *Config) Validate() error {
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (use: trace, debug, info, warn, error)", c.LogLevel)
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port: %d", c.ServerPort)
	}
	if c.Stream.Buffer < 1 {
		return fmt.Errorf("invalid stream buffer: %d", c.Stream.Buffer)
	}
	return nil
}

type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindInt
)

// Keys lists every settable key
var Keys = map[string]keyKind{
	"log_level":     kindString,
	"log_pretty":    kindBool,
	"server_port":   kindInt,
	"x11.display":   kindString,
	"dbus.enabled":  kindBool,
	"stream.buffer": kindInt,
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_pretty", d.LogPretty)
	v.SetDefault("server_port", d.ServerPort)
	v.SetDefault("x11.display", d.X11.Display)
	v.SetDefault("dbus.enabled", d.DBus.Enabled)
	v.SetDefault("stream.buffer", d.Stream.Buffer)
}

// Manager handles configuration
type Manager struct {
	configPath string
	v          *viper.Viper
	config     *Config
	mu         sync.RWMutex

	// stored holds the file and Set layers only, without environment
	// overrides. Save writes it.
	stored *viper.Viper
}

// DefaultPath returns $HOME/.config/winshift/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "winshift", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when empty. A missing file
// is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	log := logger.WithComponent("config")

	configPath := configFile
	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	stored := viper.New()
	setDefaults(stored)
	stored.SetConfigFile(configPath)
	stored.SetConfigType("yaml")

	m := &Manager{
		configPath: configPath,
		v:          v,
		stored:     stored,
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Info().
			Str("path", configPath).
			Msg("Config file not found, creating new config")
		if err := m.reload(); err != nil {
			return nil, err
		}
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := stored.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := m.reload(); err != nil {
			return nil, err
		}
	}

	log.Debug().
		Str("path", m.configPath).
		Str("log_level", m.config.LogLevel).
		Int("server_port", m.config.ServerPort).
		Msg("Config loaded")

	return m, nil
}

// reload rebuilds the typed config from viper's merged view
func (m *Manager) reload() error {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// GetViper returns the underlying viper instance
func (m *Manager) GetViper() *viper.Viper {
	return m.v
}

// Set parses value for key and applies it. It does not save.
func (m *Manager) Set(key, value string) error {
	kind, ok := Keys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	var parsed interface{}
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		parsed = n
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s (use: true or false)", key, value)
		}
		parsed = b
	default:
		parsed = value
	}

	prev := m.v.Get(key)
	m.v.Set(key, parsed)
	if err := m.reload(); err != nil {
		m.v.Set(key, prev)
		return err
	}
	m.stored.Set(key, parsed)
	return nil
}

// Save writes the file contents plus values applied with Set to disk.
// Environment overrides are not saved.
func (m *Manager) Save() error {
	log := logger.WithComponent("config")

	var cfg Config
	if err := m.stored.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal config")
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	log.Info().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// Watch calls onChange with the new configuration each time the file changes
// on disk. Invalid edits are logged and skipped.
func (m *Manager) Watch(onChange func(*Config)) {
	log := logger.WithComponent("config")

	m.v.OnConfigChange(func(e fsnotify.Event) {
		log.Debug().Str("path", e.Name).Str("op", e.Op.String()).Msg("Config file changed")
		if err := m.stored.ReadInConfig(); err != nil {
			log.Warn().Err(err).Msg("Failed to re-read config file")
		}
		if err := m.reload(); err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid config change")
			return
		}
		onChange(m.Get())
	})
	m.v.WatchConfig()
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
