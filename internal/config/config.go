// Package config loads and persists the server configuration. The file
// lives at $HOME/.msg-store/config.json by default. MSG_STORE_-prefixed
// environment variables override keys that have a default or appear in
// the file; other keys are not read from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultDir is the per-user configuration directory.
const DefaultDir = ".msg-store"

// DefaultFileName is the configuration file name inside DefaultDir.
const DefaultFileName = "config.json"

// GroupConfig seeds one priority group's byte cap at startup.
type GroupConfig struct {
	Priority    uint32  `mapstructure:"priority" json:"priority"`
	MaxByteSize *uint64 `mapstructure:"max_byte_size" json:"max_byte_size,omitempty"`
}

// LogConfig holds logging-related configuration.
type LogConfig struct {
	Level      string `mapstructure:"level" json:"level,omitempty"`
	Format     string `mapstructure:"format" json:"format,omitempty"`
	Output     string `mapstructure:"output" json:"output,omitempty"`
	Filename   string `mapstructure:"filename" json:"filename,omitempty"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size,omitempty"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups,omitempty"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age,omitempty"`
	Compress   bool   `mapstructure:"compress" json:"compress,omitempty"`
}

// Config represents the application configuration.
type Config struct {
	Host            string        `mapstructure:"host" json:"host" validate:"required"`
	Port            int           `mapstructure:"port" json:"port" validate:"gte=1,lte=65535"`
	NodeID          uint16        `mapstructure:"node_id" json:"node_id"`
	Database        string        `mapstructure:"database" json:"database" validate:"omitempty,oneof=mem leveldb"`
	LevelDBPath     string        `mapstructure:"leveldb_path" json:"leveldb_path,omitempty"`
	FileStorage     bool          `mapstructure:"file_storage" json:"file_storage"`
	FileStoragePath string        `mapstructure:"file_storage_path" json:"file_storage_path,omitempty"`
	MaxByteSize     *uint64       `mapstructure:"max_byte_size" json:"max_byte_size,omitempty"`
	Groups          []GroupConfig `mapstructure:"groups" json:"groups,omitempty"`
	CacheSize       int           `mapstructure:"cache_size" json:"cache_size,omitempty" validate:"gte=0"`
	Update          *bool         `mapstructure:"update" json:"update,omitempty"`
	NoUpdate        *bool         `mapstructure:"no_update" json:"no_update,omitempty"`
	Log             LogConfig     `mapstructure:"log" json:"log,omitempty"`

	// path the config was loaded from; Save writes back here.
	path string
}

// Validation errors surfaced as fatal config errors at startup.
var (
	ErrUpdateConflict      = errors.New("config: 'update' and 'no_update' are mutually exclusive")
	ErrLevelDBPathRequired = errors.New("config: database 'leveldb' requires 'leveldb_path'")
	ErrFilePathRequired    = errors.New("config: 'file_storage' requires 'file_storage_path'")
)

// DefaultPath returns $HOME/.msg-store/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DefaultDir, DefaultFileName), nil
}

// Load reads the configuration file at configPath (the default location
// when empty) and applies environment overrides. A missing file is not
// an error: defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8080)
	v.SetDefault("database", "mem")
	v.SetDefault("cache_size", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetEnvPrefix("MSG_STORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		var err error
		configPath, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !os.IsNotExist(err) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.path = configPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Update != nil && c.NoUpdate != nil {
		return ErrUpdateConflict
	}
	if c.Database == "leveldb" && c.LevelDBPath == "" {
		return ErrLevelDBPathRequired
	}
	if c.FileStorage && c.FileStoragePath == "" {
		return ErrFilePathRequired
	}
	for _, g := range c.Groups {
		if g.MaxByteSize == nil {
			return fmt.Errorf("config: group %d has no max_byte_size", g.Priority)
		}
	}
	return nil
}

// SelfPersist reports whether administrative cap changes should be
// written back to the config file. Persisting is the default; 'no_update'
// switches it off.
func (c *Config) SelfPersist() bool {
	if c.NoUpdate != nil && *c.NoUpdate {
		return false
	}
	if c.Update != nil {
		return *c.Update
	}
	return true
}

// GroupCaps converts the groups section into the engine's defaults map.
func (c *Config) GroupCaps() map[uint32]*uint64 {
	if len(c.Groups) == 0 {
		return nil
	}
	caps := make(map[uint32]*uint64, len(c.Groups))
	for _, g := range c.Groups {
		caps[g.Priority] = g.MaxByteSize
	}
	return caps
}

// SetStoreMax updates the in-memory store cap for a later Save.
func (c *Config) SetStoreMax(max *uint64) {
	c.MaxByteSize = max
}

// SetGroupMax updates or appends the in-memory group cap for a later Save.
func (c *Config) SetGroupMax(priority uint32, max *uint64) {
	for i := range c.Groups {
		if c.Groups[i].Priority == priority {
			c.Groups[i].MaxByteSize = max
			return
		}
	}
	c.Groups = append(c.Groups, GroupConfig{Priority: priority, MaxByteSize: max})
}

// RemoveGroup drops the group entry for a later Save.
func (c *Config) RemoveGroup(priority uint32) {
	for i := range c.Groups {
		if c.Groups[i].Priority == priority {
			c.Groups = append(c.Groups[:i], c.Groups[i+1:]...)
			return
		}
	}
}

// Save writes the configuration back to the file it was loaded from,
// creating the directory when needed.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config: no file path to save to")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", c.path, err)
	}
	return nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
