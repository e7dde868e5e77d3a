package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ervinkurbegovic/jamfsync"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/constants"
	"github.com/ervinkurbegovic/jamfsync/internal/config"
	"github.com/ervinkurbegovic/jamfsync/internal/iserv"
	"github.com/ervinkurbegovic/jamfsync/internal/jamf"
	"github.com/ervinkurbegovic/jamfsync/internal/transport"
	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/lock"
	"github.com/ervinkurbegovic/jamfsync/pkg/reconciler"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	Jamf    jamf.Config
	IServ   iserv.Config
	Sync    SyncConfig
	Mapping MappingConfig
	Lock    LockConfig

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// SyncConfig configures planning and scheduling.
type SyncConfig struct {
	// Location is a Jamf location name, resolved when LocationID is empty.
	Location           string
	LocationID         string
	Concurrency        int
	SyncMarker         string
	AllTeachersPattern string
	PersonMarker       string
	GroupMarker        string
	GroupPrefix        string
	GroupSuffix        string
	Interval           time.Duration
}

// MappingConfig selects the mapping store.
type MappingConfig struct {
	Backend string
	Path    string
	DSN     string
}

// LockConfig selects the session lock.
type LockConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	Key           string
	TTL           time.Duration
}

// secrets are only ever read from the environment.
type secrets struct {
	Jamf struct {
		User     string `env:"JAMF_API_USER"`
		Password string `env:"JAMF_API_PASSWORD"`
	}
	IServDSN      string `env:"ISERV_DSN"`
	MappingDSN    string `env:"MAPPING_DSN"`
	RedisPassword string `env:"REDIS_PASSWORD"`
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (~/.jamfsync.yaml or ./.jamfsync.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	viper.SetEnvPrefix("JAMFSYNC")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".jamfsync")
	}

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()

	var s secrets
	if err := env.Parse(&s); err != nil {
		return nil, errors.NewConfigError("environment", "failed to parse secrets", err)
	}

	cfg := &Config{
		Verbose:    viper.GetBool("verbose"),
		Quiet:      viper.GetBool("quiet"),
		NoColor:    viper.GetBool("no-color"),
		Format:     viper.GetString("format"),
		ConfigFile: viper.ConfigFileUsed(),

		Jamf: jamf.Config{
			URL:        config.GetString("jamf.url"),
			User:       s.Jamf.User,
			Password:   s.Jamf.Password,
			Timeout:    config.GetDuration("jamf.timeout", transport.DefaultHTTPTimeout),
			MaxElapsed: config.GetDuration("jamf.max_elapsed", transport.DefaultMaxElapsed),
		},
		IServ: iserv.Config{
			DSN:          s.IServDSN,
			MailDomain:   config.GetString("iserv.mail_domain"),
			TeacherGroup: config.GetStringOr("iserv.teacher_group", reconciler.DefaultTeacherGroup),
		},
		Sync: SyncConfig{
			Location:           config.GetString("sync.location"),
			LocationID:         config.GetString("sync.location_id"),
			Concurrency:        config.GetInt("sync.concurrency", applier.DefaultConcurrency),
			SyncMarker:         config.GetStringOr("iserv.sync_marker", reconciler.DefaultSyncMarker),
			AllTeachersPattern: config.GetStringOr("sync.all_teachers_pattern", reconciler.DefaultAllTeachersPattern),
			PersonMarker:       config.GetStringOr("sync.person_marker", reconciler.DefaultPersonNotes),
			GroupMarker:        config.GetStringOr("sync.group_marker", reconciler.DefaultGroupDescription),
			GroupPrefix:        config.GetString("sync.group_prefix"),
			GroupSuffix:        config.GetString("sync.group_suffix"),
			Interval:           config.GetDuration("sync.interval", jamfsync.DefaultAutoSyncInterval),
		},
		Mapping: MappingConfig{
			Backend: config.GetStringOr("mapping.backend", constants.BackendFile),
			Path:    config.GetStringOr("mapping.path", defaultMappingPath()),
			DSN:     s.MappingDSN,
		},
		Lock: LockConfig{
			Backend:       config.GetStringOr("lock.backend", constants.LockLocal),
			RedisAddr:     config.GetStringOr("lock.redis_addr", "localhost:6379"),
			RedisPassword: s.RedisPassword,
			Key:           config.GetStringOr("lock.key", session.DefaultLockName),
			TTL:           config.GetDuration("lock.ttl", lock.DefaultTTL),
		},

		// Logging configuration
		LogFormat: config.GetStringOr("log.format", getEnvOrDefault("LOG_FORMAT", "auto")),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	cfg.Jamf.LocationID = cfg.Sync.LocationID
	cfg.Jamf.PersonMarker = cfg.Sync.PersonMarker
	cfg.Jamf.GroupMarker = cfg.Sync.GroupMarker
	cfg.IServ.LocationID = cfg.Sync.LocationID

	return cfg, nil
}

// Validate checks the settings that are needed to run a pass.
func (c *Config) Validate() error {
	if err := c.Jamf.Validate(); err != nil {
		return err
	}
	if err := c.IServ.Validate(); err != nil {
		return err
	}
	if c.Sync.Concurrency < 1 {
		return &errors.ValidationError{Field: "sync.concurrency", Value: c.Sync.Concurrency, Message: "must be at least 1"}
	}
	switch c.Mapping.Backend {
	case constants.BackendMemory, constants.BackendFile, constants.BackendPostgres:
	default:
		return &errors.ValidationError{Field: "mapping.backend", Value: c.Mapping.Backend, Message: "must be memory, file or postgres"}
	}
	switch c.Lock.Backend {
	case constants.LockLocal, constants.LockRedis, constants.LockPostgres:
	default:
		return &errors.ValidationError{Field: "lock.backend", Value: c.Lock.Backend, Message: "must be local, redis or postgres"}
	}
	return nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

func defaultMappingPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "jamfsync-mapping.yaml"
	}
	return filepath.Join(home, ".jamfsync", "mapping.yaml")
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// reloadConfig loads the configuration again with an explicit config file.
func reloadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	viper.Set("config", path)
	return LoadConfig()
}
