// Package config holds small helpers over viper shared by the CLI.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GetString is a helper to get string values from Viper.
// It checks both Viper configuration and the OS environment, where the key
// is upper-cased with dots replaced by underscores.
func GetString(key string) string {
	if value := viper.GetString(key); value != "" {
		return value
	}
	return os.Getenv(EnvName(key))
}

// GetDuration returns the duration at key or def when unset or invalid.
func GetDuration(key string, def time.Duration) time.Duration {
	raw := GetString(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetInt returns the integer at key or def when unset or not positive.
func GetInt(key string, def int) int {
	if n := viper.GetInt(key); n > 0 {
		return n
	}
	return def
}

// GetStringOr returns the string at key or def when unset.
func GetStringOr(key, def string) string {
	if value := GetString(key); value != "" {
		return value
	}
	return def
}

// EnvName maps a config key to its environment variable, e.g.
// "jamf.url" to "JAMF_URL".
func EnvName(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}
