package jamf

import (
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
)

// ProtocolVersion is sent in the X-Server-Protocol-Version header.
const ProtocolVersion = "3"

// Config configures the Jamf School client. Credentials are read from the
// environment; everything else usually comes from the config file.
type Config struct {
	URL      string `env:"JAMF_API_URL"`
	User     string `env:"JAMF_API_USER"`
	Password string `env:"JAMF_API_PASSWORD"`

	Timeout    time.Duration `env:"JAMF_TIMEOUT" envDefault:"30s"`
	MaxElapsed time.Duration `env:"JAMF_MAX_ELAPSED" envDefault:"2m"`

	// LocationID scopes snapshots to one location. Empty means all.
	LocationID string `env:"JAMF_LOCATION_ID"`

	// PersonMarker and GroupMarker are written to user notes and class
	// descriptions and identify records this tool created.
	PersonMarker string `env:"JAMF_PERSON_MARKER"`
	GroupMarker  string `env:"JAMF_GROUP_MARKER"`
}

// ConfigFromEnv parses Config from environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.NewConfigError("jamf", "failed to parse environment", err)
	}
	return cfg, nil
}

// Validate checks that the client can be built.
func (c Config) Validate() error {
	if c.URL == "" {
		return &errors.ValidationError{Field: "jamf.url", Message: "is required"}
	}
	if c.User == "" || c.Password == "" {
		return &errors.ValidationError{Field: "JAMF_API_USER", Message: "credentials are required"}
	}
	return nil
}
