// Package config provides configuration management for the application
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	// Time zone names are validated without relying on the host database
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Port      string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	LogLevel  string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`
	Refresh   time.Duration `envconfig:"REFRESH_INTERVAL" default:"5m" validate:"gte=0"`
	Source    SourceConfig
	Redis     RedisConfig
	Calendar  CalendarConfig
}

// SourceConfig describes where the schedule documents are read from
type SourceConfig struct {
	// Locations accept http(s) URLs, file:// URLs or plain paths. DetailsURL
	// is optional and names the session export carrying abstracts.
	DataURL         string        `split_words:"true" validate:"required"`
	MixinURL        string        `split_words:"true" validate:"required"`
	DetailsURL      string        `split_words:"true"`
	Timeout         time.Duration `default:"30s" validate:"gt=0"`
	MaxRetries      uint64        `split_words:"true" default:"3"`
	InitialInterval time.Duration `split_words:"true" default:"500ms" validate:"gt=0"`
}

// RedisConfig holds Redis/Valkey configuration
type RedisConfig struct {
	Enabled bool `default:"false"`
	// URI is prioritized if provided, otherwise individual connection parameters are used
	URI       string
	Host      string `default:"localhost"`
	Port      string `default:"6379"`
	Username  string
	Password  string
	DB        int    `default:"0" validate:"gte=0"`
	KeyPrefix string `split_words:"true" default:"zagenda:"`
	// TTL for stored snapshots (0 means no expiration)
	SnapshotTTL time.Duration `split_words:"true" default:"168h" validate:"gte=0"`
}

// CalendarConfig controls the iCalendar export
type CalendarConfig struct {
	Name        string `default:"Conference schedule"`
	Description string
	UIDPrefix   string `split_words:"true" default:"zagenda" validate:"required"`
	// AgendaURL is the public agenda page events link back to
	AgendaURL string `split_words:"true" validate:"omitempty,url"`
	TimeZone  string `split_words:"true" default:"Europe/Berlin" validate:"omitempty,timezone"`
}

// Load reads an optional .env file and then the environment. The result is
// not validated so callers can apply flag overrides first.
func Load() (*Config, error) {
	// A missing .env file is fine, the environment wins either way
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			names := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				names = append(names, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(names, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Address returns the listen address for the HTTP server
func (c *Config) Address() string {
	return ":" + c.Port
}

// RedisAddr returns the host:port pair used when no URI is configured
func (c RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
