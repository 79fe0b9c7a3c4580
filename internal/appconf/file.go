package appconf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk configuration, accepted as JSON or YAML.
type FileConfig struct {
	Port            int      `json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Env             string   `json:"env" yaml:"env" validate:"omitempty,oneof=development dev test production prod"`
	Verbose         bool     `json:"verbose" yaml:"verbose"`
	RateLimit       int      `json:"rate-limit" yaml:"rate-limit" validate:"gte=0"`
	RateLimitExempt []string `json:"rate-limit-exempt" yaml:"rate-limit-exempt" validate:"dive,ip"`
	CORSOrigins     []string `json:"cors-origins" yaml:"cors-origins"`
	LogFormat       string   `json:"log-format" yaml:"log-format" validate:"omitempty,oneof=json text"`
	LogLevel        string   `json:"log-level" yaml:"log-level" validate:"omitempty,oneof=debug info warn warning error"`
	LogFile         string   `json:"log-file" yaml:"log-file"`

	Schedule ScheduleSection `json:"schedule" yaml:"schedule"`
	Routing  RoutingSection  `json:"routing" yaml:"routing"`
}

// ScheduleSection configures where GTFS city folders live and which cities load at startup.
type ScheduleSection struct {
	BaseDir        string   `json:"base-dir" yaml:"base-dir"`
	ProjectRoot    string   `json:"project-root" yaml:"project-root"`
	DefaultCity    string   `json:"default-city" yaml:"default-city"`
	Preload        []string `json:"preload" yaml:"preload"`
	MaxSnapshotAge string   `json:"max-snapshot-age" yaml:"max-snapshot-age"`
}

// RoutingSection configures the road-routing providers.
type RoutingSection struct {
	Timeout       string           `json:"timeout" yaml:"timeout"`
	TotalTimeout  string           `json:"total-timeout" yaml:"total-timeout"`
	AssumedSpeed  float64          `json:"assumed-speed-kmh" yaml:"assumed-speed-kmh" validate:"gte=0"`
	FallbackSteps int              `json:"fallback-steps" yaml:"fallback-steps" validate:"gte=0"`
	RatePerSecond float64          `json:"rate-per-second" yaml:"rate-per-second" validate:"gte=0"`
	Alternatives  bool             `json:"alternatives" yaml:"alternatives"`
	UserAgent     string           `json:"user-agent" yaml:"user-agent"`
	Providers     []ProviderConfig `json:"providers" yaml:"providers" validate:"dive"`
}

// ProviderConfig describes one external routing provider.
type ProviderConfig struct {
	Kind    string `json:"kind" yaml:"kind" validate:"required,oneof=osrm ors"`
	BaseURL string `json:"base-url" yaml:"base-url" validate:"required,url"`
	Profile string `json:"profile" yaml:"profile"`
	APIKey  string `json:"api-key" yaml:"api-key"`
}

// LoadFromFile reads, parses and validates a configuration file. The format
// follows the extension: .yaml/.yml use YAML, everything else JSON.
func LoadFromFile(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the duration strings.
func (c *FileConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := parseOptionalDuration(c.Schedule.MaxSnapshotAge); err != nil {
		return fmt.Errorf("invalid configuration: schedule.max-snapshot-age: %w", err)
	}
	if _, err := parseOptionalDuration(c.Routing.Timeout); err != nil {
		return fmt.Errorf("invalid configuration: routing.timeout: %w", err)
	}
	if _, err := parseOptionalDuration(c.Routing.TotalTimeout); err != nil {
		return fmt.Errorf("invalid configuration: routing.total-timeout: %w", err)
	}
	return nil
}

// ToAppConfig converts the file settings into a Config, applying defaults.
func (c *FileConfig) ToAppConfig() Config {
	env, _ := EnvFlagToEnvironment(c.Env)
	port := c.Port
	if port == 0 {
		port = 5000
	}
	return Config{
		Port:            port,
		Env:             env,
		Verbose:         c.Verbose,
		RateLimit:       c.RateLimit,
		RateLimitExempt: c.RateLimitExempt,
		CORSOrigins:     c.CORSOrigins,
		LogFormat:       c.LogFormat,
		LogLevel:        c.LogLevel,
		LogFile:         c.LogFile,
	}
}

// MaxSnapshotAgeDuration returns the parsed schedule.max-snapshot-age, zero when unset.
func (s ScheduleSection) MaxSnapshotAgeDuration() time.Duration {
	d, _ := parseOptionalDuration(s.MaxSnapshotAge)
	return d
}

// TimeoutDuration returns the parsed routing.timeout, zero when unset.
func (r RoutingSection) TimeoutDuration() time.Duration {
	d, _ := parseOptionalDuration(r.Timeout)
	return d
}

// TotalTimeoutDuration returns the parsed routing.total-timeout, zero when unset.
func (r RoutingSection) TotalTimeoutDuration() time.Duration {
	d, _ := parseOptionalDuration(r.TotalTimeout)
	return d
}

func parseOptionalDuration(raw string) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", raw)
	}
	return d, nil
}
