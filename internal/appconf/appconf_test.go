package appconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEnvFlagToEnvironment(t *testing.T) {
	tests := []struct {
		input    string
		expected Environment
		wantErr  bool
	}{
		{"", Development, false},
		{"dev", Development, false},
		{"Development", Development, false},
		{"test", Test, false},
		{"prod", Production, false},
		{"production", Production, false},
		{"staging", Development, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			env, err := EnvFlagToEnvironment(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, env)
		})
	}
}

func TestEnvironmentString(t *testing.T) {
	assert.Equal(t, "development", Development.String())
	assert.Equal(t, "test", Test.String())
	assert.Equal(t, "production", Production.String())
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"hyderabad", "karnataka"}, ParseList(" hyderabad, ,karnataka,"))
	assert.Equal(t, []string{}, ParseList(""))
}

func TestLoadFromFileJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"port": 8080,
		"env": "production",
		"rate-limit": 50,
		"cors-origins": ["https://example.com"],
		"log-format": "text",
		"schedule": {
			"base-dir": "/data/gtfs",
			"default-city": "hyderabad",
			"preload": ["hyderabad", "karnataka"],
			"max-snapshot-age": "6h"
		},
		"routing": {
			"timeout": "5s",
			"total-timeout": "12s",
			"assumed-speed-kmh": 30,
			"providers": [
				{"kind": "osrm", "base-url": "https://router.example.com"},
				{"kind": "ors", "base-url": "https://ors.example.com", "profile": "driving-car", "api-key": "secret"}
			]
		}
	}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/data/gtfs", cfg.Schedule.BaseDir)
	assert.Equal(t, []string{"hyderabad", "karnataka"}, cfg.Schedule.Preload)
	assert.Equal(t, 6*time.Hour, cfg.Schedule.MaxSnapshotAgeDuration())
	assert.Equal(t, 5*time.Second, cfg.Routing.TimeoutDuration())
	assert.Equal(t, 12*time.Second, cfg.Routing.TotalTimeoutDuration())
	require.Len(t, cfg.Routing.Providers, 2)
	assert.Equal(t, "ors", cfg.Routing.Providers[1].Kind)
	assert.Equal(t, "secret", cfg.Routing.Providers[1].APIKey)

	app := cfg.ToAppConfig()
	assert.Equal(t, Production, app.Env)
	assert.Equal(t, 50, app.RateLimit)
	assert.Equal(t, "text", app.LogFormat)
}

func TestLoadFromFileYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
env: test
schedule:
  project-root: /srv/transit
  preload: [hyderabad]
routing:
  fallback-steps: 20
  providers:
    - kind: osrm
      base-url: http://localhost:5000
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/transit", cfg.Schedule.ProjectRoot)
	assert.Equal(t, 20, cfg.Routing.FallbackSteps)
	assert.Equal(t, time.Duration(0), cfg.Routing.TimeoutDuration())

	app := cfg.ToAppConfig()
	assert.Equal(t, 5000, app.Port)
	assert.Equal(t, Test, app.Env)
}

func TestLoadFromFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{
			name:    "malformed json",
			file:    "bad.json",
			body:    `{"port": `,
			wantErr: "failed to parse JSON config",
		},
		{
			name:    "malformed yaml",
			file:    "bad.yaml",
			body:    "port: [unterminated",
			wantErr: "failed to parse YAML config",
		},
		{
			name:    "port out of range",
			file:    "port.json",
			body:    `{"port": 70000}`,
			wantErr: "invalid configuration",
		},
		{
			name:    "unknown provider kind",
			file:    "kind.json",
			body:    `{"routing": {"providers": [{"kind": "graphhopper", "base-url": "http://x"}]}}`,
			wantErr: "invalid configuration",
		},
		{
			name:    "provider without url",
			file:    "url.json",
			body:    `{"routing": {"providers": [{"kind": "osrm"}]}}`,
			wantErr: "invalid configuration",
		},
		{
			name:    "bad duration",
			file:    "dur.json",
			body:    `{"routing": {"timeout": "soon"}}`,
			wantErr: "routing.timeout",
		},
		{
			name:    "negative total timeout",
			file:    "total.json",
			body:    `{"routing": {"total-timeout": "-1s"}}`,
			wantErr: "routing.total-timeout",
		},
		{
			name:    "negative snapshot age",
			file:    "age.json",
			body:    `{"schedule": {"max-snapshot-age": "-1m"}}`,
			wantErr: "schedule.max-snapshot-age",
		},
		{
			name:    "bad log format",
			file:    "log.json",
			body:    `{"log-format": "xml"}`,
			wantErr: "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat config file")
}
