package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitcore.delaycast.org/internal/appconf"
	"transitcore.delaycast.org/internal/gtfs"
	"transitcore.delaycast.org/internal/routing"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeHyderabad(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "hyderabad_GTFS")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	files := map[string]string{
		"routes.txt":     "route_id,route_short_name\n219,219\n",
		"stops.txt":      "stop_id,stop_name,stop_lat,stop_lon\nS1,Koti,17.385,78.486\n",
		"trips.txt":      "route_id,trip_id,trip_headsign\n219,T1,Secunderabad\n",
		"stop_times.txt": "trip_id,stop_id,stop_sequence\nT1,S1,1\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return root
}

func testSettings(t *testing.T) Settings {
	return Settings{
		App:  appconf.Config{Port: 8080, Env: appconf.Test, RateLimit: 100},
		Gtfs: gtfs.Config{BaseDir: writeHyderabad(t), Env: appconf.Test},
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestBuildApplication(t *testing.T) {
	coreApp, err := BuildApplication(testSettings(t), testLogger)

	require.NoError(t, err)
	assert.NotNil(t, coreApp.Logger)
	assert.NotNil(t, coreApp.Store)
	assert.NotNil(t, coreApp.Facade)
	assert.NotNil(t, coreApp.Resolver)
	assert.NotNil(t, coreApp.Metrics)
	assert.Equal(t, 8080, coreApp.Config.Port)
	assert.Empty(t, coreApp.Store.Cities(), "nothing is loaded before first use")
}

func TestBuildApplicationErrorHandling(t *testing.T) {
	t.Run("search root is a file", func(t *testing.T) {
		settings := testSettings(t)
		file := filepath.Join(t.TempDir(), "not-a-dir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
		settings.Gtfs.BaseDir = file

		_, err := BuildApplication(settings, testLogger)
		assert.ErrorContains(t, err, "failed to initialize schedule store")
	})

	t.Run("missing search root is tolerated", func(t *testing.T) {
		settings := testSettings(t)
		settings.Gtfs.ProjectRoot = filepath.Join(t.TempDir(), "later")

		_, err := BuildApplication(settings, testLogger)
		assert.NoError(t, err)
	})

	t.Run("unknown provider kind", func(t *testing.T) {
		settings := testSettings(t)
		settings.Providers = []appconf.ProviderConfig{{Kind: "graphhopper", BaseURL: "https://example.com"}}

		_, err := BuildApplication(settings, testLogger)
		assert.ErrorContains(t, err, "failed to initialize routing providers")
	})
}

func TestCreateServer(t *testing.T) {
	coreApp, err := BuildApplication(testSettings(t), testLogger)
	require.NoError(t, err)

	srv, api := CreateServer(coreApp, coreApp.Config)
	defer api.Shutdown()

	assert.Equal(t, ":8080", srv.Addr, "Server address should match port")
	assert.NotNil(t, srv.Handler)
	assert.Equal(t, time.Minute, srv.IdleTimeout, "IdleTimeout should be 1 minute")
	assert.Equal(t, 5*time.Second, srv.ReadTimeout, "ReadTimeout should be 5 seconds")
	assert.Equal(t, 10*time.Second, srv.WriteTimeout, "WriteTimeout should be 10 seconds")
}

func TestCreateServerWriteTimeoutCoversProviders(t *testing.T) {
	tests := []struct {
		name    string
		routing routing.Config
		want    time.Duration
	}{
		{"default budget", routing.Config{Timeout: 8 * time.Second}, 12 * time.Second},
		{"larger budget", routing.Config{Timeout: 8 * time.Second, TotalTimeout: 30 * time.Second}, 18 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings(t)
			settings.Routing = tt.routing
			settings.Providers = []appconf.ProviderConfig{
				{Kind: "osrm", BaseURL: "https://osrm.example.com"},
				{Kind: "ors", BaseURL: "https://ors.example.com"},
			}
			coreApp, err := BuildApplication(settings, testLogger)
			require.NoError(t, err)

			srv, api := CreateServer(coreApp, coreApp.Config)
			defer api.Shutdown()

			assert.Equal(t, tt.want, srv.WriteTimeout)
		})
	}
}

func TestCreateServerHandlerResponds(t *testing.T) {
	coreApp, err := BuildApplication(testSettings(t), testLogger)
	require.NoError(t, err)

	srv, api := CreateServer(coreApp, coreApp.Config)
	defer api.Shutdown()

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/routes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"route_id":"219","route_short_name":"219"}]`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/?dataType=routes", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "debug pages are served outside production")
}

func TestRunServesAndStopsOnCancel(t *testing.T) {
	settings := testSettings(t)
	settings.App.Port = freePort(t)
	coreApp, err := BuildApplication(settings, testLogger)
	require.NoError(t, err)

	srv, api := CreateServer(coreApp, settings.App)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, coreApp, api, []string{"hyderabad"}) }()

	healthURL := "http://127.0.0.1:" + strconv.Itoa(settings.App.Port) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		var health struct {
			Cities []gtfs.CityStatus `json:"cities"`
		}
		if json.NewDecoder(resp.Body).Decode(&health) != nil {
			return false
		}
		return resp.StatusCode == http.StatusOK && len(health.Cities) == 1
	}, 5*time.Second, 20*time.Millisecond, "server should come up and preload hyderabad")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err, "Server should shutdown cleanly")
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunFailsWhenPortBusy(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	settings := testSettings(t)
	settings.App.Port = l.Addr().(*net.TCPAddr).Port
	coreApp, err := BuildApplication(settings, testLogger)
	require.NoError(t, err)

	srv, api := CreateServer(coreApp, settings.App)
	err = Run(context.Background(), srv, coreApp, api, nil)
	assert.ErrorContains(t, err, "failed to listen")
}

func TestParseSettingsFlags(t *testing.T) {
	env := map[string]string{"ORS_URL": "https://ors.example.com", "ORS_API_KEY": "secret"}
	getenv := func(k string) string { return env[k] }

	settings, err := parseSettings([]string{
		"-port", "6000",
		"-env", "prod",
		"-gtfs-dir", "/srv/gtfs",
		"-preload", "hyderabad, karnataka",
		"-max-snapshot-age", "1h",
		"-routing-timeout", "3s",
		"-routing-total-timeout", "7s",
		"-cors-origins", "https://a.example,https://b.example",
	}, getenv, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 6000, settings.App.Port)
	assert.Equal(t, appconf.Production, settings.App.Env)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, settings.App.CORSOrigins)
	assert.Equal(t, "/srv/gtfs", settings.Gtfs.BaseDir)
	assert.Equal(t, appconf.Production, settings.Gtfs.Env)
	assert.Equal(t, []string{"hyderabad", "karnataka"}, settings.Preload)
	assert.Equal(t, time.Hour, settings.Query.MaxSnapshotAge)
	assert.Equal(t, 3*time.Second, settings.Routing.Timeout)
	assert.Equal(t, 7*time.Second, settings.Routing.TotalTimeout)
	assert.Equal(t, 25.0, settings.Routing.AssumedSpeedKmh)
	assert.Equal(t, defaultUserAgent, settings.UserAgent)
	assert.Equal(t, []appconf.ProviderConfig{
		{Kind: "osrm", BaseURL: defaultOSRMURL},
		{Kind: "ors", BaseURL: "https://ors.example.com", APIKey: "secret"},
	}, settings.Providers)
}

func TestParseSettingsDefaults(t *testing.T) {
	settings, err := parseSettings(nil, func(string) string { return "" }, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 5000, settings.App.Port)
	assert.Equal(t, appconf.Development, settings.App.Env)
	assert.Equal(t, 100, settings.App.RateLimit)
	assert.Equal(t, "data", settings.Gtfs.BaseDir)
	assert.Equal(t, "hyderabad", settings.Query.DefaultCity)
	assert.Len(t, settings.Providers, 1)
}

func TestParseSettingsErrors(t *testing.T) {
	var out bytes.Buffer
	getenv := func(string) string { return "" }

	_, err := parseSettings([]string{"-env", "staging"}, getenv, &out)
	assert.ErrorContains(t, err, "unknown environment")

	_, err = parseSettings([]string{"-osrm-url", "not a url"}, getenv, &out)
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = parseSettings([]string{"-no-such-flag"}, getenv, &out)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "no-such-flag")
}

func TestParseSettingsFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transitcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 7000
env: test
rate-limit: 20
schedule:
  base-dir: /srv/gtfs
  default-city: karnataka
  preload: [karnataka]
  max-snapshot-age: 30m
routing:
  timeout: 4s
  assumed-speed-kmh: 30
  fallback-steps: 20
  providers:
    - kind: ors
      base-url: https://api.openrouteservice.org
      api-key: abc
`), 0o644))

	settings, err := parseSettings([]string{"-config", path, "-port", "1"}, func(string) string { return "" }, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 7000, settings.App.Port, "a config file replaces the other flags")
	assert.Equal(t, appconf.Test, settings.App.Env)
	assert.Equal(t, 20, settings.App.RateLimit)
	assert.Equal(t, "/srv/gtfs", settings.Gtfs.BaseDir)
	assert.Equal(t, "karnataka", settings.Query.DefaultCity)
	assert.Equal(t, 30*time.Minute, settings.Query.MaxSnapshotAge)
	assert.Equal(t, []string{"karnataka"}, settings.Preload)
	assert.Equal(t, routing.Config{Timeout: 4 * time.Second, AssumedSpeedKmh: 30, FallbackSteps: 20}, settings.Routing)
	require.Len(t, settings.Providers, 1)
	assert.Equal(t, "abc", settings.Providers[0].APIKey)
	assert.Equal(t, defaultUserAgent, settings.UserAgent)

	_, err = parseSettings([]string{"-config", filepath.Join(t.TempDir(), "missing.json")}, func(string) string { return "" }, io.Discard)
	assert.ErrorContains(t, err, "failed to stat config file")
}
