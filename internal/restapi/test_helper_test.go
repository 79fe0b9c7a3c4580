package restapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transitcore.delaycast.org/internal/app"
	"transitcore.delaycast.org/internal/appconf"
	"transitcore.delaycast.org/internal/clock"
	"transitcore.delaycast.org/internal/gtfs"
	"transitcore.delaycast.org/internal/metrics"
	"transitcore.delaycast.org/internal/query"
	"transitcore.delaycast.org/internal/routing"
)

var hyderabadFeed = map[string]string{
	"routes.txt":     "route_id,route_short_name,route_long_name\nR1,1,Downtown Line\nR2,,Airport Express\n",
	"stops.txt":      "stop_id,stop_name,stop_lat,stop_lon\nS1,First,17.41,78.41\nS2,Second,17.42,78.42\nS3,Depot,,\n",
	"trips.txt":      "route_id,trip_id,trip_headsign\nR1,T1,Downtown\nR1,T2,Airport\nR1,T3,Downtown\n",
	"stop_times.txt": "trip_id,stop_id,stop_sequence\nT1,S2,2\nT1,S1,1\nT2,S3,1\n",
}

type testOptions struct {
	rateLimit int
	providers []routing.Provider
	env       appconf.Environment
}

type testEnv struct {
	api     *RestAPI
	mux     *http.ServeMux
	root    string
	clock   *clock.MockClock
	metrics *metrics.Metrics
}

func writeCityFeed(t *testing.T, root, city string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, city+"_GTFS")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func newTestEnv(t *testing.T, opts testOptions) *testEnv {
	t.Helper()

	root := t.TempDir()
	writeCityFeed(t, root, "hyderabad", hyderabadFeed)

	mc := clock.NewMockClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	m := metrics.New()
	store := gtfs.NewStore(gtfs.Config{BaseDir: root, Env: appconf.Test}, mc, m)

	application := &app.Application{
		Config: appconf.Config{
			Port:      5000,
			Env:       opts.env,
			RateLimit: opts.rateLimit,
		},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:    store,
		Facade:   query.NewFacade(store, query.Config{}, mc),
		Resolver: routing.NewResolver(routing.Config{}, opts.providers, m),
		Clock:    mc,
		Metrics:  m,
	}

	api := NewRestAPI(application)
	t.Cleanup(api.Shutdown)

	mux := http.NewServeMux()
	api.SetRoutes(mux)

	return &testEnv{api: api, mux: mux, root: root, clock: mc, metrics: m}
}

// createTestApi builds an API over the hyderabad fixture with no routing providers.
func createTestApi(t *testing.T) *testEnv {
	return newTestEnv(t, testOptions{})
}

func (e *testEnv) serve(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

func httptestRecorder(t *testing.T, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}
