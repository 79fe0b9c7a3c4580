package restapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitcore.delaycast.org/internal/metrics"
	"transitcore.delaycast.org/internal/routing"
	"transitcore.delaycast.org/internal/utils"
)

const routeInfoTarget = "/api/route-info?start_lat=17.4&start_lon=78.4&end_lat=17.5&end_lon=78.5"

func TestRouteInfoFallbackWithoutProviders(t *testing.T) {
	env := createTestApi(t)

	rec := env.serve(t, http.MethodGet, routeInfoTarget)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, noStore, rec.Header().Get("Cache-Control"))

	res := decodeBody[routing.Resolution](t, rec)
	assert.True(t, res.Fallback)
	assert.Equal(t, 0, res.SelectedRoute)
	require.Len(t, res.Routes, 1)
	assert.Len(t, res.Routes[0].Coordinates, 11)

	expected := utils.DistanceKm(17.4, 78.4, 17.5, 78.5)
	assert.InEpsilon(t, expected, res.Routes[0].DistanceKm, 0.01)
	assert.Equal(t, []float64{17.4, 78.4}, res.Routes[0].Coordinates[0])
	assert.Equal(t, []float64{17.5, 78.5}, res.Routes[0].Coordinates[10])

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RouteResolutionsTotal.WithLabelValues(metrics.ResolutionFallback)))
}

func TestRouteInfoAntipodalPoints(t *testing.T) {
	env := createTestApi(t)

	rec := env.serve(t, http.MethodGet, "/api/route-info?start_lat=-88.5&start_lon=-172.7&end_lat=88.5&end_lon=7.3")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[routing.Resolution](t, rec)
	assert.True(t, res.Fallback)
	require.Len(t, res.Routes, 1)
	assert.InDelta(t, 20015.09, res.Routes[0].DistanceKm, 0.01)
}

func TestRouteInfoUsesProvider(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"code":"Ok","routes":[{"distance":1,"duration":1,"geometry":"_p~iF~ps|U_ulLnnqC_mqNvxq`+"`"+`@","legs":[{"distance":15234.5,"duration":1830}]}]}`)
	}))
	t.Cleanup(upstream.Close)

	env := newTestEnv(t, testOptions{providers: []routing.Provider{
		&routing.OSRMProvider{BaseURL: upstream.URL, Client: upstream.Client()},
	}})

	rec := env.serve(t, http.MethodGet, routeInfoTarget)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[routing.Resolution](t, rec)
	assert.False(t, res.Fallback)
	assert.Equal(t, "osrm", res.Provider)
	require.Len(t, res.Routes, 1)
	assert.Equal(t, 15.23, res.Routes[0].DistanceKm)
	assert.Equal(t, 30.5, res.Routes[0].DurationMin)
	assert.Len(t, res.Routes[0].Coordinates, 3)
}

func TestRouteInfoProviderFailureFallsBack(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(upstream.Close)

	env := newTestEnv(t, testOptions{providers: []routing.Provider{
		&routing.OSRMProvider{BaseURL: upstream.URL, Client: upstream.Client()},
	}})

	rec := env.serve(t, http.MethodGet, routeInfoTarget)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[routing.Resolution](t, rec)
	assert.True(t, res.Fallback)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, "OSRM API error: 502", res.Attempts[0].Error)
}

func TestRouteInfoRejectsInvalidNumbers(t *testing.T) {
	env := createTestApi(t)

	for _, target := range []string{
		"/api/route-info?start_lat=abc&start_lon=78.4&end_lat=17.5&end_lon=78.5",
		"/api/route-info?start_lat=17.4&start_lon=78.4&end_lat=17.5",
		"/api/route-info?start_lat=17.4&start_lon=Inf&end_lat=17.5&end_lon=78.5",
	} {
		t.Run(target, func(t *testing.T) {
			rec := env.serve(t, http.MethodGet, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeBody[ErrorResponse](t, rec).Error, "invalid coordinate")
		})
	}
}
