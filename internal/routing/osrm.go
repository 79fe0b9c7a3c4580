package routing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"transitcore.delaycast.org/internal/utils"
)

// OSRMProvider queries an OSRM route service, addressing the two points in
// the request path.
type OSRMProvider struct {
	BaseURL string
	// Profile defaults to "driving".
	Profile      string
	UserAgent    string
	Alternatives bool
	Client       *http.Client
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
		Legs     []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

func (p *OSRMProvider) Name() string { return "osrm" }

func (p *OSRMProvider) Route(ctx context.Context, start, end utils.Coordinate) ([]Candidate, error) {
	profile := p.Profile
	if profile == "" {
		profile = "driving"
	}

	endpoint := fmt.Sprintf("%s/route/v1/%s/%s,%s;%s,%s",
		strings.TrimRight(p.BaseURL, "/"), url.PathEscape(profile),
		formatCoord(start.Lon), formatCoord(start.Lat),
		formatCoord(end.Lon), formatCoord(end.Lat))

	query := url.Values{}
	query.Set("overview", "full")
	query.Set("geometries", "polyline")
	if p.Alternatives {
		query.Set("alternatives", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating OSRM request: %w", err)
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	var parsed osrmResponse
	if err := doJSON(clientOrDefault(p.Client), req, "OSRM", &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("%w by OSRM (code %q)", ErrNoRoute, parsed.Code)
	}

	candidates := make([]Candidate, 0, len(parsed.Routes))
	for _, r := range parsed.Routes {
		c := Candidate{DistanceMeters: r.Distance, DurationSeconds: r.Duration, Geometry: r.Geometry}
		// Two waypoints produce a single leg.
		if len(r.Legs) > 0 {
			c.DistanceMeters = r.Legs[0].Distance
			c.DurationSeconds = r.Legs[0].Duration
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func clientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return newProviderHTTPClient(DefaultTimeout)
}
