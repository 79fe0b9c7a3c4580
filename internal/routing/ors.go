package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"transitcore.delaycast.org/internal/utils"
)

// ORSProvider queries the OpenRouteService directions API with a JSON body.
type ORSProvider struct {
	BaseURL string
	// Profile defaults to "driving-car".
	Profile      string
	APIKey       string
	UserAgent    string
	Alternatives bool
	Client       *http.Client
}

type orsAlternatives struct {
	TargetCount  int     `json:"target_count"`
	ShareFactor  float64 `json:"share_factor"`
	WeightFactor float64 `json:"weight_factor"`
}

type orsRequest struct {
	Coordinates       [][]float64      `json:"coordinates"`
	AlternativeRoutes *orsAlternatives `json:"alternative_routes,omitempty"`
}

type orsLeg struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

type orsResponse struct {
	Routes []struct {
		Summary  orsLeg   `json:"summary"`
		Segments []orsLeg `json:"segments"`
		Geometry string   `json:"geometry"`
	} `json:"routes"`
}

func (p *ORSProvider) Name() string { return "ors" }

func (p *ORSProvider) Route(ctx context.Context, start, end utils.Coordinate) ([]Candidate, error) {
	profile := p.Profile
	if profile == "" {
		profile = "driving-car"
	}
	endpoint := fmt.Sprintf("%s/v2/directions/%s", strings.TrimRight(p.BaseURL, "/"), url.PathEscape(profile))

	body := orsRequest{
		Coordinates: [][]float64{{start.Lon, start.Lat}, {end.Lon, end.Lat}},
	}
	if p.Alternatives {
		body.AlternativeRoutes = &orsAlternatives{TargetCount: 3, ShareFactor: 0.6, WeightFactor: 1.4}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error encoding ORS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating ORS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", p.APIKey)
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	var parsed orsResponse
	if err := doJSON(clientOrDefault(p.Client), req, "ORS", &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("%w by ORS", ErrNoRoute)
	}

	candidates := make([]Candidate, 0, len(parsed.Routes))
	for _, r := range parsed.Routes {
		leg := r.Summary
		if len(r.Segments) > 0 {
			leg = r.Segments[0]
		}
		candidates = append(candidates, Candidate{
			DistanceMeters:  leg.Distance,
			DurationSeconds: leg.Duration,
			Geometry:        r.Geometry,
		})
	}
	return candidates, nil
}
