// Package routing resolves road geometry between two points through external
// routing services, degrading to a great-circle approximation when none of
// them answers.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"transitcore.delaycast.org/internal/appconf"
	"transitcore.delaycast.org/internal/logging"
	"transitcore.delaycast.org/internal/utils"
)

const maxResponseSize = 10 * 1024 * 1024

var (
	// ErrNoRoute is returned when a provider answers without any candidate.
	ErrNoRoute = errors.New("no route found")
	// ErrDecode is returned when a candidate's geometry cannot be decoded.
	ErrDecode = errors.New("invalid route geometry")

	errRateLimited = errors.New("rate limited")
)

// StatusError reports a non-200 provider response.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %d", e.Provider, e.StatusCode)
}

// Candidate is one route proposed by a provider, in provider units.
type Candidate struct {
	DistanceMeters  float64
	DurationSeconds float64
	// Geometry is an encoded polyline with precision 5.
	Geometry string
}

// Provider is an external road-routing service.
type Provider interface {
	Name() string
	Route(ctx context.Context, start, end utils.Coordinate) ([]Candidate, error)
}

// newProviderHTTPClient builds a client with explicit transport limits. The
// client timeout is a safety net; the resolver's context deadline is the
// effective bound.
func newProviderHTTPClient(timeout time.Duration) *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 20
	transport.MaxIdleConnsPerHost = 5
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 1 * time.Second

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// NewProviders builds the configured providers in order.
func NewProviders(configs []appconf.ProviderConfig, userAgent string, alternatives bool, timeout time.Duration) ([]Provider, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := newProviderHTTPClient(timeout)

	providers := make([]Provider, 0, len(configs))
	for _, pc := range configs {
		switch strings.ToLower(pc.Kind) {
		case "osrm":
			providers = append(providers, &OSRMProvider{
				BaseURL:      pc.BaseURL,
				Profile:      pc.Profile,
				UserAgent:    userAgent,
				Alternatives: alternatives,
				Client:       client,
			})
		case "ors":
			providers = append(providers, &ORSProvider{
				BaseURL:      pc.BaseURL,
				Profile:      pc.Profile,
				APIKey:       pc.APIKey,
				UserAgent:    userAgent,
				Alternatives: alternatives,
				Client:       client,
			})
		default:
			return nil, fmt.Errorf("unknown routing provider kind %q", pc.Kind)
		}
	}
	return providers, nil
}

// doJSON executes req and decodes a 200 response into out.
func doJSON(client *http.Client, req *http.Request, provider string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "routing_provider")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return &StatusError{Provider: provider, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("%s response read failed: %w", provider, err)
	}
	if len(body) > maxResponseSize {
		return fmt.Errorf("%s response exceeds size limit of %d bytes", provider, maxResponseSize)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s response is not valid JSON: %w", provider, err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
