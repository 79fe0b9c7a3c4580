package app

import (
	"log/slog"

	"transitcore.delaycast.org/internal/appconf"
	"transitcore.delaycast.org/internal/clock"
	"transitcore.delaycast.org/internal/gtfs"
	"transitcore.delaycast.org/internal/metrics"
	"transitcore.delaycast.org/internal/query"
	"transitcore.delaycast.org/internal/routing"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config   appconf.Config
	Logger   *slog.Logger
	Store    *gtfs.Store
	Facade   *query.Facade
	Resolver *routing.Resolver
	Clock    clock.Clock
	Metrics  *metrics.Metrics
}
