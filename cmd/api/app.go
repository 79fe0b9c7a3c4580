package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"transitcore.delaycast.org/internal/app"
	"transitcore.delaycast.org/internal/appconf"
	"transitcore.delaycast.org/internal/clock"
	"transitcore.delaycast.org/internal/gtfs"
	"transitcore.delaycast.org/internal/logging"
	"transitcore.delaycast.org/internal/metrics"
	"transitcore.delaycast.org/internal/query"
	"transitcore.delaycast.org/internal/restapi"
	"transitcore.delaycast.org/internal/routing"
	"transitcore.delaycast.org/internal/webui"
)

const (
	baseWriteTimeout = 10 * time.Second
	shutdownTimeout  = 30 * time.Second
)

// Settings is everything BuildApplication needs, resolved from flags or a config file.
type Settings struct {
	App          appconf.Config
	Gtfs         gtfs.Config
	Query        query.Config
	Routing      routing.Config
	Providers    []appconf.ProviderConfig
	Alternatives bool
	UserAgent    string
	Preload      []string
}

func settingsFromFile(c *appconf.FileConfig) Settings {
	appCfg := c.ToAppConfig()
	return Settings{
		App: appCfg,
		Gtfs: gtfs.Config{
			BaseDir:     c.Schedule.BaseDir,
			ProjectRoot: c.Schedule.ProjectRoot,
			Env:         appCfg.Env,
			Verbose:     appCfg.Verbose,
		},
		Query: query.Config{
			DefaultCity:    c.Schedule.DefaultCity,
			MaxSnapshotAge: c.Schedule.MaxSnapshotAgeDuration(),
		},
		Routing: routing.Config{
			Timeout:         c.Routing.TimeoutDuration(),
			TotalTimeout:    c.Routing.TotalTimeoutDuration(),
			AssumedSpeedKmh: c.Routing.AssumedSpeed,
			FallbackSteps:   c.Routing.FallbackSteps,
			RatePerSecond:   c.Routing.RatePerSecond,
		},
		Providers:    c.Routing.Providers,
		Alternatives: c.Routing.Alternatives,
		UserAgent:    orDefault(c.Routing.UserAgent, defaultUserAgent),
		Preload:      c.Schedule.Preload,
	}
}

// BuildApplication wires the schedule store, the query facade and the route
// resolver. Nothing is loaded yet; cities load on first use or in Run.
func BuildApplication(settings Settings, logger *slog.Logger) (*app.Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	for _, root := range []string{settings.Gtfs.BaseDir, settings.Gtfs.ProjectRoot} {
		if root == "" {
			continue
		}
		info, err := os.Stat(root)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Warn("gtfs search root does not exist yet", "path", root)
		case err != nil:
			return nil, fmt.Errorf("failed to initialize schedule store: %w", err)
		case !info.IsDir():
			return nil, fmt.Errorf("failed to initialize schedule store: %s is not a directory", root)
		}
	}

	providers, err := routing.NewProviders(settings.Providers, settings.UserAgent, settings.Alternatives, settings.Routing.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize routing providers: %w", err)
	}

	clk := clock.RealClock{}
	m := metrics.New()
	store := gtfs.NewStore(settings.Gtfs, clk, m)

	return &app.Application{
		Config:   settings.App,
		Logger:   logger,
		Store:    store,
		Facade:   query.NewFacade(store, settings.Query, clk),
		Resolver: routing.NewResolver(settings.Routing, providers, m),
		Clock:    clk,
		Metrics:  m,
	}, nil
}

// CreateServer builds the HTTP server and the API whose background
// goroutines the caller must stop with Shutdown.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	(&webui.WebUI{Application: coreApp}).SetWebUIRoutes(mux)

	// route-info may wait on every provider in turn before falling back.
	writeTimeout := baseWriteTimeout
	if coreApp.Resolver != nil {
		writeTimeout = max(writeTimeout, coreApp.Resolver.MaxLatency()+2*time.Second)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.Handler(mux),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: writeTimeout,
		ErrorLog:     slog.NewLogLogger(coreApp.Logger.Handler(), slog.LevelError),
	}
	return srv, api
}

// Run serves until ctx is cancelled, then drains in-flight requests.
// Preloading happens in the background so the listener is up immediately.
func Run(ctx context.Context, srv *http.Server, coreApp *app.Application, api *restapi.RestAPI, preload []string) error {
	logger := coreApp.Logger
	defer api.Shutdown()

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	if len(preload) > 0 {
		go coreApp.Facade.Preload(ctx, preload)
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.LogOperation(logger, "server_starting",
			slog.String("addr", listener.Addr().String()),
			slog.String("env", coreApp.Config.Env.String()))
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logging.LogOperation(logger, "server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.LogOperation(logger, "server_stopped")
	return nil
}
