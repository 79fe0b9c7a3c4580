package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"transitcore.delaycast.org/internal/appconf"
	"transitcore.delaycast.org/internal/logging"
	"transitcore.delaycast.org/internal/query"
)

const (
	defaultOSRMURL   = "https://router.project-osrm.org"
	defaultUserAgent = "transitcore/1.0"
)

func main() {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	settings, err := parseSettings(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, closer := logging.NewLogger(logging.Options{
		Format:   settings.App.LogFormat,
		Level:    settings.App.LogLevel,
		FilePath: settings.App.LogFile,
	})
	defer logging.SafeCloseWithLogging(closer, logger, "log_file")
	slog.SetDefault(logger)

	coreApp, err := BuildApplication(settings, logger)
	if err != nil {
		logging.LogError(logger, "failed to build application", err)
		os.Exit(1)
	}

	srv, api := CreateServer(coreApp, settings.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, srv, coreApp, api, settings.Preload); err != nil {
		logging.LogError(logger, "server stopped with error", err)
		os.Exit(1)
	}
}

// parseSettings reads flags, with environment fallbacks for secrets and the
// data directory. A -config file replaces every other flag.
func parseSettings(args []string, getenv func(string) string, output io.Writer) (Settings, error) {
	fs := flag.NewFlagSet("transitcore", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		configPath     = fs.String("config", "", "Path to a JSON or YAML configuration file")
		port           = fs.Int("port", 5000, "HTTP port")
		env            = fs.String("env", "development", "Environment (development|test|production)")
		verbose        = fs.Bool("verbose", false, "Log every located GTFS source")
		rateLimit      = fs.Int("rate-limit", 100, "Requests per second per client, 0 disables limiting")
		rateExempt     = fs.String("rate-limit-exempt", "", "Comma-separated client addresses exempt from rate limiting")
		corsOrigins    = fs.String("cors-origins", "", "Comma-separated allowed CORS origins (default any)")
		logFormat      = fs.String("log-format", "json", "Log format (json|text)")
		logLevel       = fs.String("log-level", "info", "Log level (debug|info|warn|error)")
		logFile        = fs.String("log-file", "", "Optional rotating log file")
		baseDir        = fs.String("gtfs-dir", orDefault(getenv("GTFS_BASE_DIR"), "data"), "Directory holding <city>_GTFS folders or archives")
		projectRoot    = fs.String("project-root", getenv("GTFS_PROJECT_ROOT"), "Secondary search root for GTFS data")
		defaultCity    = fs.String("default-city", query.DefaultCity, "City used when a request names none")
		preload        = fs.String("preload", "", "Comma-separated cities to load at startup")
		maxAge         = fs.Duration("max-snapshot-age", 0, "Reload a city on use once its snapshot is older than this (0 never)")
		osrmURL        = fs.String("osrm-url", orDefault(getenv("OSRM_URL"), defaultOSRMURL), "OSRM base URL, empty disables OSRM")
		orsURL         = fs.String("ors-url", getenv("ORS_URL"), "OpenRouteService base URL, empty disables ORS")
		orsKey         = fs.String("ors-api-key", getenv("ORS_API_KEY"), "OpenRouteService API key")
		routingTimeout = fs.Duration("routing-timeout", 10*time.Second, "Timeout per routing provider attempt")
		routingBudget  = fs.Duration("routing-total-timeout", 10*time.Second, "Overall time allowed across all routing provider attempts")
		assumedSpeed   = fs.Float64("assumed-speed-kmh", 25, "Speed used to estimate fallback durations")
		routingRate    = fs.Float64("routing-rate", 0, "Outbound calls per second per routing provider, 0 unlimited")
		alternatives   = fs.Bool("alternatives", false, "Ask routing providers for alternative routes")
	)

	if err := fs.Parse(args); err != nil {
		return Settings{}, err
	}

	if *configPath != "" {
		fileCfg, err := appconf.LoadFromFile(*configPath)
		if err != nil {
			return Settings{}, err
		}
		return settingsFromFile(fileCfg), nil
	}

	environment, err := appconf.EnvFlagToEnvironment(*env)
	if err != nil {
		return Settings{}, err
	}

	fileCfg := &appconf.FileConfig{
		Port:            *port,
		Env:             environment.String(),
		Verbose:         *verbose,
		RateLimit:       *rateLimit,
		RateLimitExempt: appconf.ParseList(*rateExempt),
		CORSOrigins:     appconf.ParseList(*corsOrigins),
		LogFormat:       *logFormat,
		LogLevel:        *logLevel,
		LogFile:         *logFile,
		Schedule: appconf.ScheduleSection{
			BaseDir:        *baseDir,
			ProjectRoot:    *projectRoot,
			DefaultCity:    *defaultCity,
			Preload:        appconf.ParseList(*preload),
			MaxSnapshotAge: durationFlag(*maxAge),
		},
		Routing: appconf.RoutingSection{
			Timeout:       durationFlag(*routingTimeout),
			TotalTimeout:  durationFlag(*routingBudget),
			AssumedSpeed:  *assumedSpeed,
			RatePerSecond: *routingRate,
			Alternatives:  *alternatives,
			UserAgent:     defaultUserAgent,
		},
	}
	if *osrmURL != "" {
		fileCfg.Routing.Providers = append(fileCfg.Routing.Providers, appconf.ProviderConfig{Kind: "osrm", BaseURL: *osrmURL})
	}
	if *orsURL != "" {
		fileCfg.Routing.Providers = append(fileCfg.Routing.Providers, appconf.ProviderConfig{Kind: "ors", BaseURL: *orsURL, APIKey: *orsKey})
	}

	if err := fileCfg.Validate(); err != nil {
		return Settings{}, err
	}
	return settingsFromFile(fileCfg), nil
}

func durationFlag(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
