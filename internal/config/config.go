package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all tunable parameters for the API process. Planning
// thresholds are explicit configuration passed into the service constructors,
// never ambient globals. Values load from environment variables with sane
// defaults so the binary can run locally without excessive setup.
type Config struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	ORSAPIKey    string
	ORSBaseURL   string
	RouteProfile string

	DetourMaxKm               float64
	DeviationThresholdMeters  float64
	ProximityCompletionMeters float64
	TooCloseMeters            float64
	ItineraryCacheTTL         time.Duration

	LogLevel string
}

func defaults() Config {
	return Config{
		HTTPAddr:        ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,

		ORSBaseURL:   "https://api.openrouteservice.org",
		RouteProfile: "driving-car",

		DetourMaxKm:               5.0,
		DeviationThresholdMeters:  100,
		ProximityCompletionMeters: 10,
		TooCloseMeters:            50,
		ItineraryCacheTTL:         15 * time.Second,

		LogLevel: "info",
	}
}

func Load() (Config, error) {
	cfg := defaults()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.ORSAPIKey = strings.TrimSpace(os.Getenv("ORS_API_KEY"))
	setStringFromEnv(&cfg.ORSBaseURL, "ORS_BASE_URL")
	setStringFromEnv(&cfg.RouteProfile, "ROUTE_PROFILE")

	setFloatFromEnv(&cfg.DetourMaxKm, "DETOUR_MAX_KM", &errs)
	setFloatFromEnv(&cfg.DeviationThresholdMeters, "DEVIATION_THRESHOLD_METERS", &errs)
	setFloatFromEnv(&cfg.ProximityCompletionMeters, "PROXIMITY_COMPLETION_METERS", &errs)
	setFloatFromEnv(&cfg.TooCloseMeters, "TOO_CLOSE_METERS", &errs)
	setDurationFromEnv(&cfg.ItineraryCacheTTL, "ITINERARY_CACHE_TTL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.DetourMaxKm <= 0 {
		errs = append(errs, fmt.Errorf("DETOUR_MAX_KM must be > 0"))
	}
	if cfg.ProximityCompletionMeters <= 0 {
		errs = append(errs, fmt.Errorf("PROXIMITY_COMPLETION_METERS must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}
