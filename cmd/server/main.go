package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"trike-itinerary-service/internal/adapters/cache"
	"trike-itinerary-service/internal/adapters/directions"
	"trike-itinerary-service/internal/adapters/repositories"
	"trike-itinerary-service/internal/api"
	"trike-itinerary-service/internal/config"
	"trike-itinerary-service/internal/platform/db"
	"trike-itinerary-service/internal/ports"
	"trike-itinerary-service/internal/services"
)

// store is the full persistence surface the services need. Both the Postgres
// and the in-memory implementation satisfy it.
type store interface {
	ports.BookingRepository
	ports.StopRepository
	ports.DriverRepository
	ports.RiderRepository
	ports.RouteSnapshotRepository
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	var repo store
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect database", "err", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := repositories.InitSchema(context.Background(), conn); err != nil {
			logger.Error("init schema", "err", err)
			os.Exit(1)
		}
		repo = repositories.NewPostgresStore(conn)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		repo = repositories.NewMemoryStore()
	}

	var payloadCache ports.PayloadCache
	if cfg.RedisAddr != "" {
		payloadCache = cache.NewRedisPayloadCache(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		logger.Warn("REDIS_ADDR not set, route-info payloads are rebuilt on every request")
	}

	provider, err := directions.NewORSProvider(cfg.ORSAPIKey, cfg.ORSBaseURL, cfg.TooCloseMeters)
	if err != nil {
		logger.Error("configure routing provider", "err", err)
		os.Exit(1)
	}

	planner := &services.Planner{Stops: repo, Drivers: repo}
	guard := &services.Guard{Bookings: repo, Drivers: repo}

	trips := &services.TripService{
		Bookings:        repo,
		Stops:           repo,
		Drivers:         repo,
		Riders:          repo,
		Snapshots:       repo,
		Provider:        provider,
		Cache:           payloadCache,
		Planner:         planner,
		Guard:           guard,
		DetourMaxKm:     cfg.DetourMaxKm,
		ProximityMeters: cfg.ProximityCompletionMeters,
		Profile:         cfg.RouteProfile,
		Logger:          logger,
	}
	itinerary := &services.ItineraryService{
		Bookings: repo,
		Riders:   repo,
		Drivers:  repo,
		Provider: provider,
		Planner:  planner,
		Profile:  cfg.RouteProfile,
	}
	location := &services.LocationService{
		Bookings:                 repo,
		Drivers:                  repo,
		Snapshots:                repo,
		Provider:                 provider,
		DeviationThresholdMeters: cfg.DeviationThresholdMeters,
		Profile:                  cfg.RouteProfile,
		Logger:                   logger,
	}
	bookings := &services.BookingService{
		Bookings: repo,
		Riders:   repo,
		Provider: provider,
		Geocoder: provider,
		Profile:  cfg.RouteProfile,
		Logger:   logger,
	}
	routeInfo := &services.RouteInfoService{
		Bookings:  repo,
		Stops:     repo,
		Drivers:   repo,
		Snapshots: repo,
		Provider:  provider,
		Cache:     payloadCache,
		Itinerary: itinerary,
		Profile:   cfg.RouteProfile,
		CacheTTL:  cfg.ItineraryCacheTTL,
		Logger:    logger,
	}

	router := api.NewRouter(api.Services{
		Bookings:  bookings,
		Trips:     trips,
		Itinerary: itinerary,
		RouteInfo: routeInfo,
		Location:  location,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "err", err)
			os.Exit(1)
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
