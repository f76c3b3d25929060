package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"trike-itinerary-service/internal/adapters/repositories"
	"trike-itinerary-service/internal/platform/db"
)

// dbtool creates the schema and optionally loads demo fixtures. Run it once
// before first start, or rely on the server's own schema init.
func main() {
	seed := flag.Bool("seed", false, "insert demo fixtures after creating the schema")
	flag.Parse()

	_ = godotenv.Load()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	conn, err := db.Open(url)
	if err != nil {
		slog.Error("connect database", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx := context.Background()
	if err := repositories.InitSchema(ctx, conn); err != nil {
		slog.Error("init schema", "err", err)
		os.Exit(1)
	}
	slog.Info("schema ready")

	if *seed {
		if err := repositories.SeedDemoData(ctx, conn); err != nil {
			slog.Error("seed demo data", "err", err)
			os.Exit(1)
		}
		slog.Info("demo data loaded")
	}
}
