package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/noah-isme/resto-pricing/internal/obs"
	"github.com/noah-isme/resto-pricing/internal/settings"
)

// seedFile is the shape accepted by -file: one entry per restaurant.
type seedFile struct {
	Restaurants []struct {
		Settings  settings.Snapshot `json:"settings"`
		Customers []struct {
			ID     uuid.UUID `json:"id"`
			Name   string    `json:"name"`
			Points int64     `json:"points"`
		} `json:"customers"`
	} `json:"restaurants"`
}

func main() {
	path := flag.String("file", "", "JSON seed file; the built-in demo restaurant is used when empty")
	flag.Parse()

	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	seed := demoSeed()
	if *path != "" {
		raw, err := os.ReadFile(*path)
		if err != nil {
			logger.Fatal().Err(err).Msg("read seed file")
		}
		seed = seedFile{}
		if err := json.Unmarshal(raw, &seed); err != nil {
			logger.Fatal().Err(err).Msg("decode seed file")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer conn.Close(context.Background())

	for _, r := range seed.Restaurants {
		if err := r.Settings.Validate(); err != nil {
			logger.Fatal().Err(err).Str("restaurant_id", r.Settings.RestaurantID).Msg("invalid settings")
		}
		if err := upsertSettings(ctx, conn, r.Settings); err != nil {
			logger.Fatal().Err(err).Str("restaurant_id", r.Settings.RestaurantID).Msg("seed settings")
		}
		for _, c := range r.Customers {
			_, err := conn.Exec(ctx, `
				INSERT INTO customers (id, restaurant_id, name, points)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, points = EXCLUDED.points, updated_at = now()`,
				c.ID, r.Settings.RestaurantID, c.Name, c.Points)
			if err != nil {
				logger.Error().Err(err).Str("customer_id", c.ID.String()).Msg("seed customer")
			}
		}
		logger.Info().Str("restaurant_id", r.Settings.RestaurantID).Int("customers", len(r.Customers)).Msg("restaurant seeded")
	}
}

func upsertSettings(ctx context.Context, conn *pgx.Conn, s settings.Snapshot) error {
	tax, err := json.Marshal(s.Tax)
	if err != nil {
		return err
	}
	loyalty, err := json.Marshal(s.Loyalty)
	if err != nil {
		return err
	}
	currency, err := json.Marshal(s.Currency)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `
		INSERT INTO restaurant_settings (restaurant_id, tax, loyalty, currency)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (restaurant_id) DO UPDATE
		SET tax = EXCLUDED.tax, loyalty = EXCLUDED.loyalty, currency = EXCLUDED.currency, updated_at = now()`,
		s.RestaurantID, tax, loyalty, currency)
	return err
}
