package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound indicates no settings row exists for the restaurant.
var ErrNotFound = errors.New("restaurant settings not found")

// Querier is the subset of pgx used by the store.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads restaurant settings from Postgres.
type Store struct {
	DB Querier
}

const selectSettings = `SELECT tax, loyalty, currency FROM restaurant_settings WHERE restaurant_id = $1`

// Get loads the stored snapshot for a restaurant.
func (s Store) Get(ctx context.Context, restaurantID string) (Snapshot, error) {
	if s.DB == nil {
		return Snapshot{}, errors.New("settings: database not configured")
	}
	var taxRaw, loyaltyRaw, currencyRaw []byte
	err := s.DB.QueryRow(ctx, selectSettings, restaurantID).Scan(&taxRaw, &loyaltyRaw, &currencyRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("select settings: %w", err)
	}
	snap := Snapshot{RestaurantID: restaurantID}
	if err := decodeJSONB(taxRaw, &snap.Tax); err != nil {
		return Snapshot{}, fmt.Errorf("decode tax settings: %w", err)
	}
	if err := decodeJSONB(loyaltyRaw, &snap.Loyalty); err != nil {
		return Snapshot{}, fmt.Errorf("decode loyalty settings: %w", err)
	}
	if err := decodeJSONB(currencyRaw, &snap.Currency); err != nil {
		return Snapshot{}, fmt.Errorf("decode currency settings: %w", err)
	}
	return snap, nil
}

func decodeJSONB(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
