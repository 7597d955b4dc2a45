package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrCustomerNotFound indicates the customer has no loyalty account.
var ErrCustomerNotFound = errors.New("loyalty customer not found")

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and settles customer point balances in Postgres.
type Store struct {
	DB DBTX
}

// WithTx returns a store bound to the provided transaction.
func (s Store) WithTx(tx pgx.Tx) Store {
	return Store{DB: tx}
}

// Balance returns the customer's available points.
func (s Store) Balance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("loyalty store not configured")
	}
	var points int64
	err := s.DB.QueryRow(ctx, `SELECT points FROM customers WHERE id = $1`, customerID).Scan(&points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCustomerNotFound
		}
		return 0, err
	}
	return points, nil
}

// Settle debits redeemed points and credits earned points for an order. A
// second call for the same order is a no-op.
func (s Store) Settle(ctx context.Context, customerID, orderID uuid.UUID, redeemed, earned int64) error {
	if s.DB == nil {
		return errors.New("loyalty store not configured")
	}
	if redeemed < 0 || earned < 0 {
		return fmt.Errorf("negative point movement: %w", ErrInvalidSettings)
	}
	if redeemed == 0 && earned == 0 {
		return nil
	}
	tag, err := s.DB.Exec(ctx, `
		INSERT INTO loyalty_entries (order_id, customer_id, redeemed, earned)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING`,
		orderID, customerID, redeemed, earned)
	if err != nil {
		return fmt.Errorf("record loyalty entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	tag, err = s.DB.Exec(ctx, `
		UPDATE customers
		SET points = points - $2 + $3, updated_at = now()
		WHERE id = $1 AND points >= $2`,
		customerID, redeemed, earned)
	if err != nil {
		return fmt.Errorf("update customer points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientPoints
	}
	return nil
}
