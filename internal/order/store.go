package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/resto-pricing/internal/loyalty"
	"github.com/noah-isme/resto-pricing/internal/money"
	"github.com/noah-isme/resto-pricing/internal/pricing"
)

var (
	// ErrNotFound indicates the order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrStatusConflict means the order is not in a state that allows the
	// requested transition.
	ErrStatusConflict = errors.New("order status transition not allowed")
	// ErrExternalIDConflict means the external id already belongs to an
	// order of another restaurant or customer.
	ErrExternalIDConflict = errors.New("external id already used by another order")
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists orders with hand-written SQL.
type PGStore struct {
	DB  DB
	Now func() time.Time
}

const orderColumns = `id, external_id, restaurant_id, COALESCE(customer_id::text, ''), status,
	subtotal::text, tax::text, discount::text, discount_type, discount_amount::text,
	points_redeemed, points_earned, total::text, currency, created_at`

// Create inserts the order, its lines and tax lines, and settles loyalty
// points in one transaction. An already stored external id returns the
// existing order header with created=false.
func (s PGStore) Create(ctx context.Context, p Payload) (Order, bool, error) {
	if existing, err := s.byExternalID(ctx, p.ExternalID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Order{}, false, err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Order{}, false, fmt.Errorf("begin order tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ord := Order{
		ID:           uuid.New(),
		ExternalID:   p.ExternalID,
		RestaurantID: p.RestaurantID,
		CustomerID:   p.CustomerID,
		Status:       StatusSubmitted,
		Items:        p.Items,
		Subtotal:     p.Subtotal,
		Tax:          p.Tax,
		TaxLines:     p.TaxLines,
		Discount:     p.Discount,
		DiscountUsed: p.DiscountUsed,
		Total:        p.Total,
		Currency:     p.Currency,
		PointsEarned: p.PointsEarned,
		CreatedAt:    now().UTC(),
	}

	var customer *uuid.UUID
	if p.CustomerID != "" {
		id, err := uuid.Parse(p.CustomerID)
		if err != nil {
			return Order{}, false, fmt.Errorf("customer id: %w", err)
		}
		customer = &id
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, external_id, restaurant_id, customer_id, status,
			subtotal, tax, discount, discount_type, discount_amount,
			points_redeemed, points_earned, total, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10::numeric,
			$11, $12, $13::numeric, $14, $15)`,
		ord.ID, ord.ExternalID, ord.RestaurantID, customer, ord.Status,
		ord.Subtotal.String(), ord.Tax.String(), ord.Discount.String(),
		string(ord.DiscountUsed.Type), ord.DiscountUsed.Amount.String(),
		p.RedeemedPoints(), ord.PointsEarned, ord.Total.String(), ord.Currency, ord.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// lost a race with a concurrent submit of the same external id
			_ = tx.Rollback(ctx)
			existing, lookupErr := s.byExternalID(ctx, p.ExternalID)
			if lookupErr != nil {
				return Order{}, false, lookupErr
			}
			return existing, false, nil
		}
		return Order{}, false, fmt.Errorf("insert order: %w", err)
	}

	for i, it := range p.Items {
		addOns, err := json.Marshal(it.AddOns)
		if err != nil {
			return Order{}, false, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, position, item_id, name, unit_price, quantity, add_ons, is_comped, line_total)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9::numeric)`,
			ord.ID, i, it.ID, it.Name, it.UnitPrice.String(), it.Quantity, addOns, it.Comped, it.LineTotal.String()); err != nil {
			return Order{}, false, fmt.Errorf("insert order item: %w", err)
		}
	}
	for i, line := range p.TaxLines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_tax_lines (order_id, position, name, rate, amount)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric)`,
			ord.ID, i, line.Name, line.Rate.String(), line.Amount.String()); err != nil {
			return Order{}, false, fmt.Errorf("insert tax line: %w", err)
		}
	}

	if customer != nil {
		ledger := loyalty.Store{}.WithTx(tx)
		if err := ledger.Settle(ctx, *customer, ord.ID, p.RedeemedPoints(), p.PointsEarned); err != nil {
			return Order{}, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, fmt.Errorf("commit order: %w", err)
	}
	return ord, true, nil
}

// Get loads an order with its lines and tax lines.
func (s PGStore) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	ord, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, err
	}
	items, err := s.items(ctx, id)
	if err != nil {
		return Order{}, err
	}
	ord.Items = items
	lines, err := s.taxLines(ctx, id)
	if err != nil {
		return Order{}, err
	}
	ord.TaxLines = lines
	return ord, nil
}

// List returns order headers for a restaurant, newest first.
func (s PGStore) List(ctx context.Context, restaurantID string, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders WHERE restaurant_id = $1`, restaurantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, restaurantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	out := make([]Order, 0, limit)
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ord)
	}
	return out, total, rows.Err()
}

// UpdateStatus moves an order from one status to another. The update only
// applies while the stored status still equals from.
func (s PGStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s PGStore) byExternalID(ctx context.Context, externalID string) (Order, error) {
	return scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_id = $1`, externalID))
}

func (s PGStore) items(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT item_id, name, unit_price::text, quantity, add_ons, is_comped, line_total::text
		FROM order_items WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var (
			it                   Item
			unitPrice, lineTotal string
			addOns               []byte
		)
		if err := rows.Scan(&it.ID, &it.Name, &unitPrice, &it.Quantity, &addOns, &it.Comped, &lineTotal); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = money.Parse(unitPrice); err != nil {
			return nil, err
		}
		if it.LineTotal, err = money.Parse(lineTotal); err != nil {
			return nil, err
		}
		if len(addOns) > 0 {
			if err := json.Unmarshal(addOns, &it.AddOns); err != nil {
				return nil, err
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s PGStore) taxLines(ctx context.Context, orderID uuid.UUID) ([]pricing.TaxLine, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT name, rate::text, amount::text
		FROM order_tax_lines WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order tax lines: %w", err)
	}
	defer rows.Close()
	var out []pricing.TaxLine
	for rows.Next() {
		var (
			line         pricing.TaxLine
			rate, amount string
		)
		if err := rows.Scan(&line.Name, &rate, &amount); err != nil {
			return nil, err
		}
		if err := line.Rate.UnmarshalText([]byte(rate)); err != nil {
			return nil, err
		}
		if line.Amount, err = money.Parse(amount); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		ord                                                 Order
		subtotal, tax, discount, discountAmount, totalValue string
		discountType                                        string
		pointsRedeemed                                      int64
	)
	err := row.Scan(&ord.ID, &ord.ExternalID, &ord.RestaurantID, &ord.CustomerID, &ord.Status,
		&subtotal, &tax, &discount, &discountType, &discountAmount,
		&pointsRedeemed, &ord.PointsEarned, &totalValue, &ord.Currency, &ord.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("scan order: %w", err)
	}
	for _, f := range []struct {
		raw string
		dst *money.Money
	}{
		{subtotal, &ord.Subtotal},
		{tax, &ord.Tax},
		{discount, &ord.Discount},
		{discountAmount, &ord.DiscountUsed.Amount},
		{totalValue, &ord.Total},
	} {
		v, err := money.Parse(f.raw)
		if err != nil {
			return Order{}, fmt.Errorf("parse amount %q: %w", f.raw, err)
		}
		*f.dst = v
	}
	ord.DiscountUsed.Type = pricing.DiscountType(discountType)
	ord.DiscountUsed.Points = pointsRedeemed
	return ord, nil
}
