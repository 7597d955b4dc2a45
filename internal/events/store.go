package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Querier adds row reads to Execer.
type Querier interface {
	Execer
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore writes events to the domain_events outbox table.
type PGStore struct {
	DB Execer
}

// InsertEvent stores the event. Re-inserting the same id is a no-op.
func (s PGStore) InsertEvent(ctx context.Context, event Event) error {
	_, err := s.DB.Exec(ctx,
		`INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Topic, event.AggregateID, []byte(event.Payload), event.OccurredAt)
	return err
}

// MarkPublished stamps events the broker accepted.
func (s PGStore) MarkPublished(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.DB.Exec(ctx,
		`UPDATE domain_events SET published_at = $2 WHERE id = ANY($1) AND published_at IS NULL`,
		ids, time.Now().UTC())
	return err
}

// MarkFailed counts a failed relay attempt.
func (s PGStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `UPDATE domain_events SET attempts = attempts + 1 WHERE id = $1`, id)
	return err
}

// Unpublished returns up to limit events older than olderThan that were
// never accepted by the broker, oldest first.
func (s PGStore) Unpublished(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]Event, error) {
	q, ok := s.DB.(Querier)
	if !ok {
		return nil, nil
	}
	rows, err := q.Query(ctx,
		`SELECT id, topic, aggregate_id, payload, occurred_at
		   FROM domain_events
		  WHERE published_at IS NULL AND occurred_at < $1 AND attempts < $2
		  ORDER BY occurred_at
		  LIMIT $3`,
		olderThan.UTC(), maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var ev Event
		var payload []byte
		if err := row.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &payload, &ev.OccurredAt); err != nil {
			return Event{}, err
		}
		ev.Payload = payload
		return ev, nil
	})
}
