package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type TEXT NOT NULL,
    event_date TEXT NOT NULL,
    variant TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL DEFAULT '',
    checkout_id TEXT NOT NULL DEFAULT '',
    order_id TEXT NOT NULL DEFAULT '',
    step_name TEXT NOT NULL DEFAULT '',
    step_index INTEGER NOT NULL DEFAULT 0,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    error_code TEXT NOT NULL DEFAULT '',
    items INTEGER NOT NULL DEFAULT 0,
    payment_method TEXT NOT NULL DEFAULT '',
    authorized INTEGER NOT NULL DEFAULT 0,
    amount REAL NOT NULL DEFAULT 0,
    occurred_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_date_type ON events(event_date, event_type);
CREATE INDEX IF NOT EXISTS idx_events_date_variant ON events(event_date, variant);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertEvents writes events in a single transaction.
func (s *SQLiteStore) InsertEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (event_type, event_date, variant, user_id, session_id, checkout_id, order_id,
		     step_name, step_index, latency_ms, error_code, items, payment_method, authorized, amount, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		e := &events[i]
		_, err := stmt.ExecContext(ctx,
			string(e.Type), e.Date, e.Variant, e.UserID, e.SessionID, e.CheckoutID, e.OrderID,
			e.StepName, e.StepIndex, e.LatencyMs, e.ErrorCode, e.Items, e.Method, boolToInt(e.Authorized), e.Amount,
			e.OccurredAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}

	return nil
}

// GetArmStats counts distinct users who added to cart and distinct users who
// completed an order, per variant, for one date.
func (s *SQLiteStore) GetArmStats(ctx context.Context, date string) ([]ArmStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			variant,
			COUNT(DISTINCT CASE WHEN event_type = 'add_to_cart' THEN user_id END) as adders,
			COUNT(DISTINCT CASE WHEN event_type = 'order_completed' THEN user_id END) as orderers
		FROM events
		WHERE event_date = ?
		GROUP BY variant
		HAVING adders > 0
		ORDER BY variant
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get arm stats: %w", err)
	}
	defer rows.Close()

	var stats []ArmStats
	for rows.Next() {
		var a ArmStats
		if err := rows.Scan(&a.Variant, &a.Adders, &a.Orderers); err != nil {
			return nil, fmt.Errorf("failed to scan arm stats: %w", err)
		}
		stats = append(stats, a)
	}

	return stats, rows.Err()
}

func (s *SQLiteStore) GetPaymentStats(ctx context.Context, date string) ([]PaymentStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT variant, COUNT(*), COALESCE(SUM(authorized), 0)
		FROM events
		WHERE event_date = ? AND event_type = 'payment_attempt'
		GROUP BY variant
		ORDER BY variant
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment stats: %w", err)
	}
	defer rows.Close()

	var stats []PaymentStats
	for rows.Next() {
		var p PaymentStats
		if err := rows.Scan(&p.Variant, &p.Attempts, &p.Authorized); err != nil {
			return nil, fmt.Errorf("failed to scan payment stats: %w", err)
		}
		stats = append(stats, p)
	}

	return stats, rows.Err()
}

func (s *SQLiteStore) GetOrderValues(ctx context.Context, date, variant string) ([]float64, error) {
	return s.floatColumn(ctx, `
		SELECT amount FROM events
		WHERE event_date = ? AND variant = ? AND event_type = 'order_completed'
		ORDER BY id`, date, variant)
}

func (s *SQLiteStore) GetStepLatencies(ctx context.Context, date, variant string) ([]float64, error) {
	return s.floatColumn(ctx, `
		SELECT latency_ms FROM events
		WHERE event_date = ? AND variant = ? AND event_type = 'checkout_step_view'
		ORDER BY id`, date, variant)
}

// MostRecentDate returns the latest date with add_to_cart events.
func (s *SQLiteStore) MostRecentDate(ctx context.Context) (string, error) {
	var date sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(event_date) FROM events WHERE event_type = 'add_to_cart'`,
	).Scan(&date)
	if err != nil {
		return "", fmt.Errorf("failed to query most recent date: %w", err)
	}
	if !date.Valid || date.String == "" {
		return "", ErrNotFound
	}
	return date.String, nil
}

func (s *SQLiteStore) GetEvents(ctx context.Context, date string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_type, event_date, variant, user_id, session_id, checkout_id, order_id,
		     step_name, step_index, latency_ms, error_code, items, payment_method, authorized, amount, occurred_at
		 FROM events WHERE event_date = ? ORDER BY occurred_at, id`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var eventType string
		var authorized int
		var occurredAt int64
		if err := rows.Scan(&e.ID, &eventType, &e.Date, &e.Variant, &e.UserID, &e.SessionID, &e.CheckoutID, &e.OrderID,
			&e.StepName, &e.StepIndex, &e.LatencyMs, &e.ErrorCode, &e.Items, &e.Method, &authorized, &e.Amount, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = EventType(eventType)
		e.Authorized = authorized != 0
		e.OccurredAt = time.Unix(occurredAt, 0).UTC()
		events = append(events, &e)
	}

	return events, rows.Err()
}

func (s *SQLiteStore) floatColumn(ctx context.Context, query string, args ...any) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}

	return values, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
