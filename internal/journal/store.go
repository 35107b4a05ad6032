// Package journal keeps a SQLite log of every message delivery attempt.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"embedbot/internal/bus"

	_ "modernc.org/sqlite"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Entry is one recorded delivery attempt.
type Entry struct {
	ID        int64     `json:"id" yaml:"id"`
	BatchID   string    `json:"batch_id" yaml:"batch_id"`
	Platform  string    `json:"platform" yaml:"platform"`
	Target    string    `json:"target" yaml:"target"`
	Seq       int       `json:"seq" yaml:"seq"`
	Strategy  string    `json:"strategy" yaml:"strategy"`
	Embeds    int       `json:"embeds" yaml:"embeds"`
	Files     int       `json:"files" yaml:"files"`
	Bytes     int64     `json:"bytes" yaml:"bytes"`
	Status    string    `json:"status" yaml:"status"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	LatencyMs int64     `json:"latency_ms" yaml:"latency_ms"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Store is the SQLite-backed delivery journal.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the journal database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one delivery outcome.
func (s *Store) Record(ctx context.Context, d bus.Delivery, at time.Time) error {
	status, errText := StatusSent, ""
	if d.Err != nil {
		status, errText = StatusFailed, d.Err.Error()
	}
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (batch_id, platform, target, seq, strategy, embeds, files, bytes, status, error, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.BatchID, d.Platform, d.Target, d.Seq, d.Strategy, d.Embeds, d.Files, d.Bytes,
		status, errText, d.Latency.Milliseconds(), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx,
		`SELECT id, batch_id, platform, target, seq, strategy, embeds, files, bytes, status, error, latency_ms, created_at
		 FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
}

// Batch returns the entries of one batch in delivery order.
func (s *Store) Batch(ctx context.Context, batchID string) ([]Entry, error) {
	return s.query(ctx,
		`SELECT id, batch_id, platform, target, seq, strategy, embeds, files, bytes, status, error, latency_ms, created_at
		 FROM deliveries WHERE batch_id = ? ORDER BY seq`, batchID)
}

// Prune deletes entries older than the cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE created_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Platform, &e.Target, &e.Seq, &e.Strategy,
			&e.Embeds, &e.Files, &e.Bytes, &e.Status, &e.Error, &e.LatencyMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Subscribe records every delivery event published on events. Write errors
// are logged; they never reach the sender.
func (s *Store) Subscribe(events *bus.EventBus) {
	record := func(e bus.Event) {
		if e.Delivery == nil {
			return
		}
		if err := s.Record(context.Background(), *e.Delivery, e.Timestamp); err != nil {
			s.logger.Warn("journal write failed", "batch", e.Delivery.BatchID, "err", err)
		}
	}
	events.On(bus.EventDeliverySent, record)
	events.On(bus.EventDeliveryFailed, record)
}
