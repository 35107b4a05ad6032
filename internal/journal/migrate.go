package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// schemaVersion is the version a fully migrated journal reports.
const schemaVersion = 2

// steps[i] upgrades the journal from version i to i+1.
var steps = []struct {
	name string
	sql  string
}{
	{
		name: "deliveries",
		sql: `
		CREATE TABLE IF NOT EXISTS deliveries (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id    TEXT NOT NULL,
			platform    TEXT NOT NULL,
			target      TEXT DEFAULT '',
			seq         INTEGER NOT NULL,
			strategy    TEXT DEFAULT '',
			embeds      INTEGER DEFAULT 0,
			files       INTEGER DEFAULT 0,
			bytes       INTEGER DEFAULT 0,
			status      TEXT NOT NULL,
			error       TEXT DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_deliveries_batch ON deliveries(batch_id, seq);
		CREATE INDEX IF NOT EXISTS idx_deliveries_time ON deliveries(created_at);`,
	},
	{
		name: "delivery latency",
		sql:  `ALTER TABLE deliveries ADD COLUMN latency_ms INTEGER DEFAULT 0;`,
	},
}

// RunMigrations brings db up to schemaVersion. The applied version lives in
// SQLite's user_version pragma, so rerunning on a current database is a no-op.
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	have, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}
	if have > len(steps) {
		return fmt.Errorf("journal version %d is newer than this build (%d)", have, len(steps))
	}

	for v := have; v < len(steps); v++ {
		logger.Info("migrating journal", "to", v+1, "step", steps[v].name)
		if err := upgrade(db, v+1, steps[v].sql); err != nil {
			return fmt.Errorf("journal v%d (%s): %w", v+1, steps[v].name, err)
		}
	}
	return nil
}

func upgrade(db *sql.DB, to int, stmt string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return err
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", to)); err != nil {
		return err
	}
	return tx.Commit()
}

// GetSchemaVersion returns the journal's applied version, 0 for a new file.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}
