package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents one schema step applied in order
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the embedded, ordered schema history of the territory store
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_territories",
		SQL: `
			CREATE TABLE IF NOT EXISTS territories (
				cell_id TEXT PRIMARY KEY,
				x INTEGER NOT NULL,
				y INTEGER NOT NULL,
				owner_id TEXT,
				owner_name TEXT,
				center_lat REAL NOT NULL,
				center_lon REAL NOT NULL,
				boundary TEXT,
				last_conquered_at INTEGER NOT NULL,
				expires_at INTEGER NOT NULL,
				uploaded_at INTEGER,
				activity_id TEXT,
				is_hot_spot INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_territories_owner ON territories(owner_id);
			CREATE INDEX IF NOT EXISTS idx_territories_activity ON territories(activity_id);
			CREATE INDEX IF NOT EXISTS idx_territories_center ON territories(center_lat, center_lon);
		`,
	},
	{
		Version: 2,
		Name:    "create_mirror_cells",
		SQL: `
			CREATE TABLE IF NOT EXISTS mirror_cells (
				cell_id TEXT PRIMARY KEY,
				x INTEGER NOT NULL,
				y INTEGER NOT NULL,
				owner_id TEXT,
				owner_name TEXT,
				center_lat REAL NOT NULL,
				center_lon REAL NOT NULL,
				boundary TEXT,
				last_conquered_at INTEGER NOT NULL,
				expires_at INTEGER NOT NULL,
				uploaded_at INTEGER,
				activity_id TEXT,
				is_hot_spot INTEGER NOT NULL DEFAULT 0,
				seen_at INTEGER NOT NULL
			);
		`,
	},
	{
		Version: 3,
		Name:    "create_activities",
		SQL: `
			CREATE TABLE IF NOT EXISTS activities (
				id TEXT PRIMARY KEY,
				type TEXT NOT NULL,
				start_time INTEGER NOT NULL,
				end_time INTEGER NOT NULL,
				distance_m REAL NOT NULL,
				duration_s INTEGER NOT NULL,
				status TEXT NOT NULL,
				retry_count INTEGER NOT NULL DEFAULT 0,
				last_error TEXT,
				delta_new INTEGER NOT NULL DEFAULT 0,
				delta_defended INTEGER NOT NULL DEFAULT 0,
				delta_recaptured INTEGER NOT NULL DEFAULT 0,
				delta_stolen INTEGER NOT NULL DEFAULT 0,
				stolen_from TEXT,
				xp_base INTEGER NOT NULL DEFAULT 0,
				xp_territory INTEGER NOT NULL DEFAULT 0,
				xp_streak INTEGER NOT NULL DEFAULT 0,
				xp_weekly_record INTEGER NOT NULL DEFAULT 0,
				xp_badges INTEGER NOT NULL DEFAULT 0,
				updated_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_activities_status ON activities(status);
			CREATE INDEX IF NOT EXISTS idx_activities_end_time ON activities(end_time);
		`,
	},
}

// Migrate applies any pending migrations in version order
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := db.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		log.Printf("Applied migration %d: %s", m.Version, m.Name)
	}

	return nil
}
