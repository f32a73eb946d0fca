package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/runconquer/territory-backend-go/internal/models"
	"github.com/runconquer/territory-backend-go/internal/spatial"
)

// MirrorRepository caches the last-seen remote mirror documents so a session
// can reconcile immediately on startup, before the stream reconnects.
type MirrorRepository struct {
	db   *sql.DB
	grid spatial.Grid
}

// NewMirrorRepository creates a new mirror repository
func NewMirrorRepository(db *sql.DB, grid spatial.Grid) *MirrorRepository {
	return &MirrorRepository{db: db, grid: grid}
}

// SaveCells upserts a batch of mirror documents with a seen-at stamp
func (r *MirrorRepository) SaveCells(cells []models.RemoteCellMirror) error {
	if len(cells) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO mirror_cells (
			cell_id, x, y, owner_id, owner_name, center_lat, center_lon,
			boundary, last_conquered_at, expires_at, uploaded_at, activity_id,
			is_hot_spot, seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, c := range cells {
		boundary, err := json.Marshal(c.Boundary)
		if err != nil {
			return fmt.Errorf("failed to marshal boundary for %s: %w", c.ID, err)
		}

		var uploaded interface{}
		if c.UploadedAt != nil {
			uploaded = c.UploadedAt.Unix()
		}

		_, err = stmt.Exec(
			c.ID, c.X, c.Y, c.OwnerID, c.OwnerName,
			c.Center.Lat, c.Center.Lon, string(boundary),
			c.LastConqueredAt.Unix(), c.ExpiresAt.Unix(), uploaded,
			c.ActivityID, boolToInt(c.IsHotSpot), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert mirror cell %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadAll returns every cached mirror document
func (r *MirrorRepository) LoadAll() ([]models.RemoteCellMirror, error) {
	rows, err := r.db.Query(`
		SELECT cell_id, x, y, owner_id, owner_name, center_lat, center_lon,
			boundary, last_conquered_at, expires_at, uploaded_at, activity_id, is_hot_spot
		FROM mirror_cells
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mirror cells: %w", err)
	}
	defer rows.Close()

	inner := &TerritoryRepository{db: r.db, grid: r.grid}
	return inner.scanCells(rows)
}
