package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/runconquer/territory-backend-go/internal/database"
	"github.com/runconquer/territory-backend-go/internal/models"
	"github.com/runconquer/territory-backend-go/internal/spatial"
)

// TerritoryRepository persists the cell ledger: one row per conquered cell
// keyed by the "x_y" id.
type TerritoryRepository struct {
	db   *sql.DB
	grid spatial.Grid
}

// NewTerritoryRepository creates a new territory repository
func NewTerritoryRepository(db *sql.DB, grid spatial.Grid) *TerritoryRepository {
	return &TerritoryRepository{db: db, grid: grid}
}

const territoryColumns = `cell_id, x, y, owner_id, owner_name, center_lat, center_lon,
	boundary, last_conquered_at, expires_at, uploaded_at, activity_id, is_hot_spot`

// SaveCells writes a batch of cells in one transaction, assigning the upload
// timestamp on write. Existing rows are replaced.
func (r *TerritoryRepository) SaveCells(cells []models.Cell) error {
	if len(cells) == 0 {
		return nil
	}

	return database.Transaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO territories (` + territoryColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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

			uploaded := now
			if c.UploadedAt != nil {
				uploaded = c.UploadedAt.Unix()
			}

			_, err = stmt.Exec(
				c.ID, c.X, c.Y, c.OwnerID, c.OwnerName,
				c.Center.Lat, c.Center.Lon, string(boundary),
				c.LastConqueredAt.Unix(), c.ExpiresAt.Unix(), uploaded,
				c.ActivityID, boolToInt(c.IsHotSpot),
			)
			if err != nil {
				return fmt.Errorf("failed to insert cell %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// LoadAll returns every persisted cell
func (r *TerritoryRepository) LoadAll() ([]models.Cell, error) {
	rows, err := r.db.Query(`SELECT ` + territoryColumns + ` FROM territories`)
	if err != nil {
		return nil, fmt.Errorf("failed to query territories: %w", err)
	}
	defer rows.Close()

	return r.scanCells(rows)
}

// DeleteCells removes the given cells
func (r *TerritoryRepository) DeleteCells(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	return database.Transaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare("DELETE FROM territories WHERE cell_id = ?")
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, id := range ids {
			if _, err := stmt.Exec(id); err != nil {
				return fmt.Errorf("failed to delete cell %s: %w", id, err)
			}
		}
		return nil
	})
}

func (r *TerritoryRepository) scanCells(rows *sql.Rows) ([]models.Cell, error) {
	var cells []models.Cell
	for rows.Next() {
		var c models.Cell
		var ownerID, ownerName, boundary, activityID sql.NullString
		var conquered, expires int64
		var uploaded sql.NullInt64
		var hotSpot int

		err := rows.Scan(
			&c.ID, &c.X, &c.Y, &ownerID, &ownerName,
			&c.Center.Lat, &c.Center.Lon, &boundary,
			&conquered, &expires, &uploaded,
			&activityID, &hotSpot,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}

		c.OwnerID = ownerID.String
		c.OwnerName = ownerName.String
		c.ActivityID = activityID.String
		c.LastConqueredAt = time.Unix(conquered, 0)
		c.ExpiresAt = time.Unix(expires, 0)
		c.IsHotSpot = hotSpot != 0
		if uploaded.Valid {
			t := time.Unix(uploaded.Int64, 0)
			c.UploadedAt = &t
		}
		c.Boundary = r.repairBoundary(c, boundary.String)

		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cells: %w", err)
	}
	return cells, nil
}

// repairBoundary decodes the stored boundary polygon. Malformed or missing
// boundary data from legacy rows is repaired deterministically from the cell
// coordinates and the fixed edge length, never surfaced as an error.
func (r *TerritoryRepository) repairBoundary(c models.Cell, raw string) []models.Coordinate {
	if raw != "" {
		var boundary []models.Coordinate
		if err := json.Unmarshal([]byte(raw), &boundary); err == nil && len(boundary) >= 4 {
			return boundary
		}
	}
	return r.grid.CellBounds(c.X, c.Y)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
