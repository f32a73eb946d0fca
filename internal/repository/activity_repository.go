package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/runconquer/territory-backend-go/internal/models"
)

// ActivityRepository persists processed activities together with their
// territory delta and XP breakdown, and tracks pending retries for
// activities that arrived without a usable route.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// SaveProcessed records one fully processed activity with its scoring
// outcome. Replaces any previous pending row for the same activity.
func (r *ActivityRepository) SaveProcessed(a models.ActivityTrace, delta models.TerritoryDelta, xp models.XPBreakdown) error {
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO activities (
			id, type, start_time, end_time, distance_m, duration_s,
			status, retry_count, last_error,
			delta_new, delta_defended, delta_recaptured, delta_stolen, stolen_from,
			xp_base, xp_territory, xp_streak, xp_weekly_record, xp_badges,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, string(a.Type), a.StartTime.Unix(), a.EndTime.Unix(), a.DistanceM, a.DurationS,
		models.ActivityStatusProcessed,
		delta.New, delta.Defended, delta.Recaptured, delta.Stolen, strings.Join(delta.StolenFrom, ","),
		xp.Base, xp.Territory, xp.Streak, xp.WeeklyRecord, xp.Badges,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save processed activity %s: %w", a.ID, err)
	}
	return nil
}

// SavePending records an activity in the retryable pending state,
// incrementing the retry counter if a pending row already exists.
func (r *ActivityRepository) SavePending(a models.ActivityTrace, p models.PendingActivity) error {
	_, err := r.db.Exec(`
		INSERT INTO activities (
			id, type, start_time, end_time, distance_m, duration_s,
			status, retry_count, last_error, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			retry_count = activities.retry_count + 1,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`,
		a.ID, string(a.Type), a.StartTime.Unix(), a.EndTime.Unix(), a.DistanceM, a.DurationS,
		models.ActivityStatusPending, p.RetryCount, p.LastError, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save pending activity %s: %w", a.ID, err)
	}
	return nil
}

// GetScore returns the persisted delta and XP breakdown for one activity.
// Returns (nil, nil, nil) when the activity is unknown or still pending.
func (r *ActivityRepository) GetScore(activityID string) (*models.TerritoryDelta, *models.XPBreakdown, error) {
	row := r.db.QueryRow(`
		SELECT delta_new, delta_defended, delta_recaptured, delta_stolen, stolen_from,
			xp_base, xp_territory, xp_streak, xp_weekly_record, xp_badges
		FROM activities WHERE id = ? AND status = ?
	`, activityID, models.ActivityStatusProcessed)

	var delta models.TerritoryDelta
	var xp models.XPBreakdown
	var stolenFrom sql.NullString

	err := row.Scan(
		&delta.New, &delta.Defended, &delta.Recaptured, &delta.Stolen, &stolenFrom,
		&xp.Base, &xp.Territory, &xp.Streak, &xp.WeeklyRecord, &xp.Badges,
	)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get activity score: %w", err)
	}

	delta.ActivityID = activityID
	if stolenFrom.String != "" {
		delta.StolenFrom = strings.Split(stolenFrom.String, ",")
	}
	return &delta, &xp, nil
}

// ListPending returns the activities waiting for a retry
func (r *ActivityRepository) ListPending() ([]models.PendingActivity, error) {
	rows, err := r.db.Query(`
		SELECT id, retry_count, last_error, updated_at
		FROM activities WHERE status = ? ORDER BY updated_at
	`, models.ActivityStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending activities: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingActivity
	for rows.Next() {
		var p models.PendingActivity
		var lastError sql.NullString
		var updated int64
		if err := rows.Scan(&p.ActivityID, &p.RetryCount, &lastError, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan pending activity: %w", err)
		}
		p.LastError = lastError.String
		p.UpdatedAt = time.Unix(updated, 0)
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending activities: %w", err)
	}
	return pending, nil
}
