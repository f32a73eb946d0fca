package models

import "time"

// ActivityType tags the kind of outdoor (or indoor) activity
type ActivityType string

const (
	ActivityRun    ActivityType = "run"
	ActivityWalk   ActivityType = "walk"
	ActivityBike   ActivityType = "bike"
	ActivityIndoor ActivityType = "indoor"
)

// RoutePoint is one timestamped GPS sample of an activity route
type RoutePoint struct {
	Coordinate
	Time time.Time `json:"time"`
}

// ActivityTrace is an immutable record of one completed activity as supplied
// by the external health-data collector.
type ActivityTrace struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	DistanceM float64      `json:"distance_m"`
	DurationS int64        `json:"duration_s"`
	Route     []RoutePoint `json:"route,omitempty"`
}

// Duration returns the recorded duration
func (a ActivityTrace) Duration() time.Duration {
	return time.Duration(a.DurationS) * time.Second
}

// NeedsRoute reports whether this activity type requires GPS samples to be
// processed. Indoor activities score by duration and carry no route.
func (a ActivityTrace) NeedsRoute() bool {
	return a.Type != ActivityIndoor
}

// Activity processing status values
const (
	ActivityStatusProcessed = "processed"
	ActivityStatusPending   = "pending"
)

// PendingActivity records an activity that could not be processed yet
// (typically a missing route) together with retry bookkeeping.
type PendingActivity struct {
	ActivityID string    `json:"activity_id"`
	RetryCount int       `json:"retry_count"`
	LastError  string    `json:"last_error"`
	UpdatedAt  time.Time `json:"updated_at"`
}
