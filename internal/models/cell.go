package models

import "time"

// Coordinate is a WGS84 point in degrees
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Cell represents one tile of the territory grid and its current ownership.
// The cell identity is the integer pair (X, Y); ID is the "x_y" string form
// used as map key and as the remote document key.
type Cell struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`

	// Geometry
	Center   Coordinate   `json:"center"`
	Boundary []Coordinate `json:"boundary"` // closed rectangle, >= 4 points

	// Ownership
	OwnerID   string `json:"owner_id,omitempty"`
	OwnerName string `json:"owner_name,omitempty"`

	// Timing
	LastConqueredAt time.Time  `json:"last_conquered_at"`     // end of the claiming activity (domain time)
	ExpiresAt       time.Time  `json:"expires_at"`            // LastConqueredAt + TTL
	UploadedAt      *time.Time `json:"uploaded_at,omitempty"` // wall-clock persist time, nil until synced

	// Provenance
	ActivityID string `json:"activity_id,omitempty"`
	IsHotSpot  bool   `json:"is_hot_spot,omitempty"`
}

// RemoteCellMirror is the server-side projection of a cell, usually for a
// different owner. Same shape as Cell; used only as comparison input by the
// conflict resolver, never trusted as local state.
type RemoteCellMirror = Cell

// Owned reports whether the cell currently has an owner
func (c Cell) Owned() bool {
	return c.OwnerID != ""
}

// Expired reports whether the cell's tenure has lapsed at the given instant
func (c Cell) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// CellFilter represents bounding-box filter parameters for territory queries
type CellFilter struct {
	MinLat float64 `form:"minLat"`
	MaxLat float64 `form:"maxLat"`
	MinLon float64 `form:"minLon"`
	MaxLon float64 `form:"maxLon"`
}
