package mirrorstream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/runconquer/territory-backend-go/internal/models"
	"github.com/runconquer/territory-backend-go/internal/spatial"
)

// cellDoc is the wire form of one remote territory document. The current
// schema uses snake_case names; older writers used camelCase variants and
// sometimes omitted the boundary. All variants decode here, at the storage
// boundary, so the domain model never sees the fallback chain.
type cellDoc struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"owner_id"`
	OwnerName string  `json:"owner_name"`
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`

	Boundary []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"boundary"`

	ConqueredAt int64  `json:"last_conquered_at"`
	ExpiresAt   int64  `json:"expires_at"`
	UploadedAt  *int64 `json:"uploaded_at"`
	ActivityID  string `json:"activity_id"`
	IsHotSpot   bool   `json:"is_hot_spot"`

	// Legacy (v1) field names
	LegacyOwner       string `json:"ownerId"`
	LegacyOwnerName   string `json:"ownerName"`
	LegacyConqueredAt int64  `json:"conqueredAt"`
	LegacyExpiresAt   int64  `json:"expiresAt"`
	LegacyUploadedAt  *int64 `json:"uploadedAt"`
	LegacyActivityID  string `json:"activityId"`
}

// decodeCellDoc adapts one wire document into a Cell. Field-name variants
// resolve newest-first; a missing or degenerate boundary is recomputed from
// the cell coordinates instead of being treated as an error.
func decodeCellDoc(grid spatial.Grid, raw json.RawMessage) (models.Cell, error) {
	var doc cellDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.Cell{}, fmt.Errorf("malformed cell document: %w", err)
	}
	if doc.ID == "" {
		return models.Cell{}, fmt.Errorf("cell document missing id")
	}

	x, y, err := spatial.ParseCellID(doc.ID)
	if err != nil {
		return models.Cell{}, err
	}

	c := models.Cell{
		ID:         doc.ID,
		X:          x,
		Y:          y,
		OwnerID:    firstNonEmpty(doc.OwnerID, doc.LegacyOwner),
		OwnerName:  firstNonEmpty(doc.OwnerName, doc.LegacyOwnerName),
		ActivityID: firstNonEmpty(doc.ActivityID, doc.LegacyActivityID),
		IsHotSpot:  doc.IsHotSpot,
	}

	if doc.CenterLat != 0 || doc.CenterLon != 0 {
		c.Center = models.Coordinate{Lat: doc.CenterLat, Lon: doc.CenterLon}
	} else {
		c.Center = grid.CellCenter(x, y)
	}

	if len(doc.Boundary) >= 4 {
		c.Boundary = make([]models.Coordinate, len(doc.Boundary))
		for i, p := range doc.Boundary {
			c.Boundary[i] = models.Coordinate{Lat: p.Lat, Lon: p.Lon}
		}
	} else {
		c.Boundary = grid.CellBounds(x, y)
	}

	conquered := doc.ConqueredAt
	if conquered == 0 {
		conquered = doc.LegacyConqueredAt
	}
	c.LastConqueredAt = time.Unix(conquered, 0)

	expires := doc.ExpiresAt
	if expires == 0 {
		expires = doc.LegacyExpiresAt
	}
	c.ExpiresAt = time.Unix(expires, 0)

	uploaded := doc.UploadedAt
	if uploaded == nil {
		uploaded = doc.LegacyUploadedAt
	}
	if uploaded != nil {
		t := time.Unix(*uploaded, 0)
		c.UploadedAt = &t
	}

	return c, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
