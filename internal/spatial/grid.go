package spatial

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/runconquer/territory-backend-go/internal/models"
)

// Grid maps coordinates onto a fixed equirectangular grid. All methods are
// pure; two Grids with the same parameters are interchangeable.
type Grid struct {
	EdgeDegrees   float64 // cell edge length in degrees, both axes
	StepMeters    float64 // interpolation step for route segments
	ShortSegmentM float64 // segments shorter than this yield only the start cell
}

// NewGrid creates a grid with the given cell edge and the default
// interpolation parameters (20 m step, 10 m short-segment threshold).
func NewGrid(edgeDegrees float64) Grid {
	return Grid{
		EdgeDegrees:   edgeDegrees,
		StepMeters:    20,
		ShortSegmentM: 10,
	}
}

// CellIndex returns the integer grid coordinates of the cell containing c.
// X follows longitude, Y follows latitude; both are floor(value / edge).
func (g Grid) CellIndex(c models.Coordinate) (x, y int) {
	x = int(math.Floor(c.Lon / g.EdgeDegrees))
	y = int(math.Floor(c.Lat / g.EdgeDegrees))
	return x, y
}

// CellID builds the stable "x_y" string key for a cell
func CellID(x, y int) string {
	return fmt.Sprintf("%d_%d", x, y)
}

// ParseCellID parses an "x_y" key back into grid coordinates
func ParseCellID(id string) (x, y int, err error) {
	parts := strings.SplitN(id, "_", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid cell id: %q", id)
	}
	x, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cell id %q: %w", id, err)
	}
	y, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cell id %q: %w", id, err)
	}
	return x, y, nil
}

// CellCenter returns the canonical center of cell (x, y)
func (g Grid) CellCenter(x, y int) models.Coordinate {
	return models.Coordinate{
		Lat: (float64(y) + 0.5) * g.EdgeDegrees,
		Lon: (float64(x) + 0.5) * g.EdgeDegrees,
	}
}

// CellBounds returns the cell boundary as a closed rectangle: SW, SE, NE, NW.
// The centroid of the four corners is the cell's canonical center.
func (g Grid) CellBounds(x, y int) []models.Coordinate {
	minLat := float64(y) * g.EdgeDegrees
	minLon := float64(x) * g.EdgeDegrees
	maxLat := minLat + g.EdgeDegrees
	maxLon := minLon + g.EdgeDegrees

	return []models.Coordinate{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: maxLon},
		{Lat: maxLat, Lon: maxLon},
		{Lat: maxLat, Lon: minLon},
	}
}

// CellIndexPair identifies a cell by its grid coordinates
type CellIndexPair struct {
	X int
	Y int
}

// CellsBetween returns the cells crossed by the segment from start to end.
// Segments below the short-segment threshold return only the starting cell.
// Longer segments are linearly interpolated at the configured step so that
// no cell along the path is skipped, diagonal crossings included. Duplicates
// are allowed; callers deduplicate.
func (g Grid) CellsBetween(start, end models.Coordinate) []CellIndexPair {
	sx, sy := g.CellIndex(start)

	dist := HaversineDistance(start.Lat, start.Lon, end.Lat, end.Lon)
	if dist < g.ShortSegmentM {
		return []CellIndexPair{{X: sx, Y: sy}}
	}

	steps := int(math.Ceil(dist / g.StepMeters))
	if steps < 1 {
		// Zero-length segments reach here when the short-circuit threshold
		// is configured to 0; one step keeps the interpolation finite.
		steps = 1
	}
	cells := make([]CellIndexPair, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p := models.Coordinate{
			Lat: start.Lat + (end.Lat-start.Lat)*t,
			Lon: start.Lon + (end.Lon-start.Lon)*t,
		}
		x, y := g.CellIndex(p)
		cells = append(cells, CellIndexPair{X: x, Y: y})
	}
	return cells
}

// CellsForRoute returns the deduplicated set of cells crossed by an ordered
// route, preserving first-visit order. An empty route yields no cells; a
// single point yields exactly its cell.
func (g Grid) CellsForRoute(route []models.RoutePoint) []CellIndexPair {
	if len(route) == 0 {
		return nil
	}

	seen := make(map[CellIndexPair]bool)
	var ordered []CellIndexPair

	add := func(p CellIndexPair) {
		if !seen[p] {
			seen[p] = true
			ordered = append(ordered, p)
		}
	}

	if len(route) == 1 {
		x, y := g.CellIndex(route[0].Coordinate)
		add(CellIndexPair{X: x, Y: y})
		return ordered
	}

	for i := 0; i < len(route)-1; i++ {
		for _, p := range g.CellsBetween(route[i].Coordinate, route[i+1].Coordinate) {
			add(p)
		}
	}
	return ordered
}

// NewCell materializes a Cell record for grid coordinates (x, y) with its
// geometry filled in and no ownership.
func (g Grid) NewCell(x, y int) models.Cell {
	return models.Cell{
		ID:       CellID(x, y),
		X:        x,
		Y:        y,
		Center:   g.CellCenter(x, y),
		Boundary: g.CellBounds(x, y),
	}
}
