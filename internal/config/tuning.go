package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds the gameplay constants for the territory engine. Values can
// be overridden from a YAML file; anything unset keeps the defaults.
type Tuning struct {
	// Grid geometry
	CellEdgeDegrees float64 `yaml:"cell_edge_degrees"` // ~200 m at mid latitudes
	StepMeters      float64 `yaml:"step_meters"`       // route interpolation step
	ShortSegmentM   float64 `yaml:"short_segment_m"`   // below this, no interpolation

	// Territory lifecycle
	TTLDays           int `yaml:"ttl_days"`            // ownership tenure
	StealGraceMinutes int `yaml:"steal_grace_minutes"` // rival claims younger than this cannot be stolen
	ExpiryTickSeconds int `yaml:"expiry_tick_seconds"` // periodic expiry sweep interval

	// Conflict reconciliation
	DebounceMillis int `yaml:"debounce_millis"` // mirror burst coalescing window

	// Scoring
	NewCellCap      int                `yaml:"new_cell_cap"`      // XP-relevant new cells per activity
	NewCellXP       int                `yaml:"new_cell_xp"`       // weight of first-time claims
	DefendCellXP    int                `yaml:"defend_cell_xp"`    // weight of renewed cells
	RecaptureCellXP int                `yaml:"recapture_cell_xp"` // weight of reclaimed cells
	StreakWeekXP    int                `yaml:"streak_week_xp"`    // per consecutive active week
	BaseXPPerKm     int                `yaml:"base_xp_per_km"`    // outdoor base rate before type multiplier
	IndoorXPPerMin  int                `yaml:"indoor_xp_per_min"` // indoor activities score by duration
	DailyBaseXPCap  int                `yaml:"daily_base_xp_cap"` // base component daily ceiling
	MinDistanceM    float64            `yaml:"min_distance_m"`    // below this an outdoor activity earns no base XP
	MinDurationS    int64              `yaml:"min_duration_s"`    // below this no activity earns base XP
	RecordMarginKm  float64            `yaml:"record_margin_km"`  // weekly record must beat best by this much
	RecordXPPerKm   int                `yaml:"record_xp_per_km"`  // weekly record scale
	TypeMultipliers map[string]float64 `yaml:"type_multipliers"`
}

// DefaultTuning returns the shipped gameplay constants
func DefaultTuning() Tuning {
	return Tuning{
		CellEdgeDegrees:   0.002,
		StepMeters:        20,
		ShortSegmentM:     10,
		TTLDays:           7,
		StealGraceMinutes: 10,
		ExpiryTickSeconds: 300,
		DebounceMillis:    250,
		NewCellCap:        50,
		NewCellXP:         10,
		DefendCellXP:      3,
		RecaptureCellXP:   6,
		StreakWeekXP:      15,
		BaseXPPerKm:       10,
		IndoorXPPerMin:    2,
		DailyBaseXPCap:    1000,
		MinDistanceM:      500,
		MinDurationS:      300,
		RecordMarginKm:    1.0,
		RecordXPPerKm:     20,
		TypeMultipliers: map[string]float64{
			"run":  1.5,
			"walk": 1.0,
			"bike": 0.7,
		},
	}
}

// LoadTuning loads tuning from a YAML file, applying defaults for anything
// the file omits. An empty path returns the defaults unchanged.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(b, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Validate rejects values the engine cannot operate with
func (t Tuning) Validate() error {
	if t.CellEdgeDegrees <= 0 {
		return fmt.Errorf("cell_edge_degrees must be positive, got %v", t.CellEdgeDegrees)
	}
	if t.StepMeters <= 0 {
		return fmt.Errorf("step_meters must be positive, got %v", t.StepMeters)
	}
	if t.ShortSegmentM < 0 {
		return fmt.Errorf("short_segment_m must not be negative, got %v", t.ShortSegmentM)
	}
	if t.TTLDays <= 0 {
		return fmt.Errorf("ttl_days must be positive, got %d", t.TTLDays)
	}
	if t.NewCellCap <= 0 {
		return fmt.Errorf("new_cell_cap must be positive, got %d", t.NewCellCap)
	}
	if t.DailyBaseXPCap < 0 {
		return fmt.Errorf("daily_base_xp_cap must not be negative, got %d", t.DailyBaseXPCap)
	}
	return nil
}

// TTL returns the ownership tenure as a duration
func (t Tuning) TTL() time.Duration {
	return time.Duration(t.TTLDays) * 24 * time.Hour
}

// StealGrace returns the protection window for fresh rival claims
func (t Tuning) StealGrace() time.Duration {
	return time.Duration(t.StealGraceMinutes) * time.Minute
}

// Debounce returns the mirror reconciliation coalescing window
func (t Tuning) Debounce() time.Duration {
	return time.Duration(t.DebounceMillis) * time.Millisecond
}
