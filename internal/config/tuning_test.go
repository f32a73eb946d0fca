package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTuning_EmptyPathReturnsDefaults(t *testing.T) {
	tuning, err := LoadTuning("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	def := DefaultTuning()
	if tuning.CellEdgeDegrees != def.CellEdgeDegrees || tuning.NewCellCap != def.NewCellCap || tuning.TTLDays != def.TTLDays {
		t.Fatalf("defaults not applied: %+v", tuning)
	}
	if tuning.TypeMultipliers["run"] != def.TypeMultipliers["run"] {
		t.Fatalf("type multipliers missing: %+v", tuning.TypeMultipliers)
	}
}

func TestLoadTuning_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := "new_cell_cap: 25\nttl_days: 14\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	tuning, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if tuning.NewCellCap != 25 {
		t.Fatalf("new_cell_cap not overridden: %d", tuning.NewCellCap)
	}
	if tuning.TTLDays != 14 {
		t.Fatalf("ttl_days not overridden: %d", tuning.TTLDays)
	}
	// Untouched values keep defaults
	if tuning.CellEdgeDegrees != DefaultTuning().CellEdgeDegrees {
		t.Fatalf("unset value lost its default: %v", tuning.CellEdgeDegrees)
	}
}

func TestLoadTuning_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("cell_edge_degrees: -1\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := LoadTuning(path); err == nil {
		t.Fatal("expected validation error for negative cell edge")
	}
}
