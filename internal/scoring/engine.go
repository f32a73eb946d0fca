package scoring

import (
	"github.com/runconquer/territory-backend-go/internal/config"
	"github.com/runconquer/territory-backend-go/internal/models"
)

// Engine computes XP breakdowns from activities, their territory deltas and
// rolling player context. It is a pure calculator: no state, no clock, no
// persistence, and it never fails for well-formed input. Out-of-range values
// clamp to zero contribution.
type Engine struct {
	cfg config.Tuning
}

// NewEngine creates a scoring engine with the given tuning
func NewEngine(cfg config.Tuning) Engine {
	return Engine{cfg: cfg}
}

// Score computes the XP breakdown for one activity. Every component is
// independently non-negative; the total award is their sum.
func (e Engine) Score(a models.ActivityTrace, delta models.TerritoryDelta, pc models.PlayerScoringContext) models.XPBreakdown {
	return models.XPBreakdown{
		Base:         e.baseXP(a, pc),
		Territory:    e.territoryXP(delta),
		Streak:       e.streakXP(pc),
		WeeklyRecord: e.weeklyRecordXP(pc),
		Badges:       clampNonNegative(pc.BadgeBonus),
	}
}

// baseXP scores distance (outdoor) or duration (indoor), gated by the
// minimum-effort thresholds and clamped against the daily cap.
func (e Engine) baseXP(a models.ActivityTrace, pc models.PlayerScoringContext) int {
	if a.DurationS < e.cfg.MinDurationS {
		return 0
	}

	var raw int
	if a.Type == models.ActivityIndoor {
		minutes := a.DurationS / 60
		raw = int(minutes) * e.cfg.IndoorXPPerMin
	} else {
		if a.DistanceM < e.cfg.MinDistanceM {
			return 0
		}
		mult, ok := e.cfg.TypeMultipliers[string(a.Type)]
		if !ok {
			mult = 1.0
		}
		raw = int(a.DistanceM / 1000.0 * float64(e.cfg.BaseXPPerKm) * mult)
	}
	raw = clampNonNegative(raw)

	// Daily base-XP cap
	remaining := e.cfg.DailyBaseXPCap - clampNonNegative(pc.TodayBaseXP)
	if remaining < 0 {
		remaining = 0
	}
	if raw > remaining {
		raw = remaining
	}
	return raw
}

// territoryXP weighs the delta counts. The new-cell count is clamped to the
// per-activity cap before multiplication; the ledger keeps every conquered
// cell, only the XP contribution is limited.
func (e Engine) territoryXP(delta models.TerritoryDelta) int {
	newCells := clampNonNegative(delta.New)
	if newCells > e.cfg.NewCellCap {
		newCells = e.cfg.NewCellCap
	}

	xp := newCells*e.cfg.NewCellXP +
		clampNonNegative(delta.Defended)*e.cfg.DefendCellXP +
		clampNonNegative(delta.Recaptured)*e.cfg.RecaptureCellXP
	return clampNonNegative(xp)
}

func (e Engine) streakXP(pc models.PlayerScoringContext) int {
	if pc.StreakWeeks <= 0 {
		return 0
	}
	return clampNonNegative(pc.StreakWeeks * e.cfg.StreakWeekXP)
}

// weeklyRecordXP awards a bonus only when this week's cumulative distance
// beats the best historical week by at least the configured margin, scaled
// by the kilometer delta.
func (e Engine) weeklyRecordXP(pc models.PlayerScoringContext) int {
	week := pc.WeekDistanceM
	best := pc.BestWeekDistanceM
	if week <= 0 || best < 0 {
		return 0
	}

	deltaKm := (week - best) / 1000.0
	if deltaKm < e.cfg.RecordMarginKm {
		return 0
	}
	return clampNonNegative(int(deltaKm * float64(e.cfg.RecordXPPerKm)))
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
