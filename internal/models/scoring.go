package models

// TerritoryDelta aggregates the territorial outcome of one processed
// activity. It feeds the scoring engine and is persisted alongside the
// activity record, never independently of the cell ledger.
type TerritoryDelta struct {
	ActivityID string `json:"activity_id"`

	New        int `json:"new"`        // cells claimed for the first time
	Defended   int `json:"defended"`   // re-entered while already owned
	Recaptured int `json:"recaptured"` // reclaimed after having been lost
	Stolen     int `json:"stolen"`     // taken from a rival owner

	// Unique owner ids the stolen cells were taken from
	StolenFrom []string `json:"stolen_from,omitempty"`
}

// Total returns the number of cells touched by the activity
func (d TerritoryDelta) Total() int {
	return d.New + d.Defended + d.Recaptured + d.Stolen
}

// XPBreakdown is the immutable XP award attached to one activity. Each
// component is independently non-negative; the award is their sum.
type XPBreakdown struct {
	Base         int `json:"base"`
	Territory    int `json:"territory"`
	Streak       int `json:"streak"`
	WeeklyRecord int `json:"weekly_record"`
	Badges       int `json:"badges"`
}

// Total returns the summed award
func (x XPBreakdown) Total() int {
	return x.Base + x.Territory + x.Streak + x.WeeklyRecord + x.Badges
}

// PlayerScoringContext is the rolling player state the scoring engine reads.
// It is supplied fresh per scoring call; the engine never owns or mutates it.
type PlayerScoringContext struct {
	WeekDistanceM     float64 `json:"week_distance_m"`      // cumulative distance this week, the scored activity included
	BestWeekDistanceM float64 `json:"best_week_distance_m"` // best historical weekly distance
	StreakWeeks       int     `json:"streak_weeks"`         // consecutive active weeks
	TodayBaseXP       int     `json:"today_base_xp"`        // base XP already earned today, for the daily cap
	BadgeBonus        int     `json:"badge_bonus"`          // flat bonus for badges unlocked by this activity
}
