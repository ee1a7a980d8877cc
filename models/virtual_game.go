package models

import "time"

// GameType identifies a virtual game.
type GameType string

const (
	GameTypeDigit GameType = "digit"
	GameTypeColor GameType = "color"
	GameTypeCrash GameType = "crash"
)

// DigitOutcomes is the selection set of the instant digit game.
var DigitOutcomes = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

// ColorOutcomes is the selection set of the instant color game.
var ColorOutcomes = []string{"red", "green", "violet"}

// VirtualGameConfig is the per-game-type configuration row. CrashSeries is
// only populated for the crash game; CurrentIndex points at the crash value
// the next completed round will consume.
type VirtualGameConfig struct {
	GameType                    GameType  `db:"game_type"`
	CrashSeries                 []float64 `db:"crash_series"`
	CurrentIndex                int       `db:"current_index"`
	AutoCompleteEnabled         bool      `db:"auto_complete_enabled"`
	AutoCompleteIntervalSeconds int       `db:"auto_complete_interval_seconds"`
	UpdatedAt                   time.Time `db:"updated_at"`
}

// NextCrashPoint returns the crash value the next round completion consumes.
func (c *VirtualGameConfig) NextCrashPoint() float64 {
	if len(c.CrashSeries) == 0 {
		return 1.0
	}
	return c.CrashSeries[c.CurrentIndex%len(c.CrashSeries)]
}

// CrashRound is one instance of the crash game. The crash point is read from
// the configured series, never generated live, so rounds stay auditable.
type CrashRound struct {
	ID          string     `db:"id"`
	GameType    GameType   `db:"game_type"`
	SeriesIndex int        `db:"series_index"`
	CrashPoint  float64    `db:"crash_point"`
	StartedAt   time.Time  `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// IsOpen reports whether the round is still accepting bets and cash-outs.
func (r *CrashRound) IsOpen() bool {
	return r.CompletedAt == nil
}
