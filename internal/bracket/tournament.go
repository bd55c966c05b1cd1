package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentDraft        TournamentStatus = "draft"
	TournamentRegistration TournamentStatus = "registration"
	TournamentInProgress   TournamentStatus = "in_progress"
	TournamentCompleted    TournamentStatus = "completed"
	TournamentCancelled    TournamentStatus = "cancelled"
)

type TournamentFormat string

const (
	SingleElimination TournamentFormat = "single_elimination"
	DoubleElimination TournamentFormat = "double_elimination"
	RoundRobin        TournamentFormat = "round_robin"
	LuckyDrawDoubles  TournamentFormat = "lucky_draw_doubles"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case SingleElimination, DoubleElimination, RoundRobin, LuckyDrawDoubles:
		return true
	}
	return false
}

// IsDoubles reports whether a match side is a team of two players.
func (f TournamentFormat) IsDoubles() bool {
	return f == LuckyDrawDoubles
}

type Tournament struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	Name          string           `db:"name" json:"name"`
	Format        TournamentFormat `db:"format" json:"format"`
	Status        TournamentStatus `db:"status" json:"status"`
	GameType      string           `db:"game_type" json:"game_type"`
	StartingScore int              `db:"starting_score" json:"starting_score"`
	DoubleIn      bool             `db:"double_in" json:"double_in"`
	DoubleOut     bool             `db:"double_out" json:"double_out"`
	// Number of seeded entrants (players or teams), fixed when the bracket is generated
	EntrantCount int        `db:"entrant_count" json:"entrant_count"`
	MaxPlayers   *int       `db:"max_players" json:"max_players,omitempty"`
	StartTime    *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime      *time.Time `db:"end_time" json:"end_time,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Accepting entrants and (re)building the bracket is only allowed before play starts.
func (t *Tournament) IsOpen() bool {
	return t.Status == TournamentDraft || t.Status == TournamentRegistration
}
