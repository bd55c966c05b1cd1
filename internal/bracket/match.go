package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending           MatchStatus = "pending"
	MatchWaitingForPlayers MatchStatus = "waiting_for_players"
	MatchInProgress        MatchStatus = "in_progress"
	MatchCompleted         MatchStatus = "completed"
	MatchDisputed          MatchStatus = "disputed"
	MatchCancelled         MatchStatus = "cancelled"
)

func (s MatchStatus) IsTerminal() bool {
	return s == MatchCompleted || s == MatchCancelled
}

type BracketSide string

const (
	WinnersSide BracketSide = "winners"
	LosersSide  BracketSide = "losers"
	FinalsSide  BracketSide = "finals"
)

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Position in the tournament. BracketPosition is the topology key,
	// MatchNumber is only for display and is never reused.
	BracketPosition string      `db:"bracket_position" json:"bracket_position"`
	BracketSide     BracketSide `db:"bracket_side" json:"bracket_side"`
	RoundNumber     int         `db:"round_number" json:"round_number"`
	MatchNumber     int         `db:"match_number" json:"match_number"`

	Status       MatchStatus `db:"status" json:"status"`
	WinnerID     *uuid.UUID  `db:"winner_id" json:"winner_id,omitempty"`
	WinnerTeamID *uuid.UUID  `db:"winner_team_id" json:"winner_team_id,omitempty"`
	DartboardID  *uuid.UUID  `db:"dartboard_id" json:"dartboard_id,omitempty"`
	IsBye        bool        `db:"is_bye" json:"is_bye"`

	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (m *Match) Position() (Position, error) {
	return ParsePosition(m.BracketPosition)
}

func (m *Match) HasWinner() bool {
	return m.WinnerID != nil || m.WinnerTeamID != nil
}

// MatchPlayer is one occupant of a match. In doubles both members of a team
// share the slot and the team id.
type MatchPlayer struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	MatchID      uuid.UUID  `db:"match_id" json:"match_id"`
	PlayerID     uuid.UUID  `db:"player_id" json:"player_id"`
	TeamID       *uuid.UUID `db:"team_id" json:"team_id,omitempty"`
	Slot         int        `db:"slot" json:"slot"`
	TeamPosition *int       `db:"team_position" json:"team_position,omitempty"`
	ReportedWin  *bool      `db:"reported_win" json:"reported_win,omitempty"`

	OnMyWayAt        *time.Time `db:"on_my_way_at" json:"on_my_way_at,omitempty"`
	ArrivedAtBoardAt *time.Time `db:"arrived_at_board_at" json:"arrived_at_board_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// Game holds the state produced by the game-rules engine for one leg.
type Game struct {
	ID        uuid.UUID `db:"id" json:"id"`
	MatchID   uuid.UUID `db:"match_id" json:"match_id"`
	SetNumber int       `db:"set_number" json:"set_number"`
	LegNumber int       `db:"leg_number" json:"leg_number"`
	Status    string    `db:"status" json:"status"`
	GameData  string    `db:"game_data" json:"game_data"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Competitor is whoever holds one side of a match: a single player, or a
// team with both of its members.
type Competitor struct {
	PlayerIDs []uuid.UUID
	TeamID    *uuid.UUID
}

func (c Competitor) IsEmpty() bool {
	return len(c.PlayerIDs) == 0
}

// Side collects the occupants of the given slot.
func Side(players []MatchPlayer, slot int) Competitor {
	var c Competitor
	for _, p := range players {
		if p.Slot != slot {
			continue
		}
		c.PlayerIDs = append(c.PlayerIDs, p.PlayerID)
		if p.TeamID != nil && c.TeamID == nil {
			id := *p.TeamID
			c.TeamID = &id
		}
	}
	return c
}

func OccupiedSlots(players []MatchPlayer) []int {
	var slots []int
	seen := make(map[int]bool, 2)
	for _, p := range players {
		if !seen[p.Slot] {
			seen[p.Slot] = true
			slots = append(slots, p.Slot)
		}
	}
	return slots
}

// IsFull reports whether both sides are present: two players in singles,
// four players across two teams in doubles.
func IsFull(players []MatchPlayer, doubles bool) bool {
	if len(OccupiedSlots(players)) != 2 {
		return false
	}
	if doubles {
		return len(players) == 4
	}
	return len(players) == 2
}

func FindPlayer(players []MatchPlayer, playerID uuid.UUID) (*MatchPlayer, bool) {
	for i := range players {
		if players[i].PlayerID == playerID {
			return &players[i], true
		}
	}
	return nil, false
}

// SlotOf resolves a competitor id (player or team) to the slot it occupies.
func SlotOf(players []MatchPlayer, id uuid.UUID) (int, bool) {
	for _, p := range players {
		if p.PlayerID == id || (p.TeamID != nil && *p.TeamID == id) {
			return p.Slot, true
		}
	}
	return 0, false
}

// OtherSlot returns the opposing side.
func OtherSlot(slot int) int {
	if slot == 1 {
		return 2
	}
	return 1
}
