package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Player struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	SkillLevel int       `db:"skill_level" json:"skill_level"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Entry registers a player for a tournament.
type Entry struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	PlayerID     uuid.UUID `db:"player_id" json:"player_id"`
	Seed         int       `db:"seed" json:"seed"`
	CheckedIn    bool      `db:"checked_in" json:"checked_in"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Team struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	Name         string    `db:"name" json:"name"`
	Player1ID    uuid.UUID `db:"player1_id" json:"player1_id"`
	Player2ID    uuid.UUID `db:"player2_id" json:"player2_id"`
	Seed         int       `db:"seed" json:"seed"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (t *Team) Members() []uuid.UUID {
	return []uuid.UUID{t.Player1ID, t.Player2ID}
}

type Dartboard struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Number      int       `db:"number" json:"number"`
	Name        string    `db:"name" json:"name"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
