package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/AdamBeresnev/darts-bracket/internal/notify"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type EntryService struct {
	*core
}

type EntryInput struct {
	PlayerID uuid.UUID `json:"player_id"`
	Seed     *int      `json:"seed,omitempty"`
}

// Register enters a player into an open tournament. Competitors may only
// register themselves. Without an explicit seed the entry is seeded after
// everyone already registered.
func (s *EntryService) Register(ctx context.Context, actor bracket.Actor, tournamentID uuid.UUID, in EntryInput) (*bracket.Entry, error) {
	if self, ok := actor.PlayerID(); !actor.IsAdmin() && (!ok || self != in.PlayerID) {
		return nil, fmt.Errorf("%w: competitors can only register themselves", ErrForbidden)
	}
	if in.Seed != nil && *in.Seed < 1 {
		return nil, fmt.Errorf("%w: seed must be positive", ErrInvalidInput)
	}

	var entry *bracket.Entry
	err := s.run(ctx, "EntryService.Register", func(ctx context.Context, tx *sqlx.Tx, _ *notify.Outbox) error {
		t, err := s.store.LockTournamentTx(ctx, tx, tournamentID)
		if err != nil {
			return notFound(err, "tournament")
		}
		if !t.IsOpen() {
			return fmt.Errorf("%w: registration is closed, tournament is %s", ErrInvalidState, t.Status)
		}
		if _, err := s.players.GetPlayerTx(ctx, tx, in.PlayerID); err != nil {
			return notFound(err, "player")
		}

		entries, err := s.store.GetEntriesTx(ctx, tx, t.ID)
		if err != nil {
			return fmt.Errorf("failed to get entries: %w", err)
		}
		for _, e := range entries {
			if e.PlayerID == in.PlayerID {
				return fmt.Errorf("%w: player is already registered", ErrConflict)
			}
		}
		if t.MaxPlayers != nil && len(entries) >= *t.MaxPlayers {
			return fmt.Errorf("%w: tournament is full", ErrConflict)
		}

		seed := len(entries) + 1
		if in.Seed != nil {
			seed = *in.Seed
		}

		entry = &bracket.Entry{
			ID:           newID(),
			TournamentID: t.ID,
			PlayerID:     in.PlayerID,
			Seed:         seed,
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.store.CreateEntry(ctx, tx, entry); err != nil {
			return fmt.Errorf("failed to create entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DrawTeams pairs the registered players of a lucky draw tournament at
// random. Teams can only be drawn once.
func (s *EntryService) DrawTeams(ctx context.Context, actor bracket.Actor, tournamentID uuid.UUID) ([]bracket.Team, error) {
	if !actor.CanManageTournament() {
		return nil, fmt.Errorf("%w: only an admin can draw teams", ErrForbidden)
	}

	var teams []bracket.Team
	err := s.run(ctx, "EntryService.DrawTeams", func(ctx context.Context, tx *sqlx.Tx, _ *notify.Outbox) error {
		t, err := s.store.LockTournamentTx(ctx, tx, tournamentID)
		if err != nil {
			return notFound(err, "tournament")
		}
		if !t.Format.IsDoubles() {
			return fmt.Errorf("%w: %s is not a doubles format", ErrInvalidState, t.Format)
		}
		if !t.IsOpen() {
			return fmt.Errorf("%w: tournament is %s", ErrInvalidState, t.Status)
		}

		existing, err := s.store.GetTeamsTx(ctx, tx, t.ID)
		if err != nil {
			return fmt.Errorf("failed to get teams: %w", err)
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: teams are already drawn", ErrConflict)
		}

		entries, err := s.store.GetEntriesTx(ctx, tx, t.ID)
		if err != nil {
			return fmt.Errorf("failed to get entries: %w", err)
		}
		teams, err = drawTeams(ctx, tx, s.core, t, entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	return teams, nil
}

// drawTeams shuffles the entries and pairs them in order. Team seeds follow
// the draw.
func drawTeams(ctx context.Context, tx *sqlx.Tx, c *core, t *bracket.Tournament, entries []bracket.Entry) ([]bracket.Team, error) {
	if len(entries)%2 != 0 {
		return nil, fmt.Errorf("%w: %d players cannot be paired into teams", ErrConflict, len(entries))
	}

	drawn := make([]bracket.Entry, len(entries))
	copy(drawn, entries)
	rand.Shuffle(len(drawn), func(i, j int) { drawn[i], drawn[j] = drawn[j], drawn[i] })

	now := time.Now().UTC()
	teams := make([]bracket.Team, 0, len(drawn)/2)
	for i := 0; i+1 < len(drawn); i += 2 {
		first, err := c.players.GetPlayerTx(ctx, tx, drawn[i].PlayerID)
		if err != nil {
			return nil, notFound(err, "player")
		}
		second, err := c.players.GetPlayerTx(ctx, tx, drawn[i+1].PlayerID)
		if err != nil {
			return nil, notFound(err, "player")
		}

		teams = append(teams, bracket.Team{
			ID:           newID(),
			TournamentID: t.ID,
			Name:         first.Name + " & " + second.Name,
			Player1ID:    first.ID,
			Player2ID:    second.ID,
			Seed:         len(teams) + 1,
			CreatedAt:    now,
		})
	}

	if err := c.store.CreateTeams(ctx, tx, teams); err != nil {
		return nil, fmt.Errorf("failed to create teams: %w", err)
	}
	return teams, nil
}
