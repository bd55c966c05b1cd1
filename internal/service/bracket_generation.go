package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/AdamBeresnev/darts-bracket/internal/metrics"
	"github.com/AdamBeresnev/darts-bracket/internal/notify"
	"github.com/AdamBeresnev/darts-bracket/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type BracketService struct {
	*core
}

type BracketData struct {
	Tournament *bracket.Tournament   `json:"tournament"`
	Matches    []bracket.Match       `json:"matches"`
	Players    []bracket.MatchPlayer `json:"players"`
}

// GenerateBracket creates every match of the tournament, seeds the first
// round, resolves first-round byes and starts the tournament. Doubles
// tournaments without teams get them drawn first.
func (s *BracketService) GenerateBracket(ctx context.Context, actor bracket.Actor, tournamentID uuid.UUID) (*BracketData, error) {
	if !actor.CanManageTournament() {
		return nil, fmt.Errorf("%w: only an admin can generate brackets", ErrForbidden)
	}

	var tournament *bracket.Tournament
	err := s.run(ctx, "BracketService.GenerateBracket", func(ctx context.Context, tx *sqlx.Tx, outbox *notify.Outbox) error {
		t, err := s.store.LockTournamentTx(ctx, tx, tournamentID)
		if err != nil {
			return notFound(err, "tournament")
		}
		if !t.IsOpen() {
			return fmt.Errorf("%w: tournament is %s", ErrInvalidState, t.Status)
		}
		tournament = t

		entrants, err := s.entrants(ctx, tx, t)
		if err != nil {
			return err
		}
		if len(entrants) < 2 {
			return fmt.Errorf("%w: at least 2 entrants are required, got %d", ErrConflict, len(entrants))
		}

		shape, err := bracket.NewShape(t.Format, len(entrants))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		t.EntrantCount = len(entrants)

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("tournament.format", string(t.Format)),
			attribute.Int("tournament.entrants", len(entrants)),
		)

		byPosition, err := s.createMatches(ctx, tx, t, shape)
		if err != nil {
			return err
		}
		if err := s.seat(ctx, tx, shape, byPosition, entrants); err != nil {
			return err
		}

		u, err := s.engine.newUnit(tx, outbox, t)
		if err != nil {
			return err
		}
		byes, err := s.resolveSeededByes(ctx, u, shape, byPosition)
		if err != nil {
			return err
		}
		for _, m := range byes {
			if err := s.engine.cascade(ctx, u, m); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := s.store.StartTournamentTx(ctx, tx, t.ID, t.EntrantCount, now); err != nil {
			return fmt.Errorf("failed to start tournament: %w", err)
		}
		t.Status = bracket.TournamentInProgress
		t.StartTime = utils.Ptr(now)

		assigned, err := s.sched.autoAssign(ctx, tx, outbox, t)
		if err != nil {
			return err
		}

		slog.InfoContext(ctx, "bracket generated",
			"tournament_id", t.ID,
			"format", t.Format,
			"entrants", t.EntrantCount,
			"matches", len(byPosition),
			"byes", len(byes),
			"boards_assigned", assigned,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	matches, err := s.store.GetMatches(ctx, tournament.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	players, err := s.store.GetTournamentMatchPlayers(ctx, tournament.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match players: %w", err)
	}
	tournament, err = s.store.GetTournament(ctx, tournament.ID)
	if err != nil {
		return nil, notFound(err, "tournament")
	}
	return &BracketData{Tournament: tournament, Matches: matches, Players: players}, nil
}

// entrants returns the competitors in seed order: teams in doubles formats,
// registered players otherwise.
func (s *BracketService) entrants(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament) ([]bracket.Competitor, error) {
	if t.Format.IsDoubles() {
		teams, err := s.store.GetTeamsTx(ctx, tx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get teams: %w", err)
		}
		if len(teams) == 0 {
			entries, err := s.store.GetEntriesTx(ctx, tx, t.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to get entries: %w", err)
			}
			if teams, err = drawTeams(ctx, tx, s.core, t, entries); err != nil {
				return nil, err
			}
		}

		competitors := make([]bracket.Competitor, 0, len(teams))
		for i := range teams {
			competitors = append(competitors, bracket.Competitor{
				PlayerIDs: teams[i].Members(),
				TeamID:    utils.Ptr(teams[i].ID),
			})
		}
		return competitors, nil
	}

	entries, err := s.store.GetEntriesTx(ctx, tx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	competitors := make([]bracket.Competitor, 0, len(entries))
	for _, e := range entries {
		competitors = append(competitors, bracket.Competitor{PlayerIDs: []uuid.UUID{e.PlayerID}})
	}
	return competitors, nil
}

func (s *BracketService) createMatches(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament, shape bracket.Shape) (map[bracket.Position]*bracket.Match, error) {
	positions := shape.Positions()
	now := time.Now().UTC()

	matches := make([]bracket.Match, 0, len(positions))
	for i, pos := range positions {
		matches = append(matches, bracket.Match{
			ID:              newID(),
			TournamentID:    t.ID,
			BracketPosition: pos.String(),
			BracketSide:     shape.Side(pos),
			RoundNumber:     shape.RoundNumber(pos),
			MatchNumber:     i + 1,
			Status:          bracket.MatchPending,
			CreatedAt:       now,
		})
	}
	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, fmt.Errorf("failed to create matches: %w", err)
	}

	byPosition := make(map[bracket.Position]*bracket.Match, len(matches))
	for i, pos := range positions {
		byPosition[pos] = &matches[i]
	}
	return byPosition, nil
}

func (s *BracketService) seat(ctx context.Context, tx *sqlx.Tx, shape bracket.Shape, byPosition map[bracket.Position]*bracket.Match, entrants []bracket.Competitor) error {
	now := time.Now().UTC()
	for _, seat := range shape.Seats() {
		m := byPosition[seat.Position]
		c := entrants[seat.Entrant]
		for i, playerID := range c.PlayerIDs {
			mp := &bracket.MatchPlayer{
				ID:        newID(),
				MatchID:   m.ID,
				PlayerID:  playerID,
				TeamID:    c.TeamID,
				Slot:      seat.Slot,
				CreatedAt: now,
			}
			if c.TeamID != nil {
				mp.TeamPosition = utils.Ptr(i + 1)
			}
			if err := s.store.AddMatchPlayerTx(ctx, tx, mp); err != nil {
				return fmt.Errorf("failed to seat entrant %d in %s: %w", seat.Entrant+1, seat.Position, err)
			}
		}
	}
	return nil
}

// resolveSeededByes completes every seeded match with fewer than two sides.
// Round robin pairs are always full.
func (s *BracketService) resolveSeededByes(ctx context.Context, u *unit, shape bracket.Shape, byPosition map[bracket.Position]*bracket.Match) ([]*bracket.Match, error) {
	var byes []*bracket.Match
	for _, pos := range shape.Positions() {
		if !pos.IsSeeded() || pos.Kind == bracket.KindRoundRobin {
			continue
		}

		m := byPosition[pos]
		players, err := s.store.GetMatchPlayersTx(ctx, u.tx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get players of %s: %w", pos, err)
		}
		slots := bracket.OccupiedSlots(players)
		if len(slots) == 2 {
			continue
		}

		winnerSlot := 0
		if len(slots) == 1 {
			winnerSlot = slots[0]
		}
		if err := s.engine.complete(ctx, u, m, players, winnerSlot, metrics.ReasonBye); err != nil {
			return nil, err
		}
		byes = append(byes, m)
	}
	return byes, nil
}
