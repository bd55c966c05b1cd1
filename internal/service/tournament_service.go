package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/AdamBeresnev/darts-bracket/internal/gamerules"
	"github.com/AdamBeresnev/darts-bracket/internal/notify"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

type TournamentService struct {
	*core
}

type TournamentInput struct {
	Name          string                   `json:"name"`
	Format        bracket.TournamentFormat `json:"format"`
	GameType      string                   `json:"game_type"`
	StartingScore int                      `json:"starting_score"`
	DoubleIn      bool                     `json:"double_in"`
	DoubleOut     bool                     `json:"double_out"`
	MaxPlayers    *int                     `json:"max_players,omitempty"`
}

func (s *TournamentService) CreateTournament(ctx context.Context, actor bracket.Actor, in TournamentInput) (*bracket.Tournament, error) {
	if !actor.CanManageTournament() {
		return nil, fmt.Errorf("%w: only an admin can create tournaments", ErrForbidden)
	}

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: tournament name is required", ErrInvalidInput)
	case !in.Format.Valid():
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, in.Format)
	case !gamerules.GameType(in.GameType).Valid():
		return nil, fmt.Errorf("%w: unknown game type %q", ErrInvalidInput, in.GameType)
	case in.MaxPlayers != nil && *in.MaxPlayers < 2:
		return nil, fmt.Errorf("%w: max players must be at least 2", ErrInvalidInput)
	}

	tournament := &bracket.Tournament{
		ID:            newID(),
		Name:          name,
		Format:        in.Format,
		Status:        bracket.TournamentDraft,
		GameType:      in.GameType,
		StartingScore: in.StartingScore,
		DoubleIn:      in.DoubleIn,
		DoubleOut:     in.DoubleOut,
		MaxPlayers:    in.MaxPlayers,
		CreatedAt:     time.Now().UTC(),
	}

	err := s.run(ctx, "TournamentService.CreateTournament", func(ctx context.Context, tx *sqlx.Tx, _ *notify.Outbox) error {
		if err := s.store.CreateTournament(ctx, tx, tournament); err != nil {
			return fmt.Errorf("failed to create tournament: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tournament, nil
}

// OpenRegistration moves a draft tournament to registration.
func (s *TournamentService) OpenRegistration(ctx context.Context, actor bracket.Actor, id uuid.UUID) (*bracket.Tournament, error) {
	if !actor.CanManageTournament() {
		return nil, fmt.Errorf("%w: only an admin can open registration", ErrForbidden)
	}

	var tournament *bracket.Tournament
	err := s.run(ctx, "TournamentService.OpenRegistration", func(ctx context.Context, tx *sqlx.Tx, _ *notify.Outbox) error {
		t, err := s.store.LockTournamentTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "tournament")
		}
		if t.Status != bracket.TournamentDraft {
			return fmt.Errorf("%w: tournament is %s", ErrInvalidState, t.Status)
		}
		if err := s.store.UpdateTournamentStatusTx(ctx, tx, t.ID, bracket.TournamentRegistration); err != nil {
			return fmt.Errorf("failed to open registration: %w", err)
		}
		t.Status = bracket.TournamentRegistration
		tournament = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tournament, nil
}

type TournamentData struct {
	Tournament *bracket.Tournament   `json:"tournament"`
	Entries    []bracket.Entry       `json:"entries"`
	Teams      []bracket.Team        `json:"teams,omitempty"`
	Matches    []bracket.Match       `json:"matches"`
	Players    []bracket.MatchPlayer `json:"players"`
	Standings  []bracket.Standing    `json:"standings,omitempty"`
	Layout     bracket.Layout        `json:"layout"`
}

// GetTournamentView loads a tournament with everything needed to render
// it, with matches grouped into display rounds. Round robin tournaments
// also get their standings.
func (s *TournamentService) GetTournamentView(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	ctx, span := s.tracer.Start(ctx, "TournamentService.GetTournamentView")
	defer span.End()

	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, notFound(err, "tournament")
	}

	data := &TournamentData{Tournament: tournament}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data.Entries, err = s.store.GetEntries(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		data.Teams, err = s.store.GetTeams(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		data.Matches, err = s.store.GetMatches(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		data.Players, err = s.store.GetTournamentMatchPlayers(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load tournament %s: %w", id, err)
	}

	data.Layout = bracket.BuildLayout(data.Matches)
	if tournament.Format == bracket.RoundRobin {
		data.Standings = standings(data.Entries, data.Matches, data.Players)
	}
	return data, nil
}

func standings(entries []bracket.Entry, matches []bracket.Match, players []bracket.MatchPlayer) []bracket.Standing {
	competitors := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		competitors = append(competitors, e.PlayerID)
	}

	byMatch := make(map[uuid.UUID][]bracket.MatchPlayer, len(matches))
	for _, p := range players {
		byMatch[p.MatchID] = append(byMatch[p.MatchID], p)
	}

	var results []bracket.Result
	for _, m := range matches {
		if m.Status != bracket.MatchCompleted || m.WinnerID == nil {
			continue
		}
		occupants := byMatch[m.ID]
		slot, ok := bracket.SlotOf(occupants, *m.WinnerID)
		if !ok {
			continue
		}
		loser := bracket.Side(occupants, bracket.OtherSlot(slot))
		if loser.IsEmpty() {
			continue
		}
		results = append(results, bracket.Result{WinnerID: *m.WinnerID, LoserID: loser.PlayerIDs[0]})
	}
	return bracket.Standings(competitors, results)
}

func (s *TournamentService) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	return s.store.ListTournaments(ctx)
}
