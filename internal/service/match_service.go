package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/AdamBeresnev/darts-bracket/internal/gamerules"
	"github.com/AdamBeresnev/darts-bracket/internal/metrics"
	"github.com/AdamBeresnev/darts-bracket/internal/notify"
	"github.com/AdamBeresnev/darts-bracket/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type MatchService struct {
	*core
	rules gamerules.Engine
}

type MatchData struct {
	Match   *bracket.Match        `json:"match"`
	Players []bracket.MatchPlayer `json:"players"`
	Games   []bracket.Game        `json:"games"`
}

func (s *MatchService) GetMatch(ctx context.Context, id uuid.UUID) (*MatchData, error) {
	match, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, notFound(err, "match")
	}

	players, err := s.store.GetMatchPlayers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match players: %w", err)
	}

	games, err := s.store.GetGames(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get games: %w", err)
	}

	return &MatchData{Match: match, Players: players, Games: games}, nil
}

// lockMatch locks the tournament first and then the match, the same order
// bracket generation uses.
func (s *MatchService) lockMatch(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, *bracket.Match, []bracket.MatchPlayer, error) {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, nil, nil, notFound(err, "match")
	}

	t, err := s.store.LockTournamentTx(ctx, tx, m.TournamentID)
	if err != nil {
		return nil, nil, nil, notFound(err, "tournament")
	}

	m, err = s.store.LockMatchTx(ctx, tx, id)
	if err != nil {
		return nil, nil, nil, notFound(err, "match")
	}

	players, err := s.store.GetMatchPlayersTx(ctx, tx, id)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get match players: %w", err)
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("tournament.id", t.ID.String()),
		attribute.String("match.position", m.BracketPosition),
	)
	return t, m, players, nil
}

// StartMatch puts a full match in play and creates its first game.
func (s *MatchService) StartMatch(ctx context.Context, actor bracket.Actor, id uuid.UUID) (*MatchData, error) {
	var data *MatchData
	err := s.run(ctx, "MatchService.StartMatch", func(ctx context.Context, tx *sqlx.Tx, outbox *notify.Outbox) error {
		t, m, players, err := s.lockMatch(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.Status != bracket.MatchPending && m.Status != bracket.MatchWaitingForPlayers {
			return fmt.Errorf("%w: match %s is %s", ErrInvalidState, m.BracketPosition, m.Status)
		}
		if !actor.CanStart(players) {
			return fmt.Errorf("%w: %s is not in match %s", ErrForbidden, actor, m.BracketPosition)
		}
		if !bracket.IsFull(players, t.Format.IsDoubles()) {
			return fmt.Errorf("%w: match %s is not full", ErrConflict, m.BracketPosition)
		}

		state, err := s.rules.CreateGame(t.GameType, t.StartingScore, t.DoubleIn, t.DoubleOut)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}

		now := time.Now().UTC()
		m.Status = bracket.MatchInProgress
		m.StartedAt = utils.Ptr(now)
		if err := s.store.UpdateMatchTx(ctx, tx, m); err != nil {
			return fmt.Errorf("failed to start match: %w", err)
		}

		game := &bracket.Game{
			ID:        newID(),
			MatchID:   m.ID,
			SetNumber: 1,
			LegNumber: 1,
			Status:    "in_progress",
			GameData:  string(state),
			CreatedAt: now,
		}
		if err := s.store.CreateGameTx(ctx, tx, game); err != nil {
			return fmt.Errorf("failed to create game: %w", err)
		}

		outbox.MatchUpdated(ctx, notify.MatchEvent{TournamentID: t.ID, Match: *m, Players: players})
		data = &MatchData{Match: m, Players: players, Games: []bracket.Game{*game}}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ReportResult records one side's claim. The first claim is stored as is;
// the second either completes the match or marks it disputed.
func (s *MatchService) ReportResult(ctx context.Context, actor bracket.Actor, id uuid.UUID, claimsWin bool) (*bracket.Match, error) {
	playerID, ok := actor.PlayerID()
	if !ok {
		return nil, fmt.Errorf("%w: only competitors report results", ErrForbidden)
	}

	var match *bracket.Match
	err := s.run(ctx, "MatchService.ReportResult", func(ctx context.Context, tx *sqlx.Tx, outbox *notify.Outbox) error {
		t, m, players, err := s.lockMatch(ctx, tx, id)
		if err != nil {
			return err
		}
		match = m

		if m.Status.IsTerminal() {
			return fmt.Errorf("%w: match %s is %s", ErrInvalidState, m.BracketPosition, m.Status)
		}
		if !actor.CanReportFor(players) {
			return fmt.Errorf("%w: %s is not in match %s", ErrForbidden, actor, m.BracketPosition)
		}
		reporter, _ := bracket.FindPlayer(players, playerID)
		if !bracket.IsFull(players, t.Format.IsDoubles()) {
			return fmt.Errorf("%w: match %s is not full", ErrConflict, m.BracketPosition)
		}

		mine, theirs := sideReport(players, reporter.Slot), sideReport(players, bracket.OtherSlot(reporter.Slot))
		if mine != nil {
			return fmt.Errorf("%w: slot %d already reported", ErrConflict, reporter.Slot)
		}

		if err := s.store.SetReportedWinTx(ctx, tx, reporter.ID, claimsWin); err != nil {
			return fmt.Errorf("failed to record report: %w", err)
		}

		switch {
		case theirs == nil:
			reporter.ReportedWin = utils.Ptr(claimsWin)
			outbox.MatchUpdated(ctx, notify.MatchEvent{TournamentID: t.ID, Match: *m, Players: players})
			return nil

		case *theirs != claimsWin:
			winnerSlot := reporter.Slot
			if !claimsWin {
				winnerSlot = bracket.OtherSlot(reporter.Slot)
			}
			return s.finish(ctx, tx, outbox, t, m, players, winnerSlot, metrics.ReasonReport)

		default:
			m.Status = bracket.MatchDisputed
			if err := s.store.UpdateMatchTx(ctx, tx, m); err != nil {
				return fmt.Errorf("failed to mark dispute: %w", err)
			}
			if err := s.store.ResetReportsTx(ctx, tx, m.ID); err != nil {
				return fmt.Errorf("failed to reset reports: %w", err)
			}
			for i := range players {
				players[i].ReportedWin = nil
			}
			s.metrics.Dispute()
			slog.InfoContext(ctx, "match disputed", "match", m.BracketPosition, "tournament_id", t.ID)
			outbox.MatchUpdated(ctx, notify.MatchEvent{TournamentID: t.ID, Match: *m, Players: players})
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// sideReport returns the claim of the given slot, if any member made one.
func sideReport(players []bracket.MatchPlayer, slot int) *bool {
	for _, p := range players {
		if p.Slot == slot && p.ReportedWin != nil {
			return p.ReportedWin
		}
	}
	return nil
}

// OverrideResult sets the winner directly. winnerID is a player id in
// singles and either a team id or a member id in doubles.
func (s *MatchService) OverrideResult(ctx context.Context, actor bracket.Actor, id, winnerID uuid.UUID) (*bracket.Match, error) {
	if !actor.CanOverrideResult() {
		return nil, fmt.Errorf("%w: only an admin can override results", ErrForbidden)
	}

	var match *bracket.Match
	err := s.run(ctx, "MatchService.OverrideResult", func(ctx context.Context, tx *sqlx.Tx, outbox *notify.Outbox) error {
		t, m, players, err := s.lockMatch(ctx, tx, id)
		if err != nil {
			return err
		}
		match = m

		if m.Status.IsTerminal() {
			return fmt.Errorf("%w: match %s is %s", ErrInvalidState, m.BracketPosition, m.Status)
		}
		if !bracket.IsFull(players, t.Format.IsDoubles()) {
			return fmt.Errorf("%w: match %s is not full", ErrConflict, m.BracketPosition)
		}
		slot, ok := bracket.SlotOf(players, winnerID)
		if !ok {
			return fmt.Errorf("%w: %s is not in match %s", ErrConflict, winnerID, m.BracketPosition)
		}

		slog.InfoContext(ctx, "result overridden", "match", m.BracketPosition, "winner", winnerID, "actor", actor.String())
		return s.finish(ctx, tx, outbox, t, m, players, slot, metrics.ReasonOverride)
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (s *MatchService) finish(ctx context.Context, tx *sqlx.Tx, outbox *notify.Outbox, t *bracket.Tournament, m *bracket.Match, players []bracket.MatchPlayer, winnerSlot int, reason string) error {
	u, err := s.engine.newUnit(tx, outbox, t)
	if err != nil {
		return err
	}
	if err := s.engine.complete(ctx, u, m, players, winnerSlot, reason); err != nil {
		return err
	}
	return s.engine.settle(ctx, u, m)
}

// MarkOnMyWay records that the acting competitor is walking to the board.
func (s *MatchService) MarkOnMyWay(ctx context.Context, actor bracket.Actor, id uuid.UUID) (*MatchData, error) {
	return s.markPresence(ctx, "MatchService.MarkOnMyWay", actor, id, s.store.MarkOnMyWayTx)
}

// MarkArrived records that the acting competitor is at the board.
func (s *MatchService) MarkArrived(ctx context.Context, actor bracket.Actor, id uuid.UUID) (*MatchData, error) {
	return s.markPresence(ctx, "MatchService.MarkArrived", actor, id, s.store.MarkArrivedTx)
}

type presenceMarker func(ctx context.Context, tx *sqlx.Tx, matchPlayerID uuid.UUID, at time.Time) error

func (s *MatchService) markPresence(ctx context.Context, op string, actor bracket.Actor, id uuid.UUID, mark presenceMarker) (*MatchData, error) {
	playerID, ok := actor.PlayerID()
	if !ok {
		return nil, fmt.Errorf("%w: only competitors can mark presence", ErrForbidden)
	}

	var data *MatchData
	err := s.run(ctx, op, func(ctx context.Context, tx *sqlx.Tx, outbox *notify.Outbox) error {
		t, m, players, err := s.lockMatch(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.Status.IsTerminal() {
			return fmt.Errorf("%w: match %s is %s", ErrInvalidState, m.BracketPosition, m.Status)
		}
		mp, found := bracket.FindPlayer(players, playerID)
		if !found {
			return fmt.Errorf("%w: %s is not in match %s", ErrForbidden, actor, m.BracketPosition)
		}

		if err := mark(ctx, tx, mp.ID, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to mark presence: %w", err)
		}

		players, err = s.store.GetMatchPlayersTx(ctx, tx, m.ID)
		if err != nil {
			return fmt.Errorf("failed to get match players: %w", err)
		}
		outbox.MatchUpdated(ctx, notify.MatchEvent{TournamentID: t.ID, Match: *m, Players: players})
		data = &MatchData{Match: m, Players: players}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
