package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/AdamBeresnev/darts-bracket/internal/metrics"
	"github.com/AdamBeresnev/darts-bracket/internal/notify"
	"github.com/AdamBeresnev/darts-bracket/internal/store"
	"github.com/AdamBeresnev/darts-bracket/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// advancement routes the outcome of completed matches through the bracket.
// Everything it does runs inside the caller's transaction.
type advancement struct {
	store   *store.TournamentStore
	sched   *scheduler
	life    *lifecycle
	metrics *metrics.Metrics
}

// unit is the state shared by one cascade. unrouted holds matches that are
// completed but whose outcome has not been placed downstream yet; they do
// not count as finished feeders.
type unit struct {
	tx         *sqlx.Tx
	outbox     *notify.Outbox
	tournament *bracket.Tournament
	shape      bracket.Shape
	unrouted   map[uuid.UUID]struct{}
}

func (e *advancement) newUnit(tx *sqlx.Tx, outbox *notify.Outbox, t *bracket.Tournament) (*unit, error) {
	shape, err := bracket.NewShape(t.Format, t.EntrantCount)
	if err != nil {
		return nil, fmt.Errorf("failed to build bracket shape: %w", err)
	}
	return &unit{tx: tx, outbox: outbox, tournament: t, shape: shape, unrouted: make(map[uuid.UUID]struct{})}, nil
}

// complete records the result of m. winnerSlot 0 means no winner, which
// only happens for a bye without occupants. The board is released here so
// that a completed match never holds one.
func (e *advancement) complete(ctx context.Context, u *unit, m *bracket.Match, players []bracket.MatchPlayer, winnerSlot int, reason string) error {
	if err := e.sched.release(ctx, u.tx, m); err != nil {
		return err
	}

	m.Status = bracket.MatchCompleted
	m.CompletedAt = utils.Ptr(time.Now().UTC())
	m.IsBye = reason == metrics.ReasonBye
	m.WinnerID = nil
	m.WinnerTeamID = nil
	if winnerSlot != 0 {
		side := bracket.Side(players, winnerSlot)
		if side.TeamID != nil {
			m.WinnerTeamID = side.TeamID
		} else if !side.IsEmpty() {
			m.WinnerID = utils.Ptr(side.PlayerIDs[0])
		}
	}

	if err := e.store.UpdateMatchTx(ctx, u.tx, m); err != nil {
		return fmt.Errorf("failed to complete match %s: %w", m.BracketPosition, err)
	}

	u.unrouted[m.ID] = struct{}{}
	u.outbox.MatchCompleted(ctx, notify.MatchEvent{TournamentID: m.TournamentID, Match: *m, Players: players})
	e.metrics.MatchCompleted(reason)
	return nil
}

// cascade routes the completed match start and every match that completes
// as a consequence. The queue holds completed matches whose outcome has not
// been placed yet; each match completes at most once, so the number of
// steps is bounded by the size of the bracket.
func (e *advancement) cascade(ctx context.Context, u *unit, start *bracket.Match) error {
	queue := []*bracket.Match{start}
	limit := len(u.shape.Positions())

	for steps := 0; len(queue) > 0; steps++ {
		if steps > limit {
			return fmt.Errorf("advancement from %s did not settle after %d steps", start.BracketPosition, limit)
		}

		m := queue[0]
		queue = queue[1:]
		delete(u.unrouted, m.ID)

		next, err := e.route(ctx, u, m)
		if err != nil {
			return err
		}
		queue = append(queue, next...)
	}
	return nil
}

// route places the winner and loser of m and returns the destinations that
// completed as byes.
func (e *advancement) route(ctx context.Context, u *unit, m *bracket.Match) ([]*bracket.Match, error) {
	pos, err := m.Position()
	if err != nil {
		return nil, err
	}

	players, err := e.store.GetMatchPlayersTx(ctx, u.tx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get players of %s: %w", pos, err)
	}

	var winner, loser bracket.Competitor
	winnerSlot := 0
	if m.HasWinner() {
		winnerID := utils.OrZero(m.WinnerID)
		if m.WinnerTeamID != nil {
			winnerID = *m.WinnerTeamID
		}
		winnerSlot, _ = bracket.SlotOf(players, winnerID)
	}
	if winnerSlot != 0 {
		winner = bracket.Side(players, winnerSlot)
		loser = bracket.Side(players, bracket.OtherSlot(winnerSlot))
	}

	switch {
	case pos.IsGrandFinal():
		return nil, e.routeGrandFinal(ctx, u, pos, winnerSlot, winner, loser)
	case pos.Kind == bracket.KindRoundRobin:
		return nil, e.completeIfRoundRobinDone(ctx, u)
	case u.shape.IsTerminal(pos):
		if winnerSlot != 0 {
			return nil, e.life.complete(ctx, u.tx, u.tournament)
		}
		return nil, nil
	}

	var completed []*bracket.Match
	destinations := []struct {
		next       func(bracket.Position) (bracket.SlotRef, bool)
		competitor bracket.Competitor
	}{
		{u.shape.NextWinner, winner},
		{u.shape.NextLoser, loser},
	}
	for _, d := range destinations {
		ref, ok := d.next(pos)
		if !ok {
			continue
		}

		dest, err := e.lockDestination(ctx, u, ref.Position)
		if err != nil {
			return nil, err
		}
		if _, err := e.place(ctx, u, dest, ref.Slot, d.competitor); err != nil {
			return nil, err
		}

		bye, err := e.resolveBye(ctx, u, dest)
		if err != nil {
			return nil, err
		}
		if bye {
			completed = append(completed, dest)
		}
	}
	return completed, nil
}

func (e *advancement) lockDestination(ctx context.Context, u *unit, pos bracket.Position) (*bracket.Match, error) {
	dest, err := e.store.LockMatchByPositionTx(ctx, u.tx, u.tournament.ID, pos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("destination match %s is missing", pos)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock match %s: %w", pos, err)
	}
	return dest, nil
}

// place puts a competitor into one slot of dest. Placing someone who is
// already there is a no-op; the return value reports whether rows were added.
func (e *advancement) place(ctx context.Context, u *unit, dest *bracket.Match, slot int, c bracket.Competitor) (bool, error) {
	if c.IsEmpty() {
		return false, nil
	}

	players, err := e.store.GetMatchPlayersTx(ctx, u.tx, dest.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get players of %s: %w", dest.BracketPosition, err)
	}

	var missing []int
	for i, id := range c.PlayerIDs {
		if _, ok := bracket.FindPlayer(players, id); !ok {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	if dest.Status.IsTerminal() {
		return false, fmt.Errorf("%w: match %s is already %s", ErrInvalidState, dest.BracketPosition, dest.Status)
	}
	for _, p := range players {
		if p.Slot == slot && !slices.Contains(c.PlayerIDs, p.PlayerID) {
			return false, fmt.Errorf("%w: slot %d of %s is taken", ErrConflict, slot, dest.BracketPosition)
		}
	}

	now := time.Now().UTC()
	for _, i := range missing {
		mp := &bracket.MatchPlayer{
			ID:        newID(),
			MatchID:   dest.ID,
			PlayerID:  c.PlayerIDs[i],
			TeamID:    c.TeamID,
			Slot:      slot,
			CreatedAt: now,
		}
		if c.TeamID != nil {
			mp.TeamPosition = utils.Ptr(i + 1)
		}
		if err := e.store.AddMatchPlayerTx(ctx, u.tx, mp); err != nil {
			return false, fmt.Errorf("failed to place player in %s: %w", dest.BracketPosition, err)
		}
		players = append(players, *mp)
	}

	u.outbox.MatchUpdated(ctx, notify.MatchEvent{TournamentID: dest.TournamentID, Match: *dest, Players: players})
	return true, nil
}

// resolveBye completes dest without play when all of its feeders are done
// and routed, and it holds at most one side. Seeded rounds and grand finals never
// qualify; their byes are handled at generation time.
func (e *advancement) resolveBye(ctx context.Context, u *unit, dest *bracket.Match) (bool, error) {
	if dest.Status != bracket.MatchPending && dest.Status != bracket.MatchWaitingForPlayers {
		return false, nil
	}

	pos, err := dest.Position()
	if err != nil {
		return false, err
	}
	if pos.IsGrandFinal() || pos.IsSeeded() {
		return false, nil
	}

	feeders := u.shape.Feeders(pos)
	feederMatches, err := e.store.GetMatchesByPositionsTx(ctx, u.tx, u.tournament.ID, feeders)
	if err != nil {
		return false, fmt.Errorf("failed to get feeders of %s: %w", pos, err)
	}
	if len(feederMatches) != len(feeders) {
		return false, fmt.Errorf("feeders of %s are missing", pos)
	}
	for _, f := range feederMatches {
		if f.Status != bracket.MatchCompleted {
			return false, nil
		}
		if _, waiting := u.unrouted[f.ID]; waiting {
			return false, nil
		}
	}

	players, err := e.store.GetMatchPlayersTx(ctx, u.tx, dest.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get players of %s: %w", pos, err)
	}
	slots := bracket.OccupiedSlots(players)
	if len(slots) > 1 {
		return false, nil
	}

	winnerSlot := 0
	if len(slots) == 1 {
		winnerSlot = slots[0]
	}
	slog.Debug("match resolved as bye", "tournament_id", u.tournament.ID, "position", pos.String(), "occupied", len(slots))
	return true, e.complete(ctx, u, dest, players, winnerSlot, metrics.ReasonBye)
}

// routeGrandFinal handles the reset rule. A win by the winners bracket side
// in GF1 ends the tournament and cancels GF2; a win by the losers bracket
// side sends both finalists to GF2.
func (e *advancement) routeGrandFinal(ctx context.Context, u *unit, pos bracket.Position, winnerSlot int, winner, loser bracket.Competitor) error {
	if winnerSlot == 0 {
		return nil
	}
	if pos.Round == 2 || winnerSlot == 1 {
		if pos.Round == 1 {
			if err := e.cancelReset(ctx, u); err != nil {
				return err
			}
		}
		return e.life.complete(ctx, u.tx, u.tournament)
	}

	reset, err := e.lockDestination(ctx, u, bracket.GrandFinalPosition(2))
	if err != nil {
		return err
	}
	if _, err := e.place(ctx, u, reset, 2, winner); err != nil {
		return err
	}
	_, err = e.place(ctx, u, reset, 1, loser)
	return err
}

func (e *advancement) cancelReset(ctx context.Context, u *unit) error {
	reset, err := e.lockDestination(ctx, u, bracket.GrandFinalPosition(2))
	if err != nil {
		return err
	}
	if reset.Status.IsTerminal() {
		return nil
	}

	if err := e.sched.release(ctx, u.tx, reset); err != nil {
		return err
	}
	reset.Status = bracket.MatchCancelled
	if err := e.store.UpdateMatchTx(ctx, u.tx, reset); err != nil {
		return fmt.Errorf("failed to cancel %s: %w", reset.BracketPosition, err)
	}
	u.outbox.MatchUpdated(ctx, notify.MatchEvent{TournamentID: reset.TournamentID, Match: *reset})
	return nil
}

func (e *advancement) completeIfRoundRobinDone(ctx context.Context, u *unit) error {
	open, err := e.store.CountOpenMatchesTx(ctx, u.tx, u.tournament.ID)
	if err != nil {
		return fmt.Errorf("failed to count open matches: %w", err)
	}
	if open > 0 {
		return nil
	}
	return e.life.complete(ctx, u.tx, u.tournament)
}

// settle cascades every completed match and then hands free boards to the
// matches that became ready.
func (e *advancement) settle(ctx context.Context, u *unit, completed ...*bracket.Match) error {
	for _, m := range completed {
		if err := e.cascade(ctx, u, m); err != nil {
			return err
		}
	}
	if u.tournament.Status != bracket.TournamentInProgress {
		return nil
	}
	_, err := e.sched.autoAssign(ctx, u.tx, u.outbox, u.tournament)
	return err
}
