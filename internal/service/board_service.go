package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/AdamBeresnev/darts-bracket/internal/metrics"
	"github.com/AdamBeresnev/darts-bracket/internal/notify"
	"github.com/AdamBeresnev/darts-bracket/internal/store"
	"github.com/AdamBeresnev/darts-bracket/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// scheduler couples match status with board availability. A board is
// unavailable exactly while a non-terminal match holds it.
type scheduler struct {
	store   *store.TournamentStore
	boards  *store.BoardStore
	metrics *metrics.Metrics
}

// assign gives board to m. The board must already be locked and available.
func (s *scheduler) assign(ctx context.Context, tx *sqlx.Tx, outbox *notify.Outbox, m *bracket.Match, board *bracket.Dartboard, mode string) error {
	if err := s.release(ctx, tx, m); err != nil {
		return err
	}

	if err := s.boards.SetAvailableTx(ctx, tx, board.ID, false); err != nil {
		return fmt.Errorf("failed to take board %d: %w", board.Number, err)
	}
	board.IsAvailable = false

	m.DartboardID = &board.ID
	if m.Status == bracket.MatchPending {
		m.Status = bracket.MatchWaitingForPlayers
	}
	if err := s.store.UpdateMatchTx(ctx, tx, m); err != nil {
		return fmt.Errorf("failed to assign board to %s: %w", m.BracketPosition, err)
	}

	players, err := s.store.GetMatchPlayersTx(ctx, tx, m.ID)
	if err != nil {
		return fmt.Errorf("failed to get players of %s: %w", m.BracketPosition, err)
	}

	outbox.BoardAssigned(ctx, notify.BoardEvent{TournamentID: m.TournamentID, Match: *m, Board: *board, Players: players})
	s.metrics.BoardAssigned(mode)
	slog.DebugContext(ctx, "board assigned", "match", m.BracketPosition, "board", board.Number, "mode", mode)
	return nil
}

// release frees the board held by m, if any. The caller persists m.
func (s *scheduler) release(ctx context.Context, tx *sqlx.Tx, m *bracket.Match) error {
	if m.DartboardID == nil {
		return nil
	}

	if err := s.boards.SetAvailableTx(ctx, tx, *m.DartboardID, true); err != nil {
		return fmt.Errorf("failed to release board: %w", err)
	}
	m.DartboardID = nil
	if m.Status == bracket.MatchWaitingForPlayers {
		m.Status = bracket.MatchPending
	}
	return nil
}

// autoAssign pairs the ready matches of t with free boards, both in order.
func (s *scheduler) autoAssign(ctx context.Context, tx *sqlx.Tx, outbox *notify.Outbox, t *bracket.Tournament) (int, error) {
	occupants := 2
	if t.Format.IsDoubles() {
		occupants = 4
	}

	ready, err := s.store.GetReadyMatchesTx(ctx, tx, t.ID, occupants)
	if err != nil {
		return 0, fmt.Errorf("failed to get ready matches: %w", err)
	}
	if len(ready) == 0 {
		return 0, nil
	}

	boards, err := s.boards.LockAvailableBoardsTx(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("failed to get available boards: %w", err)
	}

	pairs := bracket.PairBoards(ready, boards)
	for _, a := range pairs {
		if err := s.assign(ctx, tx, outbox, &a.Match, &a.Board, metrics.ModeAuto); err != nil {
			return 0, err
		}
	}
	return len(pairs), nil
}

type BoardService struct {
	*core
}

// Assign puts board boardID on match matchID on behalf of an admin. Moving
// a match to a different board frees the old one.
func (s *BoardService) Assign(ctx context.Context, actor bracket.Actor, matchID, boardID uuid.UUID) (*bracket.Match, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only an admin can assign boards", ErrForbidden)
	}

	var match *bracket.Match
	err := s.run(ctx, "BoardService.Assign", func(ctx context.Context, tx *sqlx.Tx, outbox *notify.Outbox) error {
		m, err := s.store.LockMatchTx(ctx, tx, matchID)
		if err != nil {
			return notFound(err, "match")
		}
		if m.Status.IsTerminal() {
			return fmt.Errorf("%w: match %s is %s", ErrInvalidState, m.BracketPosition, m.Status)
		}
		if m.DartboardID != nil && *m.DartboardID == boardID {
			match = m
			return nil
		}

		if _, err := s.boards.GetBoardTx(ctx, tx, boardID); err != nil {
			return notFound(err, "board")
		}
		board, err := s.boards.LockBoardTx(ctx, tx, boardID)
		if err != nil {
			return notFound(err, "board")
		}
		if !board.IsAvailable {
			s.metrics.BoardConflict()
			return fmt.Errorf("%w: board %d is in use", ErrConflict, board.Number)
		}

		if err := s.sched.assign(ctx, tx, outbox, m, board, metrics.ModeManual); err != nil {
			return err
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// Release frees the board of a match. A match without a board is unchanged.
func (s *BoardService) Release(ctx context.Context, actor bracket.Actor, matchID uuid.UUID) (*bracket.Match, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only an admin can release boards", ErrForbidden)
	}

	var match *bracket.Match
	err := s.run(ctx, "BoardService.Release", func(ctx context.Context, tx *sqlx.Tx, outbox *notify.Outbox) error {
		m, err := s.store.LockMatchTx(ctx, tx, matchID)
		if err != nil {
			return notFound(err, "match")
		}
		match = m
		if m.DartboardID == nil {
			return nil
		}

		if err := s.sched.release(ctx, tx, m); err != nil {
			return err
		}
		if err := s.store.UpdateMatchTx(ctx, tx, m); err != nil {
			return fmt.Errorf("failed to release board of %s: %w", m.BracketPosition, err)
		}
		outbox.MatchUpdated(ctx, notify.MatchEvent{TournamentID: m.TournamentID, Match: *m})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

type BoardInput struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

func (s *BoardService) CreateBoard(ctx context.Context, actor bracket.Actor, in BoardInput) (*bracket.Dartboard, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only an admin can add boards", ErrForbidden)
	}
	if in.Number < 1 {
		return nil, fmt.Errorf("%w: board number must be positive", ErrInvalidInput)
	}

	board := &bracket.Dartboard{
		ID:          newID(),
		Number:      in.Number,
		Name:        utils.TrimmedOr(in.Name, fmt.Sprintf("Board %d", in.Number)),
		IsAvailable: true,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.run(ctx, "BoardService.CreateBoard", func(ctx context.Context, tx *sqlx.Tx, _ *notify.Outbox) error {
		_, err := s.boards.GetBoardByNumberTx(ctx, tx, in.Number)
		if err == nil {
			return fmt.Errorf("%w: board %d already exists", ErrConflict, in.Number)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check board number: %w", err)
		}
		if err := s.boards.CreateBoard(ctx, tx, board); err != nil {
			return fmt.Errorf("failed to create board: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// DeleteBoard removes a board that no open match holds.
func (s *BoardService) DeleteBoard(ctx context.Context, actor bracket.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: only an admin can remove boards", ErrForbidden)
	}

	return s.run(ctx, "BoardService.DeleteBoard", func(ctx context.Context, tx *sqlx.Tx, _ *notify.Outbox) error {
		board, err := s.boards.LockBoardTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "board")
		}
		holders, err := s.boards.CountHoldersTx(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("failed to count matches on board: %w", err)
		}
		if holders > 0 {
			return fmt.Errorf("%w: board %d is assigned to a match", ErrConflict, board.Number)
		}
		if err := s.boards.DeleteBoardTx(ctx, tx, id); err != nil {
			return fmt.Errorf("failed to delete board: %w", err)
		}
		return nil
	})
}

func (s *BoardService) ListBoards(ctx context.Context, availableOnly bool) ([]bracket.Dartboard, error) {
	if availableOnly {
		return s.boards.ListAvailableBoards(ctx)
	}
	return s.boards.ListBoards(ctx)
}
