package store

import (
	"context"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BoardStore struct {
	db *sqlx.DB
}

const (
	createBoardQuery = `
		INSERT INTO dartboards (id, number, name, is_available, created_at)
		VALUES (:id, :number, :name, :is_available, :created_at)
	`
	getBoardQuery            = "SELECT * FROM dartboards WHERE id = ?"
	getBoardByNumberQuery    = "SELECT * FROM dartboards WHERE number = ?"
	listBoardsQuery          = "SELECT * FROM dartboards ORDER BY number ASC"
	getAvailableBoardsQuery  = "SELECT * FROM dartboards WHERE is_available = ? ORDER BY number ASC"
	setBoardAvailableQuery   = "UPDATE dartboards SET is_available = ? WHERE id = ?"
	countBoardHoldersQuery   = "SELECT COUNT(*) FROM matches WHERE dartboard_id = ? AND status NOT IN (?, ?)"
	deleteBoardQuery         = "DELETE FROM dartboards WHERE id = ?"
	clearBoardReferenceQuery = "UPDATE matches SET dartboard_id = NULL WHERE dartboard_id = ?"
)

func NewBoardStore(db *sqlx.DB) *BoardStore {
	return &BoardStore{db: db}
}

func (s *BoardStore) CreateBoard(ctx context.Context, tx *sqlx.Tx, board *bracket.Dartboard) error {
	_, err := tx.NamedExecContext(ctx, createBoardQuery, board)
	return err
}

func (s *BoardStore) GetBoard(ctx context.Context, id uuid.UUID) (*bracket.Dartboard, error) {
	var board bracket.Dartboard
	if err := s.db.GetContext(ctx, &board, s.db.Rebind(getBoardQuery), id); err != nil {
		return nil, err
	}
	return &board, nil
}

func (s *BoardStore) GetBoardTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Dartboard, error) {
	var board bracket.Dartboard
	if err := tx.GetContext(ctx, &board, tx.Rebind(getBoardQuery), id); err != nil {
		return nil, err
	}
	return &board, nil
}

func (s *BoardStore) GetBoardByNumberTx(ctx context.Context, tx *sqlx.Tx, number int) (*bracket.Dartboard, error) {
	var board bracket.Dartboard
	if err := tx.GetContext(ctx, &board, tx.Rebind(getBoardByNumberQuery), number); err != nil {
		return nil, err
	}
	return &board, nil
}

// LockBoardTx serializes concurrent assignment attempts for the same board.
func (s *BoardStore) LockBoardTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Dartboard, error) {
	var board bracket.Dartboard
	if err := tx.GetContext(ctx, &board, tx.Rebind(getBoardQuery+forUpdate(tx)), id); err != nil {
		return nil, err
	}
	return &board, nil
}

func (s *BoardStore) ListBoards(ctx context.Context) ([]bracket.Dartboard, error) {
	var boards []bracket.Dartboard
	err := s.db.SelectContext(ctx, &boards, listBoardsQuery)
	return boards, err
}

func (s *BoardStore) ListAvailableBoards(ctx context.Context) ([]bracket.Dartboard, error) {
	var boards []bracket.Dartboard
	err := s.db.SelectContext(ctx, &boards, s.db.Rebind(getAvailableBoardsQuery), true)
	return boards, err
}

// LockAvailableBoardsTx locks every free board, lowest number first.
func (s *BoardStore) LockAvailableBoardsTx(ctx context.Context, tx *sqlx.Tx) ([]bracket.Dartboard, error) {
	var boards []bracket.Dartboard
	err := tx.SelectContext(ctx, &boards, tx.Rebind(getAvailableBoardsQuery+forUpdate(tx)), true)
	return boards, err
}

func (s *BoardStore) SetAvailableTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, available bool) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(setBoardAvailableQuery), available, id)
	return err
}

// CountHoldersTx counts non-terminal matches that reference the board.
func (s *BoardStore) CountHoldersTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, tx.Rebind(countBoardHoldersQuery), id, bracket.MatchCompleted, bracket.MatchCancelled)
	return n, err
}

// DeleteBoardTx removes the board and detaches it from finished matches.
func (s *BoardStore) DeleteBoardTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(clearBoardReferenceQuery), id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(deleteBoardQuery), id)
	return err
}
