package store

import (
	"context"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PlayerStore struct {
	db *sqlx.DB
}

const (
	getPlayerQuery    = "SELECT * FROM players WHERE id = ?"
	listPlayersQuery  = "SELECT * FROM players ORDER BY name ASC"
	createPlayerQuery = `
		INSERT INTO players (id, name, skill_level, created_at) VALUES
		(:id, :name, :skill_level, :created_at)
	`
)

func NewPlayerStore(db *sqlx.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) GetPlayer(ctx context.Context, id uuid.UUID) (*bracket.Player, error) {
	var player bracket.Player
	if err := s.db.GetContext(ctx, &player, s.db.Rebind(getPlayerQuery), id); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *PlayerStore) GetPlayerTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Player, error) {
	var player bracket.Player
	if err := tx.GetContext(ctx, &player, tx.Rebind(getPlayerQuery), id); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *PlayerStore) ListPlayers(ctx context.Context) ([]bracket.Player, error) {
	var players []bracket.Player
	err := s.db.SelectContext(ctx, &players, listPlayersQuery)
	return players, err
}

func (s *PlayerStore) CreatePlayer(ctx context.Context, player *bracket.Player) error {
	_, err := s.db.NamedExecContext(ctx, createPlayerQuery, player)
	return err
}
