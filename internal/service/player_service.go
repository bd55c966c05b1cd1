package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/google/uuid"
)

type PlayerService struct {
	*core
}

type PlayerInput struct {
	Name       string `json:"name"`
	SkillLevel int    `json:"skill_level"`
}

func (s *PlayerService) CreatePlayer(ctx context.Context, actor bracket.Actor, in PlayerInput) (*bracket.Player, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only an admin can add players", ErrForbidden)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: player name is required", ErrInvalidInput)
	}

	player := &bracket.Player{
		ID:         newID(),
		Name:       name,
		SkillLevel: in.SkillLevel,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.players.CreatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return player, nil
}

func (s *PlayerService) GetPlayer(ctx context.Context, id uuid.UUID) (*bracket.Player, error) {
	player, err := s.players.GetPlayer(ctx, id)
	if err != nil {
		return nil, notFound(err, "player")
	}
	return player, nil
}

func (s *PlayerService) ListPlayers(ctx context.Context) ([]bracket.Player, error) {
	return s.players.ListPlayers(ctx)
}
