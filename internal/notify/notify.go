// Package notify delivers match and board events to real-time clients.
// Delivery is fire-and-forget: sinks log their own failures and never
// report them back to the operation that produced the event.
package notify

import (
	"context"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/google/uuid"
)

const (
	EventMatchCompleted = "match:completed"
	EventMatchUpdated   = "match:updated"
	EventBoardAssigned  = "board:assigned"
)

type MatchEvent struct {
	TournamentID uuid.UUID             `json:"tournament_id"`
	Match        bracket.Match         `json:"match"`
	Players      []bracket.MatchPlayer `json:"players,omitempty"`
}

type BoardEvent struct {
	TournamentID uuid.UUID             `json:"tournament_id"`
	Match        bracket.Match         `json:"match"`
	Board        bracket.Dartboard     `json:"board"`
	Players      []bracket.MatchPlayer `json:"players,omitempty"`
}

type Notifier interface {
	MatchCompleted(ctx context.Context, e MatchEvent)
	MatchUpdated(ctx context.Context, e MatchEvent)
	BoardAssigned(ctx context.Context, e BoardEvent)
}

type Nop struct{}

func (Nop) MatchCompleted(context.Context, MatchEvent) {}
func (Nop) MatchUpdated(context.Context, MatchEvent)   {}
func (Nop) BoardAssigned(context.Context, BoardEvent)  {}

// Fanout sends every event to each of its notifiers in order.
type Fanout []Notifier

func (f Fanout) MatchCompleted(ctx context.Context, e MatchEvent) {
	for _, n := range f {
		n.MatchCompleted(ctx, e)
	}
}

func (f Fanout) MatchUpdated(ctx context.Context, e MatchEvent) {
	for _, n := range f {
		n.MatchUpdated(ctx, e)
	}
}

func (f Fanout) BoardAssigned(ctx context.Context, e BoardEvent) {
	for _, n := range f {
		n.BoardAssigned(ctx, e)
	}
}
