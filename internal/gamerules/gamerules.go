// Package gamerules builds the initial state of a leg for each supported
// darts game. Throw-by-throw scoring lives outside this module.
package gamerules

import (
	"encoding/json"
	"fmt"
)

type GameType string

const (
	ThreeOhOne       GameType = "301"
	FiveOhOne        GameType = "501"
	Cricket          GameType = "cricket"
	CricketCutthroat GameType = "cricket_cutthroat"
	RoundTheClock    GameType = "round_the_clock"
	Killer           GameType = "killer"
	Shanghai         GameType = "shanghai"
	Baseball         GameType = "baseball"
)

func (g GameType) Valid() bool {
	switch g {
	case ThreeOhOne, FiveOhOne, Cricket, CricketCutthroat, RoundTheClock, Killer, Shanghai, Baseball:
		return true
	}
	return false
}

// Engine creates the first game of a match when it starts.
type Engine interface {
	CreateGame(gameType string, startingScore int, doubleIn, doubleOut bool) (json.RawMessage, error)
}

type Rules struct{}

func New() Rules {
	return Rules{}
}

type x01State struct {
	StartingScore int            `json:"starting_score"`
	DoubleIn      bool           `json:"double_in"`
	DoubleOut     bool           `json:"double_out"`
	Players       map[string]any `json:"players"`
}

type cricketState struct {
	IsCutthroat bool           `json:"is_cutthroat"`
	Players     map[string]any `json:"players"`
}

type killerState struct {
	Players map[string]any `json:"players"`
	Phase   string         `json:"phase"`
}

type shanghaiState struct {
	CurrentRound int            `json:"current_round"`
	Players      map[string]any `json:"players"`
}

type baseballState struct {
	Inning  int            `json:"inning"`
	Players map[string]any `json:"players"`
}

type playersState struct {
	Players map[string]any `json:"players"`
}

// CreateGame returns the JSON state of a fresh leg. startingScore,
// doubleIn and doubleOut only apply to x01 games; a zero starting score
// means the game's own (301 or 501).
func (Rules) CreateGame(gameType string, startingScore int, doubleIn, doubleOut bool) (json.RawMessage, error) {
	var state any
	players := map[string]any{}

	switch GameType(gameType) {
	case ThreeOhOne, FiveOhOne:
		if startingScore <= 0 {
			startingScore = 501
			if GameType(gameType) == ThreeOhOne {
				startingScore = 301
			}
		}
		state = x01State{StartingScore: startingScore, DoubleIn: doubleIn, DoubleOut: doubleOut, Players: players}
	case Cricket:
		state = cricketState{Players: players}
	case CricketCutthroat:
		state = cricketState{IsCutthroat: true, Players: players}
	case RoundTheClock:
		state = playersState{Players: players}
	case Killer:
		state = killerState{Players: players, Phase: "selection"}
	case Shanghai:
		state = shanghaiState{CurrentRound: 1, Players: players}
	case Baseball:
		state = baseballState{Inning: 1, Players: players}
	default:
		return nil, fmt.Errorf("unknown game type %q", gameType)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s state: %w", gameType, err)
	}
	return data, nil
}
