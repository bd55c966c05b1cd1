package bracket

import (
	"cmp"
	"slices"
)

// Round is one column of a rendered bracket.
type Round struct {
	Number  int     `json:"number"`
	Matches []Match `json:"matches"`
}

// Layout groups a tournament's matches into display columns per bracket
// side. Rounds are ascending and matches within a round follow their
// position in the graph, not creation order.
type Layout struct {
	Winners []Round `json:"winners"`
	Losers  []Round `json:"losers,omitempty"`
	Finals  []Round `json:"finals,omitempty"`
}

func BuildLayout(matches []Match) Layout {
	sides := map[BracketSide]map[int][]Match{
		WinnersSide: {},
		LosersSide:  {},
		FinalsSide:  {},
	}
	for _, m := range matches {
		rounds, ok := sides[m.BracketSide]
		if !ok {
			continue
		}
		rounds[m.RoundNumber] = append(rounds[m.RoundNumber], m)
	}

	return Layout{
		Winners: sortRounds(sides[WinnersSide]),
		Losers:  sortRounds(sides[LosersSide]),
		Finals:  sortRounds(sides[FinalsSide]),
	}
}

func sortRounds(rounds map[int][]Match) []Round {
	if len(rounds) == 0 {
		return nil
	}

	out := make([]Round, 0, len(rounds))
	for n, ms := range rounds {
		slices.SortFunc(ms, func(a, b Match) int {
			return cmp.Compare(displayOrder(a), displayOrder(b))
		})
		out = append(out, Round{Number: n, Matches: ms})
	}
	slices.SortFunc(out, func(a, b Round) int { return cmp.Compare(a.Number, b.Number) })
	return out
}

func displayOrder(m Match) int {
	p, err := m.Position()
	if err != nil {
		return m.MatchNumber
	}
	if p.Kind == KindGrandFinal {
		return p.Round
	}
	return p.Match
}
