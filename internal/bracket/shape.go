package bracket

import "fmt"

// SlotRef points at one side of a downstream match.
type SlotRef struct {
	Position Position
	Slot     int
}

// Shape is the complete topology of a bracket for a format and entrant
// count. All routing is computed from it, nothing is stored per match.
type Shape struct {
	Format   TournamentFormat
	Entrants int

	// Single elimination and lucky draw doubles
	rounds []int

	// Double elimination
	winnersRounds int
	bracketSize   int
}

// RoundSizes returns the number of matches per round, halving with
// rounding up so that non-power-of-two fields get as few byes as possible.
// 11 entrants give [6 3 2 1].
func RoundSizes(n int) []int {
	var sizes []int
	remaining := n
	for remaining > 1 {
		slots := (remaining + 1) / 2
		sizes = append(sizes, slots)
		remaining = slots
	}
	return sizes
}

func NewShape(format TournamentFormat, entrants int) (Shape, error) {
	if !format.Valid() {
		return Shape{}, fmt.Errorf("unknown tournament format %q", format)
	}
	if entrants < 2 {
		return Shape{}, fmt.Errorf("at least 2 entrants are required, got %d", entrants)
	}

	s := Shape{Format: format, Entrants: entrants}
	switch format {
	case SingleElimination, LuckyDrawDoubles:
		s.rounds = RoundSizes(entrants)
	case DoubleElimination:
		for 1<<s.winnersRounds < entrants {
			s.winnersRounds++
		}
		s.bracketSize = 1 << s.winnersRounds
	}
	return s, nil
}

func (s Shape) WinnersRounds() int {
	return s.winnersRounds
}

func (s Shape) LosersRounds() int {
	if s.winnersRounds < 1 {
		return 0
	}
	return 2 * (s.winnersRounds - 1)
}

func (s Shape) winnersSize(round int) int {
	return s.bracketSize >> round
}

// Losers rounds come in pairs of equal size: LR1 and LR2 have a quarter of
// the bracket, LR3 and LR4 an eighth, and so on.
func (s Shape) losersSize(round int) int {
	return s.bracketSize >> ((round+1)/2 + 1)
}

// Positions lists every match of the bracket in creation order.
func (s Shape) Positions() []Position {
	var positions []Position
	switch s.Format {
	case SingleElimination, LuckyDrawDoubles:
		for r, size := range s.rounds {
			for m := 1; m <= size; m++ {
				positions = append(positions, RoundPosition(r+1, m))
			}
		}
	case DoubleElimination:
		for r := 1; r <= s.winnersRounds; r++ {
			for m := 1; m <= s.winnersSize(r); m++ {
				positions = append(positions, WinnersPosition(r, m))
			}
		}
		for r := 1; r <= s.LosersRounds(); r++ {
			for m := 1; m <= s.losersSize(r); m++ {
				positions = append(positions, LosersPosition(r, m))
			}
		}
		positions = append(positions, GrandFinalPosition(1), GrandFinalPosition(2))
	case RoundRobin:
		for n := 1; n <= s.Entrants*(s.Entrants-1)/2; n++ {
			positions = append(positions, RoundRobinPosition(n))
		}
	}
	return positions
}

func (s Shape) Contains(p Position) bool {
	switch s.Format {
	case SingleElimination, LuckyDrawDoubles:
		return p.Kind == KindRound && p.Round >= 1 && p.Round <= len(s.rounds) &&
			p.Match >= 1 && p.Match <= s.rounds[p.Round-1]
	case DoubleElimination:
		switch p.Kind {
		case KindWinners:
			return p.Round >= 1 && p.Round <= s.winnersRounds && p.Match >= 1 && p.Match <= s.winnersSize(p.Round)
		case KindLosers:
			return p.Round >= 1 && p.Round <= s.LosersRounds() && p.Match >= 1 && p.Match <= s.losersSize(p.Round)
		case KindGrandFinal:
			return p.Round == 1 || p.Round == 2
		}
	case RoundRobin:
		return p.Kind == KindRoundRobin && p.Match >= 1 && p.Match <= s.Entrants*(s.Entrants-1)/2
	}
	return false
}

// RoundNumber is the value stored in matches.round_number. Grand finals
// are numbered after the last winners round.
func (s Shape) RoundNumber(p Position) int {
	switch p.Kind {
	case KindGrandFinal:
		return s.winnersRounds + p.Round
	case KindRoundRobin:
		return 1
	}
	return p.Round
}

func (s Shape) Side(p Position) BracketSide {
	switch p.Kind {
	case KindLosers:
		return LosersSide
	case KindGrandFinal:
		return FinalsSide
	}
	return WinnersSide
}

// IsTerminal reports whether a winner at p ends the tournament. GF1 only
// ends it when the winners bracket side wins, which the caller decides.
func (s Shape) IsTerminal(p Position) bool {
	switch s.Format {
	case SingleElimination, LuckyDrawDoubles:
		return p.Kind == KindRound && p.Round == len(s.rounds) && p.Match == 1
	case DoubleElimination:
		return p.Kind == KindGrandFinal
	}
	return false
}

func parity(m int) int {
	if m%2 == 1 {
		return 1
	}
	return 2
}

// NextWinner returns where the winner of p goes. Grand finals and round
// robin matches have no winner destination.
func (s Shape) NextWinner(p Position) (SlotRef, bool) {
	switch p.Kind {
	case KindRound:
		if p.Round >= len(s.rounds) {
			return SlotRef{}, false
		}
		return SlotRef{Position: RoundPosition(p.Round+1, (p.Match+1)/2), Slot: parity(p.Match)}, true
	case KindWinners:
		if p.Round >= s.winnersRounds {
			return SlotRef{Position: GrandFinalPosition(1), Slot: 1}, true
		}
		return SlotRef{Position: WinnersPosition(p.Round+1, (p.Match+1)/2), Slot: parity(p.Match)}, true
	case KindLosers:
		switch {
		case p.Round >= s.LosersRounds():
			return SlotRef{Position: GrandFinalPosition(1), Slot: 2}, true
		case p.Round%2 == 1:
			return SlotRef{Position: LosersPosition(p.Round+1, p.Match), Slot: 1}, true
		default:
			return SlotRef{Position: LosersPosition(p.Round+1, (p.Match+1)/2), Slot: parity(p.Match)}, true
		}
	}
	return SlotRef{}, false
}

// NextLoser returns where the loser of p goes. Only the winners bracket
// sends losers anywhere.
func (s Shape) NextLoser(p Position) (SlotRef, bool) {
	if p.Kind != KindWinners {
		return SlotRef{}, false
	}
	switch {
	case s.winnersRounds == 1:
		return SlotRef{Position: GrandFinalPosition(1), Slot: 2}, true
	case p.Round == 1:
		return SlotRef{Position: LosersPosition(1, (p.Match+1)/2), Slot: parity(p.Match)}, true
	default:
		return SlotRef{Position: LosersPosition(2*(p.Round-1), p.Match), Slot: 2}, true
	}
}

// Feeders returns the matches whose outcome populates p, in slot order.
// Feeders that do not exist in a short bracket are left out.
func (s Shape) Feeders(p Position) []Position {
	if p.IsSeeded() {
		return nil
	}

	var candidates []Position
	switch p.Kind {
	case KindRound:
		candidates = []Position{RoundPosition(p.Round-1, 2*p.Match-1), RoundPosition(p.Round-1, 2*p.Match)}
	case KindWinners:
		candidates = []Position{WinnersPosition(p.Round-1, 2*p.Match-1), WinnersPosition(p.Round-1, 2*p.Match)}
	case KindLosers:
		switch {
		case p.Round == 1:
			candidates = []Position{WinnersPosition(1, 2*p.Match-1), WinnersPosition(1, 2*p.Match)}
		case p.Round%2 == 0:
			candidates = []Position{LosersPosition(p.Round-1, p.Match), WinnersPosition(p.Round/2+1, p.Match)}
		default:
			candidates = []Position{LosersPosition(p.Round-1, 2*p.Match-1), LosersPosition(p.Round-1, 2*p.Match)}
		}
	case KindGrandFinal:
		if p.Round == 2 {
			candidates = []Position{GrandFinalPosition(1)}
		} else if s.LosersRounds() == 0 {
			candidates = []Position{WinnersPosition(1, 1)}
		} else {
			candidates = []Position{WinnersPosition(s.winnersRounds, 1), LosersPosition(s.LosersRounds(), 1)}
		}
	}

	var feeders []Position
	for _, c := range candidates {
		if s.Contains(c) {
			feeders = append(feeders, c)
		}
	}
	return feeders
}
