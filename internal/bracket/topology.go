package bracket

// Seat places an entrant (by index into the seed-ordered entrant list) into
// one slot of a seeded match.
type Seat struct {
	Position Position
	Slot     int
	Entrant  int
}

// Seats computes the seeded occupants of the bracket. Elimination formats
// pair entrants sequentially into the first round, so with an odd count the
// last first-round match has a single occupant. Round robin gets one match
// per unordered pair.
func (s Shape) Seats() []Seat {
	var seats []Seat
	switch s.Format {
	case SingleElimination, LuckyDrawDoubles, DoubleElimination:
		for i := 0; i < s.Entrants; i++ {
			pos := RoundPosition(1, i/2+1)
			if s.Format == DoubleElimination {
				pos = WinnersPosition(1, i/2+1)
			}
			seats = append(seats, Seat{Position: pos, Slot: i%2 + 1, Entrant: i})
		}
	case RoundRobin:
		for n, pair := range RoundRobinPairs(s.Entrants) {
			seats = append(seats,
				Seat{Position: RoundRobinPosition(n + 1), Slot: 1, Entrant: pair[0]},
				Seat{Position: RoundRobinPosition(n + 1), Slot: 2, Entrant: pair[1]},
			)
		}
	}
	return seats
}

// RoundRobinPairs pairs every entrant with every other one using the circle
// method, so consecutive matches rarely share a player.
func RoundRobinPairs(n int) [][2]int {
	if n < 2 {
		return nil
	}

	ring := make([]int, 0, n+1)
	for i := 0; i < n; i++ {
		ring = append(ring, i)
	}
	if n%2 == 1 {
		ring = append(ring, -1)
	}
	size := len(ring)

	pairs := make([][2]int, 0, n*(n-1)/2)
	for round := 0; round < size-1; round++ {
		for i := 0; i < size/2; i++ {
			a, b := ring[i], ring[size-1-i]
			if a < 0 || b < 0 {
				continue
			}
			if a > b {
				a, b = b, a
			}
			pairs = append(pairs, [2]int{a, b})
		}
		// Keep the first entrant fixed and rotate the rest clockwise
		last := ring[size-1]
		copy(ring[2:], ring[1:size-1])
		ring[1] = last
	}
	return pairs
}
