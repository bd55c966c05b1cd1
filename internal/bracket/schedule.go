package bracket

// Assignment pairs a ready match with a free dartboard.
type Assignment struct {
	Match Match
	Board Dartboard
}

// PairBoards hands out boards to ready matches in list order. Callers pass
// matches in play order and boards by ascending number, so the lowest free
// board goes to the earliest ready match.
func PairBoards(ready []Match, boards []Dartboard) []Assignment {
	n := min(len(ready), len(boards))
	assignments := make([]Assignment, 0, n)
	for i := 0; i < n; i++ {
		assignments = append(assignments, Assignment{Match: ready[i], Board: boards[i]})
	}
	return assignments
}
