package bracket

import (
	"sort"

	"github.com/google/uuid"
)

const pointsPerWin = 3

type Result struct {
	WinnerID uuid.UUID
	LoserID  uuid.UUID
}

type Standing struct {
	CompetitorID uuid.UUID `json:"competitor_id"`
	Played       int       `json:"played"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Points       int       `json:"points"`
}

// Standings ranks round robin competitors by points, then wins. Ties keep
// the order of the competitors slice, which is seed order.
func Standings(competitors []uuid.UUID, results []Result) []Standing {
	index := make(map[uuid.UUID]int, len(competitors))
	table := make([]Standing, len(competitors))
	for i, id := range competitors {
		index[id] = i
		table[i].CompetitorID = id
	}

	for _, r := range results {
		if i, ok := index[r.WinnerID]; ok {
			table[i].Played++
			table[i].Wins++
			table[i].Points += pointsPerWin
		}
		if i, ok := index[r.LoserID]; ok {
			table[i].Played++
			table[i].Losses++
		}
	}

	sort.SliceStable(table, func(i, j int) bool {
		if table[i].Points != table[j].Points {
			return table[i].Points > table[j].Points
		}
		return table[i].Wins > table[j].Wins
	})
	return table
}
