package service

import (
	"fmt"
	"testing"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBracket_ElevenEntrants(t *testing.T) {
	f := newFixture(t)
	data, players := f.generate(bracket.SingleElimination, 11)

	perRound := map[int]int{}
	for _, m := range data.Matches {
		perRound[m.RoundNumber]++
	}
	assert.Equal(t, map[int]int{1: 6, 2: 3, 3: 2, 4: 1}, perRound)
	assert.Equal(t, bracket.TournamentInProgress, data.Tournament.Status)
	assert.Equal(t, 11, data.Tournament.EntrantCount)

	bye := f.match(data.Tournament.ID, "R1M6")
	require.Len(t, bye.Players, 1)
	assert.Equal(t, players[10].ID, bye.Players[0].PlayerID)
	assert.Equal(t, bracket.MatchCompleted, bye.Match.Status)
	assert.True(t, bye.Match.IsBye)
	require.NotNil(t, bye.Match.WinnerID)
	assert.Equal(t, players[10].ID, *bye.Match.WinnerID)

	next := f.match(data.Tournament.ID, "R2M3")
	require.Len(t, next.Players, 1)
	assert.Equal(t, 2, next.Players[0].Slot)
	assert.Equal(t, players[10].ID, next.Players[0].PlayerID)
	assert.Equal(t, bracket.MatchPending, next.Match.Status)

	assert.Equal(t, 1, f.events.count("match:completed"))
}

func TestGenerateBracket_SeedsSequentially(t *testing.T) {
	f := newFixture(t)
	data, players := f.generate(bracket.SingleElimination, 4)

	first := f.match(data.Tournament.ID, "R1M1")
	assert.Equal(t, players[0].ID, occupant(first, 1))
	assert.Equal(t, players[1].ID, occupant(first, 2))

	second := f.match(data.Tournament.ID, "R1M2")
	assert.Equal(t, players[2].ID, occupant(second, 1))
	assert.Equal(t, players[3].ID, occupant(second, 2))

	numbers := map[int]bool{}
	for _, m := range data.Matches {
		assert.False(t, numbers[m.MatchNumber], "match number %d reused", m.MatchNumber)
		numbers[m.MatchNumber] = true
	}
}

func TestSingleElimination_PlaysToOneChampion(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8, 11, 16} {
		t.Run(fmt.Sprintf("%d entrants", n), func(t *testing.T) {
			f := newFixture(t)
			data, _ := f.generate(bracket.SingleElimination, n)
			f.playOut(data.Tournament.ID, false, slotOne)

			assert.Equal(t, bracket.TournamentCompleted, f.tournamentStatus(data.Tournament.ID))

			matches, err := f.svc.Matches.store.GetMatches(f.ctx, data.Tournament.ID)
			require.NoError(t, err)

			played := 0
			for _, m := range matches {
				assert.Equal(t, bracket.MatchCompleted, m.Status, m.BracketPosition)
				assert.Nil(t, m.DartboardID)
				if !m.IsBye {
					played++
					assert.NotNil(t, m.WinnerID, m.BracketPosition)
				}
			}
			assert.Equal(t, n-1, played)

			final := f.match(data.Tournament.ID, bracket.RoundPosition(len(bracket.RoundSizes(n)), 1).String())
			assert.NotNil(t, final.Match.WinnerID)
		})
	}
}

func TestGenerateBracket_Errors(t *testing.T) {
	f := newFixture(t)

	lonely, players := f.tournament(bracket.SingleElimination, 1)
	_, err := f.svc.Brackets.GenerateBracket(f.ctx, admin, lonely.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Brackets.GenerateBracket(f.ctx, bracket.CompetitorActor(players[0].ID), lonely.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Brackets.GenerateBracket(f.ctx, admin, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	data, _ := f.generate(bracket.SingleElimination, 4)
	_, err = f.svc.Brackets.GenerateBracket(f.ctx, admin, data.Tournament.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	odd, _ := f.tournament(bracket.LuckyDrawDoubles, 5)
	_, err = f.svc.Brackets.GenerateBracket(f.ctx, admin, odd.ID)
	assert.ErrorIs(t, err, ErrConflict)

	matches, err := f.svc.Matches.store.GetMatches(f.ctx, odd.ID)
	require.NoError(t, err)
	assert.Empty(t, matches, "a rejected generation must not leave matches behind")
}

func TestGenerateBracket_RoundRobin(t *testing.T) {
	f := newFixture(t)
	data, players := f.generate(bracket.RoundRobin, 4)
	require.Len(t, data.Matches, 6)

	for _, m := range data.Matches {
		assert.Equal(t, 1, m.RoundNumber)
		assert.Equal(t, bracket.MatchPending, m.Status)
	}

	f.playOut(data.Tournament.ID, false, slotOne)
	assert.Equal(t, bracket.TournamentCompleted, f.tournamentStatus(data.Tournament.ID))

	view, err := f.svc.Tournaments.GetTournamentView(f.ctx, data.Tournament.ID)
	require.NoError(t, err)
	require.Len(t, view.Standings, len(players))

	wins, points := 0, 0
	for i, s := range view.Standings {
		assert.Equal(t, 3, s.Played)
		wins += s.Wins
		points += s.Points
		if i > 0 {
			assert.GreaterOrEqual(t, view.Standings[i-1].Points, s.Points)
		}
	}
	assert.Equal(t, 6, wins)
	assert.Equal(t, 18, points)
}

func TestGenerateBracket_LuckyDrawDoubles(t *testing.T) {
	f := newFixture(t)
	tournament, _ := f.tournament(bracket.LuckyDrawDoubles, 8)

	teams, err := f.svc.Entries.DrawTeams(f.ctx, admin, tournament.ID)
	require.NoError(t, err)
	require.Len(t, teams, 4)

	_, err = f.svc.Entries.DrawTeams(f.ctx, admin, tournament.ID)
	assert.ErrorIs(t, err, ErrConflict)

	data, err := f.svc.Brackets.GenerateBracket(f.ctx, admin, tournament.ID)
	require.NoError(t, err)
	require.Len(t, data.Matches, 3)
	assert.Equal(t, 4, data.Tournament.EntrantCount)

	first := f.match(tournament.ID, "R1M1")
	require.Len(t, first.Players, 4)
	assert.Equal(t, teams[0].ID, occupant(first, 1))
	assert.Equal(t, teams[1].ID, occupant(first, 2))

	// Teammates share one report
	a := bracket.Side(first.Players, 1)
	b := bracket.Side(first.Players, 2)
	_, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(a.PlayerIDs[0]), first.Match.ID, true)
	require.NoError(t, err)
	_, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(a.PlayerIDs[1]), first.Match.ID, true)
	assert.ErrorIs(t, err, ErrConflict)

	m, err := f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(b.PlayerIDs[1]), first.Match.ID, false)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, m.Status)
	require.NotNil(t, m.WinnerTeamID)
	assert.Equal(t, teams[0].ID, *m.WinnerTeamID)
	assert.Nil(t, m.WinnerID)

	final := f.match(tournament.ID, "R2M1")
	side := bracket.Side(final.Players, 1)
	assert.ElementsMatch(t, teams[0].Members(), side.PlayerIDs)
	for _, p := range final.Players {
		require.NotNil(t, p.TeamPosition)
	}

	f.playOut(tournament.ID, true, slotOne)
	assert.Equal(t, bracket.TournamentCompleted, f.tournamentStatus(tournament.ID))
}

func TestGenerateBracket_DrawsTeamsWhenMissing(t *testing.T) {
	f := newFixture(t)
	data, _ := f.generate(bracket.LuckyDrawDoubles, 6)

	teams, err := f.svc.Matches.store.GetTeams(f.ctx, data.Tournament.ID)
	require.NoError(t, err)
	assert.Len(t, teams, 3)

	// Three teams leave the second first-round match as a bye
	bye := f.match(data.Tournament.ID, "R1M2")
	assert.True(t, bye.Match.IsBye)
	require.NotNil(t, bye.Match.WinnerTeamID)
	assert.Equal(t, teams[2].ID, *bye.Match.WinnerTeamID)
}
