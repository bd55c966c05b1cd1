package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/AdamBeresnev/darts-bracket/internal/notify"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportResult_Agreement(t *testing.T) {
	f := newFixture(t)
	data, players := f.generate(bracket.SingleElimination, 2)
	match := f.match(data.Tournament.ID, "R1M1")

	m, err := f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[0].ID), match.Match.ID, true)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchPending, m.Status)
	assert.Nil(t, m.WinnerID)

	m, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[1].ID), match.Match.ID, false)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, m.Status)
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, players[0].ID, *m.WinnerID)
	assert.NotNil(t, m.CompletedAt)

	assert.Equal(t, bracket.TournamentCompleted, f.tournamentStatus(data.Tournament.ID))
	assert.Equal(t, 1, f.events.count(notify.EventMatchCompleted))
}

func TestReportResult_LoserClaimsFirst(t *testing.T) {
	f := newFixture(t)
	data, players := f.generate(bracket.SingleElimination, 2)
	match := f.match(data.Tournament.ID, "R1M1")

	_, err := f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[0].ID), match.Match.ID, false)
	require.NoError(t, err)
	m, err := f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[1].ID), match.Match.ID, true)
	require.NoError(t, err)

	require.NotNil(t, m.WinnerID)
	assert.Equal(t, players[1].ID, *m.WinnerID)
}

func TestReportResult_Dispute(t *testing.T) {
	for _, claim := range []bool{true, false} {
		f := newFixture(t)
		data, players := f.generate(bracket.SingleElimination, 2)
		match := f.match(data.Tournament.ID, "R1M1")

		_, err := f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[0].ID), match.Match.ID, claim)
		require.NoError(t, err)
		m, err := f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[1].ID), match.Match.ID, claim)
		require.NoError(t, err)
		assert.Equal(t, bracket.MatchDisputed, m.Status)
		assert.Nil(t, m.WinnerID)

		disputed := f.match(data.Tournament.ID, "R1M1")
		for _, p := range disputed.Players {
			assert.Nil(t, p.ReportedWin)
		}
		assert.Equal(t, bracket.TournamentInProgress, f.tournamentStatus(data.Tournament.ID))
		assert.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(`
# HELP darts_disputes_total Matches moved to disputed after inconsistent reports.
# TYPE darts_disputes_total counter
darts_disputes_total 1
`), "darts_disputes_total"))

		// Both sides may report again
		_, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[1].ID), match.Match.ID, true)
		require.NoError(t, err)
		m, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[0].ID), match.Match.ID, false)
		require.NoError(t, err)
		assert.Equal(t, bracket.MatchCompleted, m.Status)
		assert.Equal(t, players[1].ID, *m.WinnerID)
	}
}

func TestReportResult_Errors(t *testing.T) {
	f := newFixture(t)
	data, players := f.generate(bracket.SingleElimination, 3)
	first := f.match(data.Tournament.ID, "R1M1")
	bye := f.match(data.Tournament.ID, "R1M2")
	final := f.match(data.Tournament.ID, "R2M1")

	_, err := f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[2].ID), bye.Match.ID, true)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[2].ID), first.Match.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Matches.ReportResult(f.ctx, admin, first.Match.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[2].ID), final.Match.ID, true)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[0].ID), uuid.New(), true)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[0].ID), first.Match.ID, true)
	require.NoError(t, err)
	_, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[0].ID), first.Match.ID, false)
	assert.ErrorIs(t, err, ErrConflict)

	unchanged := f.match(data.Tournament.ID, "R1M1")
	reporter, ok := bracket.FindPlayer(unchanged.Players, players[0].ID)
	require.True(t, ok)
	require.NotNil(t, reporter.ReportedWin)
	assert.True(t, *reporter.ReportedWin, "a rejected report must not change the first one")
}

func TestOverrideResult(t *testing.T) {
	f := newFixture(t)
	data, players := f.generate(bracket.SingleElimination, 3)
	first := f.match(data.Tournament.ID, "R1M1")
	final := f.match(data.Tournament.ID, "R2M1")

	_, err := f.svc.Matches.OverrideResult(f.ctx, bracket.CompetitorActor(players[0].ID), first.Match.ID, players[0].ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Matches.OverrideResult(f.ctx, admin, first.Match.ID, players[2].ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Matches.OverrideResult(f.ctx, admin, final.Match.ID, players[2].ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Matches.OverrideResult(f.ctx, admin, uuid.New(), players[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Overriding settles a dispute
	_, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[0].ID), first.Match.ID, true)
	require.NoError(t, err)
	_, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[1].ID), first.Match.ID, true)
	require.NoError(t, err)

	m, err := f.svc.Matches.OverrideResult(f.ctx, admin, first.Match.ID, players[1].ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, m.Status)
	assert.Equal(t, players[1].ID, *m.WinnerID)

	_, err = f.svc.Matches.OverrideResult(f.ctx, admin, first.Match.ID, players[0].ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	final = f.match(data.Tournament.ID, "R2M1")
	assert.Equal(t, players[1].ID, occupant(final, 1))
	assert.Equal(t, players[2].ID, occupant(final, 2))
}

func TestStartMatch(t *testing.T) {
	f := newFixture(t)
	data, players := f.generate(bracket.SingleElimination, 4)
	first := f.match(data.Tournament.ID, "R1M1")
	final := f.match(data.Tournament.ID, "R2M1")

	_, err := f.svc.Matches.StartMatch(f.ctx, bracket.CompetitorActor(players[2].ID), first.Match.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Matches.StartMatch(f.ctx, admin, final.Match.ID)
	assert.ErrorIs(t, err, ErrConflict)

	started, err := f.svc.Matches.StartMatch(f.ctx, bracket.CompetitorActor(players[0].ID), first.Match.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchInProgress, started.Match.Status)
	assert.NotNil(t, started.Match.StartedAt)

	_, err = f.svc.Matches.StartMatch(f.ctx, admin, first.Match.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	stored := f.match(data.Tournament.ID, "R1M1")
	require.Len(t, stored.Games, 1)
	assert.Equal(t, 1, stored.Games[0].SetNumber)
	assert.Equal(t, 1, stored.Games[0].LegNumber)
	assert.JSONEq(t, `{"starting_score":501,"double_in":false,"double_out":true,"players":{}}`, stored.Games[0].GameData)

	// A started match is still decided by reports
	_, err = f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[0].ID), first.Match.ID, true)
	require.NoError(t, err)
	m, err := f.svc.Matches.ReportResult(f.ctx, bracket.CompetitorActor(players[1].ID), first.Match.ID, false)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, m.Status)
}

type fakeRules struct {
	CreateGameFunc func(gameType string, startingScore int, doubleIn, doubleOut bool) (json.RawMessage, error)
}

func (f fakeRules) CreateGame(gameType string, startingScore int, doubleIn, doubleOut bool) (json.RawMessage, error) {
	return f.CreateGameFunc(gameType, startingScore, doubleIn, doubleOut)
}

func TestStartMatch_RulesEngine(t *testing.T) {
	f := newFixture(t)
	data, _ := f.generate(bracket.SingleElimination, 2)
	first := f.match(data.Tournament.ID, "R1M1")

	var gotType string
	f.svc.Matches.rules = fakeRules{CreateGameFunc: func(gameType string, _ int, _, _ bool) (json.RawMessage, error) {
		gotType = gameType
		return nil, errors.New("unsupported variant")
	}}

	_, err := f.svc.Matches.StartMatch(f.ctx, admin, first.Match.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, data.Tournament.GameType, gotType)
	assert.Equal(t, bracket.MatchPending, f.match(data.Tournament.ID, "R1M1").Match.Status)

	f.svc.Matches.rules = fakeRules{CreateGameFunc: func(string, int, bool, bool) (json.RawMessage, error) {
		return json.RawMessage(`{"custom":true}`), nil
	}}

	started, err := f.svc.Matches.StartMatch(f.ctx, admin, first.Match.ID)
	require.NoError(t, err)
	require.Len(t, started.Games, 1)
	assert.JSONEq(t, `{"custom":true}`, started.Games[0].GameData)
}

func TestMarkPresence(t *testing.T) {
	f := newFixture(t)
	data, players := f.generate(bracket.SingleElimination, 4)
	first := f.match(data.Tournament.ID, "R1M1")

	_, err := f.svc.Matches.MarkOnMyWay(f.ctx, admin, first.Match.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Matches.MarkArrived(f.ctx, bracket.CompetitorActor(players[3].ID), first.Match.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	marked, err := f.svc.Matches.MarkOnMyWay(f.ctx, bracket.CompetitorActor(players[0].ID), first.Match.ID)
	require.NoError(t, err)
	p, ok := bracket.FindPlayer(marked.Players, players[0].ID)
	require.True(t, ok)
	require.NotNil(t, p.OnMyWayAt)
	firstMark := *p.OnMyWayAt

	marked, err = f.svc.Matches.MarkOnMyWay(f.ctx, bracket.CompetitorActor(players[0].ID), first.Match.ID)
	require.NoError(t, err)
	p, _ = bracket.FindPlayer(marked.Players, players[0].ID)
	assert.True(t, firstMark.Equal(*p.OnMyWayAt), "the first mark is kept")
	assert.Nil(t, p.ArrivedAtBoardAt)

	marked, err = f.svc.Matches.MarkArrived(f.ctx, bracket.CompetitorActor(players[0].ID), first.Match.ID)
	require.NoError(t, err)
	p, _ = bracket.FindPlayer(marked.Players, players[0].ID)
	assert.NotNil(t, p.ArrivedAtBoardAt)

	f.win(data.Tournament.ID, "R1M1", 1)
	_, err = f.svc.Matches.MarkArrived(f.ctx, bracket.CompetitorActor(players[1].ID), first.Match.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRun_RollbackDropsEvents(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")

	err := f.svc.Matches.run(f.ctx, "test", func(ctx context.Context, _ *sqlx.Tx, outbox *notify.Outbox) error {
		outbox.MatchUpdated(ctx, notify.MatchEvent{})
		outbox.MatchCompleted(ctx, notify.MatchEvent{})
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, f.events.total())

	err = f.svc.Matches.run(f.ctx, "test", func(ctx context.Context, _ *sqlx.Tx, outbox *notify.Outbox) error {
		outbox.MatchUpdated(ctx, notify.MatchEvent{})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.events.total())
}

func TestRejectedRequestEmitsNothing(t *testing.T) {
	f := newFixture(t)
	data, players := f.generate(bracket.SingleElimination, 4)
	first := f.match(data.Tournament.ID, "R1M1")
	before := f.events.total()

	_, err := f.svc.Matches.OverrideResult(f.ctx, admin, first.Match.ID, players[3].ID)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, before, f.events.total())
}
