package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/AdamBeresnev/darts-bracket/internal/db"
	"github.com/AdamBeresnev/darts-bracket/internal/utils"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a file-backed SQLite database and applies migrations.
// A file is used instead of :memory: so every pooled connection sees the
// same data.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	database, err := sqlx.Connect("sqlite3", "file:"+path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate")
	require.NoError(t, err, "Failed to connect to test DB")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database), "Failed to apply migrations")
	return database
}

func inTx(t *testing.T, database *sqlx.DB, fn func(tx *sqlx.Tx)) {
	t.Helper()
	tx, err := database.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()
	fn(tx)
	require.NoError(t, tx.Commit())
}

func seedTournament(t *testing.T, database *sqlx.DB, format bracket.TournamentFormat) *bracket.Tournament {
	t.Helper()
	tournament := &bracket.Tournament{
		ID:            uuid.New(),
		Name:          gofakeit.Company() + " Open",
		Format:        format,
		Status:        bracket.TournamentDraft,
		GameType:      "501",
		StartingScore: 501,
		DoubleOut:     true,
		CreatedAt:     time.Now().UTC(),
	}
	inTx(t, database, func(tx *sqlx.Tx) {
		require.NoError(t, NewTournamentStore(database).CreateTournament(context.Background(), tx, tournament))
	})
	return tournament
}

func seedPlayer(t *testing.T, database *sqlx.DB) *bracket.Player {
	t.Helper()
	player := &bracket.Player{ID: uuid.New(), Name: gofakeit.Name(), CreatedAt: time.Now().UTC()}
	require.NoError(t, NewPlayerStore(database).CreatePlayer(context.Background(), player))
	return player
}

func TestCreateTournament(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ctx := context.Background()

	tournament := seedTournament(t, database, bracket.DoubleElimination)

	fetched, err := store.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.ID, fetched.ID)
	assert.Equal(t, tournament.Name, fetched.Name)
	assert.Equal(t, bracket.DoubleElimination, fetched.Format)
	assert.Equal(t, bracket.TournamentDraft, fetched.Status)
	assert.True(t, fetched.DoubleOut)
	assert.False(t, fetched.DoubleIn)
	assert.Nil(t, fetched.EndTime)
	assert.WithinDuration(t, tournament.CreatedAt, fetched.CreatedAt, time.Second)
}

func TestCompleteTournamentTx_OnlyFromInProgress(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ctx := context.Background()

	tournament := seedTournament(t, database, bracket.SingleElimination)

	inTx(t, database, func(tx *sqlx.Tx) {
		changed, err := store.CompleteTournamentTx(ctx, tx, tournament.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, changed, "draft tournaments are not completed")

		require.NoError(t, store.StartTournamentTx(ctx, tx, tournament.ID, 4, time.Now()))

		changed, err = store.CompleteTournamentTx(ctx, tx, tournament.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = store.CompleteTournamentTx(ctx, tx, tournament.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, changed)
	})

	fetched, err := store.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, fetched.Status)
	assert.Equal(t, 4, fetched.EntrantCount)
	assert.NotNil(t, fetched.EndTime)
}

func TestEntriesOrderedBySeed(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ctx := context.Background()

	tournament := seedTournament(t, database, bracket.SingleElimination)
	p1, p2 := seedPlayer(t, database), seedPlayer(t, database)

	inTx(t, database, func(tx *sqlx.Tx) {
		require.NoError(t, store.CreateEntry(ctx, tx, &bracket.Entry{ID: uuid.New(), TournamentID: tournament.ID, PlayerID: p1.ID, Seed: 2, CreatedAt: time.Now()}))
		require.NoError(t, store.CreateEntry(ctx, tx, &bracket.Entry{ID: uuid.New(), TournamentID: tournament.ID, PlayerID: p2.ID, Seed: 1, CreatedAt: time.Now()}))
	})

	entries, err := store.GetEntries(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, p2.ID, entries[0].PlayerID)
	assert.Equal(t, p1.ID, entries[1].PlayerID)

	// A player enters a tournament once
	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	err = store.CreateEntry(ctx, tx, &bracket.Entry{ID: uuid.New(), TournamentID: tournament.ID, PlayerID: p1.ID, Seed: 3, CreatedAt: time.Now()})
	assert.Error(t, err)
}

func TestMatchesAndOccupants(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ctx := context.Background()

	tournament := seedTournament(t, database, bracket.SingleElimination)
	p1, p2 := seedPlayer(t, database), seedPlayer(t, database)

	final := bracket.Match{
		ID: uuid.New(), TournamentID: tournament.ID, BracketPosition: "R2M1", BracketSide: bracket.WinnersSide,
		RoundNumber: 2, MatchNumber: 3, Status: bracket.MatchPending, CreatedAt: time.Now(),
	}
	matches := []bracket.Match{
		{ID: uuid.New(), TournamentID: tournament.ID, BracketPosition: "R1M1", BracketSide: bracket.WinnersSide, RoundNumber: 1, MatchNumber: 1, Status: bracket.MatchPending, CreatedAt: time.Now()},
		{ID: uuid.New(), TournamentID: tournament.ID, BracketPosition: "R1M2", BracketSide: bracket.WinnersSide, RoundNumber: 1, MatchNumber: 2, Status: bracket.MatchPending, CreatedAt: time.Now()},
		final,
	}

	inTx(t, database, func(tx *sqlx.Tx) {
		require.NoError(t, store.CreateMatches(ctx, tx, matches))
		require.NoError(t, store.AddMatchPlayerTx(ctx, tx, &bracket.MatchPlayer{ID: uuid.New(), MatchID: matches[0].ID, PlayerID: p1.ID, Slot: 1, CreatedAt: time.Now()}))
		require.NoError(t, store.AddMatchPlayerTx(ctx, tx, &bracket.MatchPlayer{ID: uuid.New(), MatchID: matches[0].ID, PlayerID: p2.ID, Slot: 2, CreatedAt: time.Now()}))
	})

	fetched, err := store.GetMatches(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetched, 3)
	assert.Equal(t, "R1M1", fetched[0].BracketPosition)
	assert.Equal(t, "R2M1", fetched[2].BracketPosition)
	assert.Nil(t, fetched[0].WinnerID)
	assert.Nil(t, fetched[0].DartboardID)

	inTx(t, database, func(tx *sqlx.Tx) {
		m, err := store.LockMatchByPositionTx(ctx, tx, tournament.ID, bracket.RoundPosition(2, 1))
		require.NoError(t, err)
		assert.Equal(t, final.ID, m.ID)

		ready, err := store.GetReadyMatchesTx(ctx, tx, tournament.ID, 2)
		require.NoError(t, err)
		require.Len(t, ready, 1)
		assert.Equal(t, matches[0].ID, ready[0].ID)

		feeders, err := store.GetMatchesByPositionsTx(ctx, tx, tournament.ID, []bracket.Position{bracket.RoundPosition(1, 1), bracket.RoundPosition(1, 2)})
		require.NoError(t, err)
		assert.Len(t, feeders, 2)

		m.Status = bracket.MatchCompleted
		m.WinnerID = utils.Ptr(p1.ID)
		m.CompletedAt = utils.Ptr(time.Now())
		require.NoError(t, store.UpdateMatchTx(ctx, tx, m))

		open, err := store.CountOpenMatchesTx(ctx, tx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, open)
	})

	updated, err := store.GetMatch(ctx, final.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, updated.Status)
	require.NotNil(t, updated.WinnerID)
	assert.Equal(t, p1.ID, *updated.WinnerID)

	players, err := store.GetMatchPlayers(ctx, matches[0].ID)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Nil(t, players[0].ReportedWin)

	inTx(t, database, func(tx *sqlx.Tx) {
		require.NoError(t, store.SetReportedWinTx(ctx, tx, players[0].ID, true))
		first := time.Now().Add(-time.Minute).UTC()
		require.NoError(t, store.MarkOnMyWayTx(ctx, tx, players[0].ID, first))
		require.NoError(t, store.MarkOnMyWayTx(ctx, tx, players[0].ID, time.Now()))
	})

	players, err = store.GetMatchPlayers(ctx, matches[0].ID)
	require.NoError(t, err)
	require.NotNil(t, players[0].ReportedWin)
	assert.True(t, *players[0].ReportedWin)
	require.NotNil(t, players[0].OnMyWayAt)
	assert.WithinDuration(t, time.Now().Add(-time.Minute), *players[0].OnMyWayAt, 5*time.Second)

	inTx(t, database, func(tx *sqlx.Tx) {
		require.NoError(t, store.ResetReportsTx(ctx, tx, matches[0].ID))
	})
	players, err = store.GetMatchPlayers(ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Nil(t, players[0].ReportedWin)

	all, err := store.GetTournamentMatchPlayers(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBoardStore(t *testing.T) {
	database := setupTestDB(t)
	boards := NewBoardStore(database)
	ctx := context.Background()

	inTx(t, database, func(tx *sqlx.Tx) {
		for _, n := range []int{3, 1, 2} {
			require.NoError(t, boards.CreateBoard(ctx, tx, &bracket.Dartboard{ID: uuid.New(), Number: n, Name: gofakeit.Color(), IsAvailable: true, CreatedAt: time.Now()}))
		}
	})

	list, err := boards.ListBoards(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{list[0].Number, list[1].Number, list[2].Number})

	inTx(t, database, func(tx *sqlx.Tx) {
		require.NoError(t, boards.SetAvailableTx(ctx, tx, list[0].ID, false))

		available, err := boards.LockAvailableBoardsTx(ctx, tx)
		require.NoError(t, err)
		require.Len(t, available, 2)
		assert.Equal(t, 2, available[0].Number)

		n, err := boards.CountHoldersTx(ctx, tx, list[0].ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, boards.DeleteBoardTx(ctx, tx, list[2].ID))
	})

	free, err := boards.ListAvailableBoards(ctx)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, 2, free[0].Number)

	// Numbers are unique
	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	assert.Error(t, boards.CreateBoard(ctx, tx, &bracket.Dartboard{ID: uuid.New(), Number: 1, Name: "dup", CreatedAt: time.Now()}))
}
