package service

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/AdamBeresnev/darts-bracket/internal/db"
	"github.com/AdamBeresnev/darts-bracket/internal/metrics"
	"github.com/AdamBeresnev/darts-bracket/internal/notify"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var admin = bracket.Admin()

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	database, err := sqlx.Connect("sqlite3", "file:"+path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate")
	require.NoError(t, err, "Failed to connect to test DB")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database), "Failed to apply migrations")
	return database
}

// recorder keeps the type of every delivered event.
type recorder struct {
	mu     sync.Mutex
	events []string
	boards []notify.BoardEvent
}

func (r *recorder) add(kind string) {
	r.mu.Lock()
	r.events = append(r.events, kind)
	r.mu.Unlock()
}

func (r *recorder) MatchCompleted(_ context.Context, _ notify.MatchEvent) {
	r.add(notify.EventMatchCompleted)
}

func (r *recorder) MatchUpdated(_ context.Context, _ notify.MatchEvent) {
	r.add(notify.EventMatchUpdated)
}

func (r *recorder) BoardAssigned(_ context.Context, e notify.BoardEvent) {
	r.mu.Lock()
	r.boards = append(r.boards, e)
	r.mu.Unlock()
	r.add(notify.EventBoardAssigned)
}

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == kind {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *sqlx.DB
	svc      *Services
	events   *recorder
	registry *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := setupTestDB(t)
	events := &recorder{}
	registry := prometheus.NewRegistry()
	return &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       database,
		svc:      New(database, events, metrics.New(registry)),
		events:   events,
		registry: registry,
	}
}

func (f *fixture) players(n int) []bracket.Player {
	f.t.Helper()
	players := make([]bracket.Player, 0, n)
	for i := 0; i < n; i++ {
		p, err := f.svc.Players.CreatePlayer(f.ctx, admin, PlayerInput{
			Name:       fmt.Sprintf("%s %d", gofakeit.LastName(), i+1),
			SkillLevel: gofakeit.IntRange(1, 10),
		})
		require.NoError(f.t, err)
		players = append(players, *p)
	}
	return players
}

// tournament creates a tournament with n registered players, seeded in
// creation order.
func (f *fixture) tournament(format bracket.TournamentFormat, n int) (*bracket.Tournament, []bracket.Player) {
	f.t.Helper()
	t, err := f.svc.Tournaments.CreateTournament(f.ctx, admin, TournamentInput{
		Name:          gofakeit.City() + " Open",
		Format:        format,
		GameType:      "501",
		StartingScore: 501,
		DoubleOut:     true,
	})
	require.NoError(f.t, err)

	players := f.players(n)
	for _, p := range players {
		_, err := f.svc.Entries.Register(f.ctx, admin, t.ID, EntryInput{PlayerID: p.ID})
		require.NoError(f.t, err)
	}
	return t, players
}

func (f *fixture) generate(format bracket.TournamentFormat, n int) (*BracketData, []bracket.Player) {
	f.t.Helper()
	t, players := f.tournament(format, n)
	data, err := f.svc.Brackets.GenerateBracket(f.ctx, admin, t.ID)
	require.NoError(f.t, err)
	return data, players
}

func (f *fixture) match(tournamentID uuid.UUID, pos string) *MatchData {
	f.t.Helper()
	matches, err := f.svc.Matches.store.GetMatches(f.ctx, tournamentID)
	require.NoError(f.t, err)
	for _, m := range matches {
		if m.BracketPosition == pos {
			data, err := f.svc.Matches.GetMatch(f.ctx, m.ID)
			require.NoError(f.t, err)
			return data
		}
	}
	f.t.Fatalf("match %s not found", pos)
	return nil
}

func (f *fixture) tournamentStatus(id uuid.UUID) bracket.TournamentStatus {
	f.t.Helper()
	t, err := f.svc.Tournaments.store.GetTournament(f.ctx, id)
	require.NoError(f.t, err)
	return t.Status
}

// occupant returns the id that names the side in slot: the team id in
// doubles, the player id otherwise.
func occupant(data *MatchData, slot int) uuid.UUID {
	side := bracket.Side(data.Players, slot)
	if side.TeamID != nil {
		return *side.TeamID
	}
	if side.IsEmpty() {
		return uuid.Nil
	}
	return side.PlayerIDs[0]
}

// win overrides the result of pos in favour of slot.
func (f *fixture) win(tournamentID uuid.UUID, pos string, slot int) *bracket.Match {
	f.t.Helper()
	data := f.match(tournamentID, pos)
	m, err := f.svc.Matches.OverrideResult(f.ctx, admin, data.Match.ID, occupant(data, slot))
	require.NoError(f.t, err)
	return m
}

// picker chooses the winning slot of a playable match.
type picker func(data *MatchData) int

func slotOne(*MatchData) int { return 1 }

func slotTwo(*MatchData) int { return 2 }

func randomSlot(seed uint64) picker {
	r := rand.New(rand.NewSource(int64(seed)))
	return func(*MatchData) int { return r.Intn(2) + 1 }
}

// playOut overrides every playable match in favour of the slot pick
// chooses until the tournament has nothing left to play.
func (f *fixture) playOut(tournamentID uuid.UUID, doubles bool, pick picker) {
	f.t.Helper()
	for i := 0; i < 1000; i++ {
		matches, err := f.svc.Matches.store.GetMatches(f.ctx, tournamentID)
		require.NoError(f.t, err)

		played := false
		for _, m := range matches {
			if m.Status.IsTerminal() {
				continue
			}
			data, err := f.svc.Matches.GetMatch(f.ctx, m.ID)
			require.NoError(f.t, err)
			if !bracket.IsFull(data.Players, doubles) {
				continue
			}
			_, err = f.svc.Matches.OverrideResult(f.ctx, admin, m.ID, occupant(data, pick(data)))
			require.NoError(f.t, err, "override %s", m.BracketPosition)
			played = true
			break
		}
		if !played {
			return
		}
	}
	f.t.Fatal("tournament did not finish")
}
