package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

// forUpdate turns a read into a row lock where the driver supports it.
// SQLite has no row locks; its transactions already hold the database
// write lock from BEGIN IMMEDIATE.
func forUpdate(tx *sqlx.Tx) string {
	if tx.DriverName() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

const (
	createTournamentQuery = `
		INSERT INTO tournaments (id, name, format, status, game_type, starting_score, double_in, double_out, entrant_count, max_players, start_time, end_time, created_at)
		VALUES (:id, :name, :format, :status, :game_type, :starting_score, :double_in, :double_out, :entrant_count, :max_players, :start_time, :end_time, :created_at)
	`
	getTournamentQuery   = "SELECT * FROM tournaments WHERE id = ?"
	listTournamentsQuery = "SELECT * FROM tournaments ORDER BY created_at DESC"
	startTournamentQuery = `
		UPDATE tournaments SET status = ?, entrant_count = ?, start_time = ?
		WHERE id = ?
	`
	completeTournamentQuery = `
		UPDATE tournaments SET status = ?, end_time = ?
		WHERE id = ? AND status = ?
	`
)

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, createTournamentQuery, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := s.db.GetContext(ctx, &tournament, s.db.Rebind(getTournamentQuery), id); err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := tx.GetContext(ctx, &tournament, tx.Rebind(getTournamentQuery), id); err != nil {
		return nil, err
	}
	return &tournament, nil
}

// LockTournamentTx reads the tournament and holds its row until the
// transaction ends.
func (s *TournamentStore) LockTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := tx.GetContext(ctx, &tournament, tx.Rebind(getTournamentQuery+forUpdate(tx)), id); err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := s.db.SelectContext(ctx, &tournaments, listTournamentsQuery)
	return tournaments, err
}

func (s *TournamentStore) UpdateTournamentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status bracket.TournamentStatus) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE tournaments SET status = ? WHERE id = ?"), status, id)
	return err
}

func (s *TournamentStore) StartTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, entrantCount int, startTime time.Time) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(startTournamentQuery), bracket.TournamentInProgress, entrantCount, startTime, id)
	return err
}

// CompleteTournamentTx moves an in-progress tournament to completed and
// reports whether anything changed.
func (s *TournamentStore) CompleteTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, endTime time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(completeTournamentQuery), bracket.TournamentCompleted, endTime, id, bracket.TournamentInProgress)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const (
	createEntryQuery = `
		INSERT INTO tournament_entries (id, tournament_id, player_id, seed, checked_in, created_at)
		VALUES (:id, :tournament_id, :player_id, :seed, :checked_in, :created_at)
	`
	getEntriesQuery = "SELECT * FROM tournament_entries WHERE tournament_id = ? ORDER BY seed ASC, created_at ASC"
)

func (s *TournamentStore) CreateEntry(ctx context.Context, tx *sqlx.Tx, entry *bracket.Entry) error {
	_, err := tx.NamedExecContext(ctx, createEntryQuery, entry)
	return err
}

func (s *TournamentStore) GetEntries(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Entry, error) {
	var entries []bracket.Entry
	err := s.db.SelectContext(ctx, &entries, s.db.Rebind(getEntriesQuery), tournamentID)
	return entries, err
}

func (s *TournamentStore) GetEntriesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Entry, error) {
	var entries []bracket.Entry
	err := tx.SelectContext(ctx, &entries, tx.Rebind(getEntriesQuery), tournamentID)
	return entries, err
}

const (
	createTeamQuery = `
		INSERT INTO teams (id, tournament_id, name, player1_id, player2_id, seed, created_at)
		VALUES (:id, :tournament_id, :name, :player1_id, :player2_id, :seed, :created_at)
	`
	getTeamsQuery = "SELECT * FROM teams WHERE tournament_id = ? ORDER BY seed ASC"
)

func (s *TournamentStore) CreateTeams(ctx context.Context, tx *sqlx.Tx, teams []bracket.Team) error {
	if len(teams) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createTeamQuery, teams)
	return err
}

func (s *TournamentStore) GetTeams(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Team, error) {
	var teams []bracket.Team
	err := s.db.SelectContext(ctx, &teams, s.db.Rebind(getTeamsQuery), tournamentID)
	return teams, err
}

func (s *TournamentStore) GetTeamsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Team, error) {
	var teams []bracket.Team
	err := tx.SelectContext(ctx, &teams, tx.Rebind(getTeamsQuery), tournamentID)
	return teams, err
}
