package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	createMatchQuery = `
		INSERT INTO matches (id, tournament_id, bracket_position, bracket_side, round_number, match_number, status, is_bye, created_at)
		VALUES (:id, :tournament_id, :bracket_position, :bracket_side, :round_number, :match_number, :status, :is_bye, :created_at)
	`
	updateMatchQuery = `
		UPDATE matches SET
		status = :status,
		winner_id = :winner_id,
		winner_team_id = :winner_team_id,
		dartboard_id = :dartboard_id,
		is_bye = :is_bye,
		started_at = :started_at,
		completed_at = :completed_at
		WHERE id = :id
	`
	getMatchQuery           = "SELECT * FROM matches WHERE id = ?"
	getMatchByPositionQuery = "SELECT * FROM matches WHERE tournament_id = ? AND bracket_position = ?"
	getMatchesQuery         = "SELECT * FROM matches WHERE tournament_id = ? ORDER BY round_number ASC, match_number ASC"
	getMatchesByPositions   = "SELECT * FROM matches WHERE tournament_id = ? AND bracket_position IN (?)"

	// Pending matches without a board whose sides are both filled
	getReadyMatchesQuery = `
		SELECT m.* FROM matches m
		WHERE m.tournament_id = ?
		AND m.status = ?
		AND m.dartboard_id IS NULL
		AND (SELECT COUNT(DISTINCT mp.slot) FROM match_players mp WHERE mp.match_id = m.id) = 2
		AND (SELECT COUNT(*) FROM match_players mp WHERE mp.match_id = m.id) = ?
		ORDER BY m.round_number ASC, m.match_number ASC`
	countOpenMatchesQuery = `
		SELECT COUNT(*) FROM matches
		WHERE tournament_id = ? AND status NOT IN (?, ?)
	`
)

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createMatchQuery, matches)
	return err
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	if err := s.db.GetContext(ctx, &match, s.db.Rebind(getMatchQuery), id); err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) LockMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	if err := tx.GetContext(ctx, &match, tx.Rebind(getMatchQuery+forUpdate(tx)), id); err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) LockMatchByPositionTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, position bracket.Position) (*bracket.Match, error) {
	var match bracket.Match
	err := tx.GetContext(ctx, &match, tx.Rebind(getMatchByPositionQuery+forUpdate(tx)), tournamentID, position.String())
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) GetMatchesByPositionsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, positions []bracket.Position) ([]bracket.Match, error) {
	if len(positions) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(positions))
	for _, p := range positions {
		keys = append(keys, p.String())
	}

	query, args, err := sqlx.In(getMatchesByPositions, tournamentID, keys)
	if err != nil {
		return nil, err
	}
	var matches []bracket.Match
	err = tx.SelectContext(ctx, &matches, tx.Rebind(query), args...)
	return matches, err
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := s.db.SelectContext(ctx, &matches, s.db.Rebind(getMatchesQuery), tournamentID)
	return matches, err
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := tx.SelectContext(ctx, &matches, tx.Rebind(getMatchesQuery), tournamentID)
	return matches, err
}

func (s *TournamentStore) UpdateMatchTx(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	_, err := tx.NamedExecContext(ctx, updateMatchQuery, match)
	return err
}

// GetReadyMatchesTx locks the matches waiting for a board, in play order.
// occupants is the player count of a full match: 2 in singles, 4 in doubles.
func (s *TournamentStore) GetReadyMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, occupants int) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := tx.SelectContext(ctx, &matches, tx.Rebind(getReadyMatchesQuery+forUpdate(tx)), tournamentID, bracket.MatchPending, occupants)
	return matches, err
}

// CountOpenMatchesTx counts matches that are neither completed nor cancelled.
func (s *TournamentStore) CountOpenMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, tx.Rebind(countOpenMatchesQuery), tournamentID, bracket.MatchCompleted, bracket.MatchCancelled)
	return n, err
}

const (
	addMatchPlayerQuery = `
		INSERT INTO match_players (id, match_id, player_id, team_id, slot, team_position, reported_win, created_at)
		VALUES (:id, :match_id, :player_id, :team_id, :slot, :team_position, :reported_win, :created_at)
	`
	getMatchPlayersQuery = "SELECT * FROM match_players WHERE match_id = ? ORDER BY slot ASC, team_position ASC, created_at ASC"
	getTournamentPlayers = `
		SELECT mp.* FROM match_players mp
		JOIN matches m ON m.id = mp.match_id
		WHERE m.tournament_id = ?
		ORDER BY m.match_number ASC, mp.slot ASC, mp.team_position ASC
	`
	markOnMyWayQuery = "UPDATE match_players SET on_my_way_at = ? WHERE id = ? AND on_my_way_at IS NULL"
	markArrivedQuery = "UPDATE match_players SET arrived_at_board_at = ? WHERE id = ? AND arrived_at_board_at IS NULL"
)

func (s *TournamentStore) AddMatchPlayerTx(ctx context.Context, tx *sqlx.Tx, player *bracket.MatchPlayer) error {
	_, err := tx.NamedExecContext(ctx, addMatchPlayerQuery, player)
	return err
}

func (s *TournamentStore) GetMatchPlayers(ctx context.Context, matchID uuid.UUID) ([]bracket.MatchPlayer, error) {
	var players []bracket.MatchPlayer
	err := s.db.SelectContext(ctx, &players, s.db.Rebind(getMatchPlayersQuery), matchID)
	return players, err
}

func (s *TournamentStore) GetMatchPlayersTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) ([]bracket.MatchPlayer, error) {
	var players []bracket.MatchPlayer
	err := tx.SelectContext(ctx, &players, tx.Rebind(getMatchPlayersQuery), matchID)
	return players, err
}

// GetTournamentMatchPlayers loads the occupants of every match in a tournament.
func (s *TournamentStore) GetTournamentMatchPlayers(ctx context.Context, tournamentID uuid.UUID) ([]bracket.MatchPlayer, error) {
	var players []bracket.MatchPlayer
	err := s.db.SelectContext(ctx, &players, s.db.Rebind(getTournamentPlayers), tournamentID)
	return players, err
}

func (s *TournamentStore) SetReportedWinTx(ctx context.Context, tx *sqlx.Tx, matchPlayerID uuid.UUID, claimsWin bool) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE match_players SET reported_win = ? WHERE id = ?"), claimsWin, matchPlayerID)
	return err
}

func (s *TournamentStore) ResetReportsTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE match_players SET reported_win = NULL WHERE match_id = ?"), matchID)
	return err
}

// MarkOnMyWayTx and MarkArrivedTx keep the first timestamp.
func (s *TournamentStore) MarkOnMyWayTx(ctx context.Context, tx *sqlx.Tx, matchPlayerID uuid.UUID, at time.Time) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(markOnMyWayQuery), at, matchPlayerID)
	return err
}

func (s *TournamentStore) MarkArrivedTx(ctx context.Context, tx *sqlx.Tx, matchPlayerID uuid.UUID, at time.Time) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(markArrivedQuery), at, matchPlayerID)
	return err
}

const createGameQuery = `
	INSERT INTO games (id, match_id, set_number, leg_number, status, game_data, created_at)
	VALUES (:id, :match_id, :set_number, :leg_number, :status, :game_data, :created_at)
`

func (s *TournamentStore) CreateGameTx(ctx context.Context, tx *sqlx.Tx, game *bracket.Game) error {
	_, err := tx.NamedExecContext(ctx, createGameQuery, game)
	return err
}

func (s *TournamentStore) GetGames(ctx context.Context, matchID uuid.UUID) ([]bracket.Game, error) {
	var games []bracket.Game
	err := s.db.SelectContext(ctx, &games, s.db.Rebind("SELECT * FROM games WHERE match_id = ? ORDER BY set_number ASC, leg_number ASC"), matchID)
	return games, err
}
