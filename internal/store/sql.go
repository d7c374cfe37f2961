// internal/store/sql.go
//
// database/sql implementation of Backend shared by the SQLite and PostgreSQL
// drivers. Dialect differences (placeholders, list columns, timestamps,
// row locking, unique-violation detection) live behind the dialect interface.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/andthen/internal/game"
)

type dialect interface {
	name() string
	// rebind rewrites ? placeholders for the driver.
	rebind(q string) string
	listValue(v []string) (any, error)
	listScanner(dst *[]string) any
	timeValue(t time.Time) any
	timeScanner(dst *time.Time) any
	// lockCounter reads current_move_index for one game, holding a write
	// lock on the row until the transaction ends.
	lockCounter() string
	gamesForPlayer() string
	isUniqueViolation(err error) bool
}

// SQLStore is a Backend over *sql.DB.
type SQLStore struct {
	db *sql.DB
	d  dialect

	// afterInsert runs between the ledger insert and the counter update.
	// Tests use it to force a failure mid-transaction.
	afterInsert func() error
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const gameColumns = `id, owner_id, player_ids, words_per_move, total_moves_allowed, current_move_index, created_at`

func (s *SQLStore) CreateGame(ctx context.Context, g game.Game) (game.Game, error) {
	g = g.Clone()
	g.ID = uuid.NewString()
	g.CurrentMoveIndex = 0
	players, err := s.d.listValue(g.PlayerIDs)
	if err != nil {
		return game.Game{}, err
	}
	_, err = s.db.ExecContext(ctx, s.d.rebind(`INSERT INTO games (`+gameColumns+`) VALUES (?,?,?,?,?,0,?)`),
		g.ID, g.OwnerID, players, g.WordsPerMove, g.TotalMovesAllowed, s.d.timeValue(g.CreatedAt))
	if err != nil {
		return game.Game{}, fmt.Errorf("insert game: %w", err)
	}
	return g, nil
}

func (s *SQLStore) GetGame(ctx context.Context, id string) (game.Game, error) {
	row := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT `+gameColumns+` FROM games WHERE id = ?`), id)
	g, err := s.scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Game{}, ErrNotFound
	}
	if err != nil {
		return game.Game{}, fmt.Errorf("get game: %w", err)
	}
	return g, nil
}

func (s *SQLStore) ListMoves(ctx context.Context, gameID string) ([]game.Move, error) {
	if _, err := s.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT game_id, player_id, index_in_story, words, created_at
		FROM moves WHERE game_id = ? ORDER BY index_in_story ASC`), gameID)
	if err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	defer rows.Close()

	out := []game.Move{}
	for rows.Next() {
		var m game.Move
		if err := rows.Scan(&m.GameID, &m.PlayerID, &m.IndexInStory,
			s.d.listScanner(&m.Words), s.d.timeScanner(&m.CreatedAt)); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) GamesForPlayer(ctx context.Context, playerID string) ([]game.Game, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(s.d.gamesForPlayer()), playerID, playerID)
	if err != nil {
		return nil, fmt.Errorf("games for player: %w", err)
	}
	defer rows.Close()

	out := []game.Game{}
	for rows.Next() {
		g, err := s.scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// CommitMove runs lock, compare, insert and update in one transaction.
// The deferred Rollback is a no-op after a successful Commit.
func (s *SQLStore) CommitMove(ctx context.Context, m game.Move) (game.Move, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return game.Move{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int
	err = tx.QueryRowContext(ctx, s.d.rebind(s.d.lockCounter()), m.GameID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Move{}, ErrNotFound
	}
	if err != nil {
		return game.Move{}, fmt.Errorf("lock game: %w", err)
	}
	if current != m.IndexInStory {
		return game.Move{}, ErrStale
	}

	words, err := s.d.listValue(m.Words)
	if err != nil {
		return game.Move{}, err
	}
	if _, err := tx.ExecContext(ctx, s.d.rebind(`
		INSERT INTO moves (game_id, player_id, index_in_story, words, created_at)
		VALUES (?,?,?,?,?)`),
		m.GameID, m.PlayerID, m.IndexInStory, words, s.d.timeValue(m.CreatedAt)); err != nil {
		if s.d.isUniqueViolation(err) {
			return game.Move{}, ErrStale
		}
		return game.Move{}, fmt.Errorf("insert move: %w", err)
	}

	if s.afterInsert != nil {
		if err := s.afterInsert(); err != nil {
			return game.Move{}, err
		}
	}

	res, err := tx.ExecContext(ctx, s.d.rebind(`
		UPDATE games SET current_move_index = ? WHERE id = ? AND current_move_index = ?`),
		m.IndexInStory+1, m.GameID, m.IndexInStory)
	if err != nil {
		return game.Move{}, fmt.Errorf("advance counter: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return game.Move{}, fmt.Errorf("advance counter: %w", err)
	} else if n != 1 {
		return game.Move{}, ErrStale
	}

	if err := tx.Commit(); err != nil {
		return game.Move{}, fmt.Errorf("commit move: %w", err)
	}
	return m, nil
}

func (s *SQLStore) CreateAccount(ctx context.Context, a Account) (Account, error) {
	a.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, s.d.rebind(`
		INSERT INTO accounts (id, username, password_hash, created_at) VALUES (?,?,?,?)`),
		a.ID, a.Username, a.PasswordHash, s.d.timeValue(a.CreatedAt))
	if err != nil {
		if s.d.isUniqueViolation(err) {
			return Account{}, ErrDuplicate
		}
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

func (s *SQLStore) AccountByUsername(ctx context.Context, username string) (Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, s.d.rebind(`
		SELECT id, username, password_hash, created_at FROM accounts WHERE lower(username) = lower(?)`), username))
}

func (s *SQLStore) AccountByID(ctx context.Context, id string) (Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, s.d.rebind(`
		SELECT id, username, password_hash, created_at FROM accounts WHERE id = ?`), id))
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanGame(row rowScanner) (game.Game, error) {
	var g game.Game
	err := row.Scan(&g.ID, &g.OwnerID, s.d.listScanner(&g.PlayerIDs), &g.WordsPerMove,
		&g.TotalMovesAllowed, &g.CurrentMoveIndex, s.d.timeScanner(&g.CreatedAt))
	return g, err
}

func (s *SQLStore) scanAccount(row *sql.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, s.d.timeScanner(&a.CreatedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

// rebindDollar rewrites ? placeholders to $1..$n. Queries here never
// contain a literal question mark.
func rebindDollar(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
