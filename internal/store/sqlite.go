// internal/store/sqlite.go
//
// SQLite driver for SQLStore.
// Responsibilities:
//   - Opening the database file with safe defaults (WAL, busy timeout,
//     foreign keys, immediate transactions).
//   - Encoding list columns as JSON text and timestamps as fixed-width UTC text
//     so lexical order matches chronological order.

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// OpenSQLite opens (and creates if missing) a SQLite database file and
// applies the embedded migrations.
//
// _txlock=immediate makes every BeginTx take the database write lock up
// front, which is what serializes concurrent commits on one game. The lock
// is database-wide, so commits on different games queue behind each other
// (bounded by _busy_timeout); use the postgres or redis driver for
// parallel commits across games.
func OpenSQLite(path string) (*SQLStore, error) {
	// Ensure directory exists for ./data/andthen.db, etc.
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLStore{db: db, d: sqliteDialect{}}
	if err := migrate(db, s.d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

type sqliteDialect struct{}

func (sqliteDialect) name() string           { return "sqlite" }
func (sqliteDialect) rebind(q string) string { return q }

func (sqliteDialect) listValue(v []string) (any, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (sqliteDialect) listScanner(dst *[]string) any { return jsonList{dst} }

func (sqliteDialect) timeValue(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) }

func (sqliteDialect) timeScanner(dst *time.Time) any { return textTime{dst} }

func (sqliteDialect) lockCounter() string {
	return `SELECT current_move_index FROM games WHERE id = ?`
}

func (sqliteDialect) gamesForPlayer() string {
	return `SELECT ` + gameColumns + ` FROM games
		WHERE owner_id = ?
		   OR EXISTS (SELECT 1 FROM json_each(games.player_ids) WHERE json_each.value = ?)
		ORDER BY created_at DESC, id ASC`
}

func (sqliteDialect) isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// jsonList scans a JSON array column into a string slice.
type jsonList struct{ dst *[]string }

func (j jsonList) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*j.dst = nil
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("jsonList: unsupported type %T", src)
	}
	return json.Unmarshal(b, j.dst)
}

// textTime scans a timestamp stored as text.
type textTime struct{ dst *time.Time }

func (t textTime) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case time.Time:
		*t.dst = v.UTC()
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("textTime: unsupported type %T", src)
	}
	parsed, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		// rows written by hand or older tooling
		if parsed, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return err
		}
	}
	*t.dst = parsed.UTC()
	return nil
}
