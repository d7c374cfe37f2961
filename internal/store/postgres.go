package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// OpenPostgres connects to databaseURL, checks the connection and applies the
// embedded migrations.
func OpenPostgres(databaseURL string) (*SQLStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLStore{db: db, d: postgresDialect{}}
	if err := migrate(db, s.d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

type postgresDialect struct{}

func (postgresDialect) name() string                      { return "postgres" }
func (postgresDialect) rebind(q string) string            { return rebindDollar(q) }
func (postgresDialect) listValue(v []string) (any, error) { return pq.Array(v), nil }
func (postgresDialect) listScanner(dst *[]string) any     { return pq.Array(dst) }
func (postgresDialect) timeValue(t time.Time) any         { return t.UTC() }
func (postgresDialect) timeScanner(dst *time.Time) any    { return dst }

// lockCounter takes a row lock; a concurrent commit on the same game waits
// here until the first transaction ends, then sees the advanced counter.
func (postgresDialect) lockCounter() string {
	return `SELECT current_move_index FROM games WHERE id = ? FOR UPDATE`
}

func (postgresDialect) gamesForPlayer() string {
	return `SELECT ` + gameColumns + ` FROM games
		WHERE owner_id = ? OR ? = ANY(player_ids)
		ORDER BY created_at DESC, id ASC`
}

func (postgresDialect) isUniqueViolation(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code == "23505"
}
