// internal/store/store.go
//
// Persistence contracts for games, the move ledger and player accounts.
//
// Implementations in this package:
//   - memory:   mutex-guarded maps (development, tests).
//   - SQLStore: SQLite (mattn/go-sqlite3) or PostgreSQL (lib/pq).
//   - Redis:    go-redis with WATCH/MULTI on the game key.
//
// All implementations honour the same commit contract: CommitMove re-reads
// the game's move counter inside its own transaction and only appends when
// the counter still equals the move's IndexInStory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/robalobadob/andthen/internal/game"
)

var (
	// ErrNotFound is returned when a game or account does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStale is returned by CommitMove when the game's counter moved on
	// since the caller validated its snapshot.
	ErrStale = errors.New("stale move index")
	// ErrDuplicate is returned when a unique key (username) is taken.
	ErrDuplicate = errors.New("duplicate")
)

// Store is the Game Record Store plus Move Ledger.
type Store interface {
	// CreateGame assigns an ID and persists g. The returned game is the stored record.
	CreateGame(ctx context.Context, g game.Game) (game.Game, error)

	// GetGame loads a game snapshot. Returns ErrNotFound if missing.
	GetGame(ctx context.Context, id string) (game.Game, error)

	// ListMoves returns the ledger of a game ordered by IndexInStory.
	ListMoves(ctx context.Context, gameID string) ([]game.Move, error)

	// GamesForPlayer returns games where playerID is a participant or the
	// owner, newest first.
	GamesForPlayer(ctx context.Context, playerID string) ([]game.Game, error)

	// CommitMove appends m and advances the game's counter to
	// m.IndexInStory+1 as one atomic unit. It returns ErrStale when the
	// stored counter differs from m.IndexInStory, ErrNotFound when the game
	// is missing. On any error nothing is written.
	CommitMove(ctx context.Context, m game.Move) (game.Move, error)

	Close() error
}

// Account is a registered player.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Accounts persists player accounts. Username lookups are case-insensitive.
type Accounts interface {
	// CreateAccount assigns an ID. Returns ErrDuplicate if the username is taken.
	CreateAccount(ctx context.Context, a Account) (Account, error)
	AccountByUsername(ctx context.Context, username string) (Account, error)
	AccountByID(ctx context.Context, id string) (Account, error)
}

// Backend is what the server needs from a storage engine.
type Backend interface {
	Store
	Accounts
}
