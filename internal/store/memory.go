// internal/store/memory.go
//
// In-memory implementation of Backend.
// This is a lightweight persistence layer used in development and tests,
// or when durability is not required.
//
// Characteristics:
//   - RWMutex over the maps, plus one mutex per game for its record and ledger.
//   - Values are copied in and out so callers never alias stored state.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/robalobadob/andthen/internal/game"
)

// memory is an in-memory map-based Backend implementation.
// mu guards the maps only; each game's record and ledger sit behind that
// game's own mutex, so commits on different games never wait on each other.
type memory struct {
	mu        sync.RWMutex
	games     map[string]*memoryGame // keyed by Game.ID
	accounts  map[string]Account     // keyed by Account.ID
	usernames map[string]string      // lower(username) -> Account.ID
}

type memoryGame struct {
	mu    sync.Mutex
	game  game.Game
	moves []game.Move // ordered by index
}

// NewMemoryStore constructs a new in-memory Backend.
func NewMemoryStore() Backend {
	return &memory{
		games:     make(map[string]*memoryGame),
		accounts:  make(map[string]Account),
		usernames: make(map[string]string),
	}
}

func (m *memory) CreateGame(ctx context.Context, g game.Game) (game.Game, error) {
	g = g.Clone()
	g.ID = uuid.NewString()
	g.CurrentMoveIndex = 0

	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = &memoryGame{game: g}
	return g.Clone(), nil
}

// entry looks a game up under the map lock and returns it unlocked.
func (m *memory) entry(id string) (*memoryGame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.games[id]
	return e, ok
}

func (m *memory) GetGame(ctx context.Context, id string) (game.Game, error) {
	e, ok := m.entry(id)
	if !ok {
		return game.Game{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Clone(), nil
}

func (m *memory) ListMoves(ctx context.Context, gameID string) ([]game.Move, error) {
	e, ok := m.entry(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]game.Move, len(e.moves))
	for i, mv := range e.moves {
		mv.Words = append([]string(nil), mv.Words...)
		out[i] = mv
	}
	return out, nil
}

func (m *memory) GamesForPlayer(ctx context.Context, playerID string) ([]game.Game, error) {
	m.mu.RLock()
	entries := make([]*memoryGame, 0, len(m.games))
	for _, e := range m.games {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := []game.Game{}
	for _, e := range entries {
		e.mu.Lock()
		if e.game.OwnerID == playerID || e.game.HasPlayer(playerID) {
			out = append(out, e.game.Clone())
		}
		e.mu.Unlock()
	}
	sortNewestFirst(out)
	return out, nil
}

// CommitMove checks and advances the counter under the game's own lock.
func (m *memory) CommitMove(ctx context.Context, mv game.Move) (game.Move, error) {
	if err := ctx.Err(); err != nil {
		return game.Move{}, err
	}
	e, ok := m.entry(mv.GameID)
	if !ok {
		return game.Move{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game.CurrentMoveIndex != mv.IndexInStory {
		return game.Move{}, ErrStale
	}
	mv.Words = append([]string(nil), mv.Words...)
	e.moves = append(e.moves, mv)
	e.game.CurrentMoveIndex++
	return mv, nil
}

func (m *memory) Close() error { return nil }

func (m *memory) CreateAccount(ctx context.Context, a Account) (Account, error) {
	key := strings.ToLower(a.Username)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.usernames[key]; taken {
		return Account{}, ErrDuplicate
	}
	a.ID = uuid.NewString()
	m.accounts[a.ID] = a
	m.usernames[key] = a.ID
	return a, nil
}

func (m *memory) AccountByUsername(ctx context.Context, username string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[strings.ToLower(username)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return m.accounts[id], nil
}

func (m *memory) AccountByID(ctx context.Context, id string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

// sortNewestFirst orders by CreatedAt descending, then ID for stability.
func sortNewestFirst(gs []game.Game) {
	sort.Slice(gs, func(i, j int) bool {
		if !gs[i].CreatedAt.Equal(gs[j].CreatedAt) {
			return gs[i].CreatedAt.After(gs[j].CreatedAt)
		}
		return gs[i].ID < gs[j].ID
	})
}
