// internal/engine/engine.go
//
// Turn-advancement engine.
// Responsibilities:
//   - Validate a move against a fresh game snapshot (game.CheckMove).
//   - Commit the move through the store as one atomic unit.
//   - Re-validate from scratch when the commit reports a stale snapshot,
//     up to MaxAttempts times.
//
// The engine keeps no game state between calls; every attempt re-reads the
// game. Serialization of commits on one game is the store's job (row lock or
// optimistic check), so games never contend with each other here.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/andthen/internal/game"
	"github.com/robalobadob/andthen/internal/store"
	"github.com/robalobadob/andthen/internal/words"
)

// DefaultMaxAttempts bounds re-validation after lost commit races.
const DefaultMaxAttempts = 3

// Engine validates and commits moves.
type Engine struct {
	store       store.Store
	maxAttempts int
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxAttempts sets how many validate-and-commit rounds SubmitMove runs
// before giving up with a race_lost conflict. Values < 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.maxAttempts = n
		}
	}
}

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New constructs an Engine over st.
func New(st store.Store, opts ...Option) *Engine {
	e := &Engine{store: st, maxAttempts: DefaultMaxAttempts, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// SubmitMove records words as playerID's move in gameID and returns the
// committed move with the game as it stands after that commit.
// playerID must already be authenticated by the caller.
//
// Errors are *game.Error values: not_found, forbidden, conflict
// (not_your_turn / race_lost), game_over, validation, storage.
func (e *Engine) SubmitMove(ctx context.Context, gameID, playerID string, submitted []string) (game.Move, game.Game, error) {
	tokens := words.Normalize(submitted)

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		g, err := e.store.GetGame(ctx, gameID)
		if errors.Is(err, store.ErrNotFound) {
			return game.Move{}, game.Game{}, game.NotFoundError(gameID)
		}
		if err != nil {
			return game.Move{}, game.Game{}, e.storageFailure(err, gameID, "fetch game")
		}

		if err := game.CheckMove(&g, playerID, tokens); err != nil {
			return game.Move{}, game.Game{}, err
		}

		m, err := e.store.CommitMove(ctx, game.Move{
			GameID:       g.ID,
			PlayerID:     playerID,
			IndexInStory: g.CurrentMoveIndex,
			Words:        tokens,
			CreatedAt:    e.now().UTC(),
		})
		switch {
		case err == nil:
			log.Debug().Str("gameId", g.ID).Str("playerId", playerID).Int("index", m.IndexInStory).Msg("move committed")
			g.CurrentMoveIndex = m.IndexInStory + 1
			return m, g, nil
		case errors.Is(err, store.ErrStale):
			log.Debug().Str("gameId", g.ID).Int("index", g.CurrentMoveIndex).Int("attempt", attempt).Msg("stale snapshot, revalidating")
			continue
		case errors.Is(err, store.ErrNotFound):
			return game.Move{}, game.Game{}, game.NotFoundError(gameID)
		default:
			return game.Move{}, game.Game{}, e.storageFailure(err, gameID, "commit move")
		}
	}

	log.Info().Str("gameId", gameID).Str("playerId", playerID).Int("attempts", e.maxAttempts).Msg("move lost commit race")
	return game.Move{}, game.Game{}, game.ConflictError(game.CodeRaceLost, "game changed while submitting, try again")
}

// Game returns a game and its ordered ledger.
func (e *Engine) Game(ctx context.Context, gameID string) (game.Game, []game.Move, error) {
	g, err := e.store.GetGame(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return game.Game{}, nil, game.NotFoundError(gameID)
	}
	if err != nil {
		return game.Game{}, nil, e.storageFailure(err, gameID, "fetch game")
	}
	moves, err := e.store.ListMoves(ctx, gameID)
	if err != nil {
		return game.Game{}, nil, e.storageFailure(err, gameID, "list moves")
	}
	return g, moves, nil
}

// GamesForPlayer lists games the player owns or takes part in.
func (e *Engine) GamesForPlayer(ctx context.Context, playerID string) ([]game.Game, error) {
	gs, err := e.store.GamesForPlayer(ctx, playerID)
	if err != nil {
		return nil, e.storageFailure(err, "", "list games")
	}
	return gs, nil
}

func (e *Engine) storageFailure(err error, gameID, op string) error {
	log.Error().Err(err).Str("gameId", gameID).Str("op", op).Msg("storage failure")
	return game.StorageError(err)
}
