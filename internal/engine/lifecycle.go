package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/andthen/internal/game"
	"github.com/robalobadob/andthen/internal/store"
)

// Lifecycle creates games. It never touches CurrentMoveIndex after creation.
type Lifecycle struct {
	store store.Store
	// OwnerInRotation prepends the owner to PlayerIDs when they are not
	// already listed. When false the roster is used exactly as given.
	OwnerInRotation bool
	now             func() time.Time
}

// NewLifecycle constructs a Lifecycle over st.
func NewLifecycle(st store.Store, ownerInRotation bool) *Lifecycle {
	return &Lifecycle{store: st, OwnerInRotation: ownerInRotation, now: time.Now}
}

// Create validates the configuration and persists a new game at move 0.
func (l *Lifecycle) Create(ctx context.Context, ownerID string, playerIDs []string, wordsPerMove, totalMovesAllowed int) (game.Game, error) {
	roster := append([]string(nil), playerIDs...)
	if l.OwnerInRotation && ownerID != "" && len(roster) > 0 {
		g := game.Game{PlayerIDs: roster}
		if !g.HasPlayer(ownerID) {
			roster = append([]string{ownerID}, roster...)
		}
	}

	g := game.Game{
		OwnerID:           ownerID,
		PlayerIDs:         roster,
		WordsPerMove:      wordsPerMove,
		TotalMovesAllowed: totalMovesAllowed,
		CreatedAt:         l.now().UTC(),
	}
	if err := game.CheckConfig(&g); err != nil {
		return game.Game{}, err
	}

	created, err := l.store.CreateGame(ctx, g)
	if err != nil {
		log.Error().Err(err).Str("ownerId", ownerID).Msg("create game")
		return game.Game{}, game.StorageError(err)
	}
	log.Info().Str("gameId", created.ID).Str("ownerId", ownerID).Int("players", len(created.PlayerIDs)).Msg("game created")
	return created, nil
}
