// internal/game/types.go
//
// Core type definitions for the storytelling game.
// Defines:
//   - Game: configuration and turn counter of one shared story.
//   - Move: one committed contribution to the story.

package game

import (
	"strings"
	"time"
)

// Game holds the persisted configuration and progress of a single story.
type Game struct {
	ID                string    `json:"id"`                // Store-assigned identifier.
	OwnerID           string    `json:"ownerId"`           // Player who created the game.
	PlayerIDs         []string  `json:"playerIds"`         // Turn rotation order.
	WordsPerMove      int       `json:"wordsPerMove"`      // Max words per submission.
	TotalMovesAllowed int       `json:"totalMovesAllowed"` // Story ends after this many moves.
	CurrentMoveIndex  int       `json:"currentMoveIndex"`  // Number of committed moves.
	CreatedAt         time.Time `json:"createdAt"`
}

// Move is an append-only ledger entry. IndexInStory is the turn slot it filled.
type Move struct {
	GameID       string    `json:"gameId"`
	PlayerID     string    `json:"playerId"`
	IndexInStory int       `json:"indexInStory"`
	Words        []string  `json:"words"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NextPlayerID returns the participant whose move is currently due.
func (g *Game) NextPlayerID() string {
	if len(g.PlayerIDs) == 0 {
		return ""
	}
	return g.PlayerIDs[g.CurrentMoveIndex%len(g.PlayerIDs)]
}

// Finished reports whether the move limit has been reached.
func (g *Game) Finished() bool {
	return g.CurrentMoveIndex >= g.TotalMovesAllowed
}

// HasPlayer reports whether playerID takes part in the rotation.
func (g *Game) HasPlayer(playerID string) bool {
	for _, id := range g.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share the PlayerIDs backing array.
func (g *Game) Clone() Game {
	c := *g
	c.PlayerIDs = append([]string(nil), g.PlayerIDs...)
	return c
}

// Text joins the words of a move with single spaces.
func (m Move) Text() string { return strings.Join(m.Words, " ") }

// Story renders the ledger as one text, assuming moves are ordered by index.
func Story(moves []Move) string {
	parts := make([]string, 0, len(moves))
	for _, m := range moves {
		if t := m.Text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
