// internal/game/rules.go
//
// Pure validation rules for the storytelling game.
// Responsibilities:
//   - Check a proposed move against a game snapshot (membership, turn,
//     completion, word count), in that order.
//   - Check the configuration of a game before it is created.
//
// Nothing here touches storage; callers decide what to do with a snapshot
// that a concurrent commit may have superseded.
package game

import "fmt"

// CheckMove validates a submission of already-normalized words by playerID
// against snapshot g. It returns nil when the move may be committed at
// g.CurrentMoveIndex.
func CheckMove(g *Game, playerID string, words []string) error {
	if !g.HasPlayer(playerID) {
		return ForbiddenError()
	}
	if g.NextPlayerID() != playerID {
		return ConflictError(CodeNotYourTurn, "not this player's turn")
	}
	if g.Finished() {
		return GameOverError()
	}
	if len(words) == 0 {
		return ValidationError(CodeNoWords, "no submitted words", "words")
	}
	if len(words) > g.WordsPerMove {
		return ValidationError(CodeTooManyWords,
			fmt.Sprintf("too many words: %d submitted, %d allowed", len(words), g.WordsPerMove), "words")
	}
	return nil
}

// CheckConfig validates the immutable configuration of a new game.
// Zero values count as missing, negatives as invalid.
func CheckConfig(g *Game) error {
	var missing, invalid []string
	if g.OwnerID == "" {
		missing = append(missing, "ownerId")
	}
	if len(g.PlayerIDs) == 0 {
		missing = append(missing, "playerIds")
	} else {
		seen := make(map[string]struct{}, len(g.PlayerIDs))
		for _, id := range g.PlayerIDs {
			if _, dup := seen[id]; id == "" || dup {
				invalid = append(invalid, "playerIds")
				break
			}
			seen[id] = struct{}{}
		}
	}
	switch {
	case g.WordsPerMove == 0:
		missing = append(missing, "wordsPerMove")
	case g.WordsPerMove < 0:
		invalid = append(invalid, "wordsPerMove")
	}
	switch {
	case g.TotalMovesAllowed == 0:
		missing = append(missing, "totalMovesAllowed")
	case g.TotalMovesAllowed < 0:
		invalid = append(invalid, "totalMovesAllowed")
	}

	if len(missing) > 0 {
		return ValidationError(CodeMissingFields, "missing create game required fields", append(missing, invalid...)...)
	}
	if len(invalid) > 0 {
		return ValidationError(CodeInvalidField, "invalid create game fields", invalid...)
	}
	return nil
}
