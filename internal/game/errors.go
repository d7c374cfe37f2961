package game

import "fmt"

// Kind classifies a failure for the transport layer.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindGameOver   Kind = "game_over"
	KindStorage    Kind = "storage"
)

// Machine-readable codes carried by Error.
const (
	CodeMissingFields   = "missing_fields"
	CodeInvalidField    = "invalid_field"
	CodeNoWords         = "no_words"
	CodeTooManyWords    = "too_many_words"
	CodeGameNotFound    = "game_not_found"
	CodePlayerNotInGame = "player_not_in_game"
	CodeNotYourTurn     = "not_your_turn"
	CodeRaceLost        = "race_lost"
	CodeGameOver        = "game_over"
	CodeStorage         = "storage_error"
)

// Error is the domain error returned by the engine and lifecycle manager.
// Err holds an underlying cause that is logged but never shown to callers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, game.ErrConflict) works for any code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Sentinels for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrGameOver   = &Error{Kind: KindGameOver}
	ErrStorage    = &Error{Kind: KindStorage}
)

func ValidationError(code, msg string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg, Fields: fields}
}

func NotFoundError(gameID string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeGameNotFound, Message: fmt.Sprintf("no such game %s", gameID)}
}

func ForbiddenError() *Error {
	return &Error{Kind: KindForbidden, Code: CodePlayerNotInGame, Message: "player not in game"}
}

func ConflictError(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func GameOverError() *Error {
	return &Error{Kind: KindGameOver, Code: CodeGameOver, Message: "the game is over"}
}

// StorageError hides cause behind a generic message.
func StorageError(cause error) *Error {
	return &Error{Kind: KindStorage, Code: CodeStorage, Message: "storage failure", Err: cause}
}
