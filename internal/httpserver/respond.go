package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/andthen/internal/accounts"
	"github.com/robalobadob/andthen/internal/game"
)

// Envelope statuses. "fail" is a domain outcome the caller caused;
// "error" is a malformed request, an auth problem or a server fault.
const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

type envelope struct {
	Status  string   `json:"status"`
	Data    any      `json:"data,omitempty"`
	Code    string   `json:"code,omitempty"`
	Message string   `json:"message,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func success(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Status: statusSuccess, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, envelope{Status: statusError, Code: code, Message: msg})
}

var kindStatus = map[game.Kind]int{
	game.KindValidation: http.StatusBadRequest,
	game.KindNotFound:   http.StatusNotFound,
	game.KindForbidden:  http.StatusForbidden,
	game.KindConflict:   http.StatusConflict,
	game.KindGameOver:   http.StatusGone,
}

// writeFailure maps service errors onto the envelope.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var ge *game.Error
	switch {
	case errors.As(err, &ge) && ge.Kind != game.KindStorage:
		status, ok := kindStatus[ge.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, envelope{Status: statusFail, Code: ge.Code, Message: ge.Message, Fields: ge.Fields})
	case errors.Is(err, accounts.ErrUsernameTaken):
		writeJSON(w, http.StatusConflict, envelope{Status: statusFail, Code: "username_taken", Message: "username taken"})
	case errors.Is(err, accounts.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid username or password")
	case errors.Is(err, accounts.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid token")
	case ge != nil:
		// storage: cause already logged where it happened
		writeError(w, r, http.StatusInternalServerError, ge.Code, ge.Message)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("unhandled error")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// decode reads a JSON body; on failure it writes a bad_json error and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "request body must be valid JSON")
		return false
	}
	return true
}
