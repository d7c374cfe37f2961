package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/andthen/internal/game"
)

// createGameReq also accepts its fields nested under "game".
type createGameReq struct {
	PlayerIDs         []string       `json:"playerIds"`
	WordsPerMove      int            `json:"wordsPerMove"`
	TotalMovesAllowed int            `json:"totalMovesAllowed"`
	Game              *createGameReq `json:"game"`
}

// wordList accepts either ["a","b"] or "a b".
type wordList []string

func (wl *wordList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*wl = wordList{s}
		return nil
	}
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return err
	}
	*wl = ss
	return nil
}

type submitMoveReq struct {
	Words wordList `json:"words"`
}

// gameView adds derived turn state to a game.
type gameView struct {
	game.Game
	NextPlayerID string `json:"nextPlayerId,omitempty"`
	Finished     bool   `json:"finished"`
}

func viewOf(g game.Game) gameView {
	v := gameView{Game: g, Finished: g.Finished()}
	if !v.Finished {
		v.NextPlayerID = g.NextPlayerID()
	}
	return v
}

// mountGameRoutes registers /games (all require auth).
func (s *Server) mountGameRoutes() {
	s.r.Route("/games", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/", s.handleCreateGame)
		r.Get("/", s.handleListGames)
		r.Get("/{gameId}", s.handleGetGame)
		r.Post("/{gameId}/moves", s.handleSubmitMove)
	})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameReq
	if !decode(w, r, &req) {
		return
	}
	if req.Game != nil {
		req = *req.Game
	}
	me := currentAccount(r.Context())
	g, err := s.lifecycle.Create(r.Context(), me.ID, req.PlayerIDs, req.WordsPerMove, req.TotalMovesAllowed)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	success(w, http.StatusCreated, map[string]any{"game": viewOf(g)})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	gs, err := s.engine.GamesForPlayer(r.Context(), currentAccount(r.Context()).ID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	out := make([]gameView, 0, len(gs))
	for _, g := range gs {
		out = append(out, viewOf(g))
	}
	success(w, http.StatusOK, map[string]any{"games": out})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, moves, err := s.engine.Game(r.Context(), chi.URLParam(r, "gameId"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if moves == nil {
		moves = []game.Move{}
	}
	success(w, http.StatusOK, map[string]any{
		"game":  viewOf(g),
		"moves": moves,
		"story": game.Story(moves),
	})
}

func (s *Server) handleSubmitMove(w http.ResponseWriter, r *http.Request) {
	var req submitMoveReq
	if !decode(w, r, &req) {
		return
	}
	m, g, err := s.engine.SubmitMove(r.Context(), chi.URLParam(r, "gameId"), currentAccount(r.Context()).ID, req.Words)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	// g is the snapshot the move was committed against, already advanced;
	// nothing is read back after the commit.
	success(w, http.StatusCreated, map[string]any{
		"move": m,
		"game": viewOf(g),
	})
}
