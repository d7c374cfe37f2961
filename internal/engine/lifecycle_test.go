package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/robalobadob/andthen/internal/game"
	"github.com/robalobadob/andthen/internal/store"
)

func TestLifecycleCreate(t *testing.T) {
	st := store.NewMemoryStore()
	g, err := NewLifecycle(st, false).Create(context.Background(), "owner", []string{"p1", "p2"}, 4, 12)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.ID == "" || g.CurrentMoveIndex != 0 || g.CreatedAt.IsZero() {
		t.Fatalf("unexpected game %+v", g)
	}
	if len(g.PlayerIDs) != 2 || g.PlayerIDs[0] != "p1" {
		t.Fatalf("roster must be used verbatim when owner is not in rotation, got %v", g.PlayerIDs)
	}

	stored, err := st.GetGame(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.WordsPerMove != 4 || stored.TotalMovesAllowed != 12 || stored.OwnerID != "owner" {
		t.Fatalf("unexpected stored game %+v", stored)
	}
}

func TestLifecycleOwnerInRotation(t *testing.T) {
	l := NewLifecycle(store.NewMemoryStore(), true)
	ctx := context.Background()

	g, err := l.Create(ctx, "owner", []string{"p1"}, 1, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(g.PlayerIDs) != 2 || g.PlayerIDs[0] != "owner" || g.PlayerIDs[1] != "p1" {
		t.Fatalf("expected owner to take the first turn, got %v", g.PlayerIDs)
	}

	g, err = l.Create(ctx, "owner", []string{"p1", "owner"}, 1, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(g.PlayerIDs) != 2 || g.PlayerIDs[1] != "owner" {
		t.Fatalf("listed owner must keep its position, got %v", g.PlayerIDs)
	}
}

func TestLifecycleValidation(t *testing.T) {
	l := NewLifecycle(store.NewMemoryStore(), true)
	ctx := context.Background()
	cases := []struct {
		name    string
		owner   string
		players []string
		words   int
		total   int
	}{
		{"missing owner", "", []string{"p"}, 1, 1},
		{"no players", "o", nil, 1, 1},
		{"zero words", "o", []string{"p"}, 0, 1},
		{"negative total", "o", []string{"p"}, 1, -3},
	}
	for _, tc := range cases {
		_, err := l.Create(ctx, tc.owner, tc.players, tc.words, tc.total)
		if !errors.Is(err, game.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

type failingCreate struct{ store.Store }

func (failingCreate) CreateGame(ctx context.Context, g game.Game) (game.Game, error) {
	return game.Game{}, errors.New("disk full")
}

func TestLifecycleStorageError(t *testing.T) {
	l := NewLifecycle(failingCreate{store.NewMemoryStore()}, false)
	_, err := l.Create(context.Background(), "o", []string{"p"}, 1, 1)
	if !errors.Is(err, game.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
