package engine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robalobadob/andthen/internal/game"
	"github.com/robalobadob/andthen/internal/store"
)

func newGame(t *testing.T, st store.Store, players []string, wordsPerMove, total int) game.Game {
	t.Helper()
	g, err := NewLifecycle(st, false).Create(context.Background(), players[0], players, wordsPerMove, total)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return g
}

func expectKind(t *testing.T, err error, want *game.Error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %s error, got %v", want.Kind, err)
	}
}

func TestSubmitMoveTurnOrder(t *testing.T) {
	st := store.NewMemoryStore()
	e := New(st)
	ctx := context.Background()
	g := newGame(t, st, []string{"A", "B", "C"}, 3, 9)

	for _, p := range []string{"B", "C"} {
		_, _, err := e.SubmitMove(ctx, g.ID, p, []string{"early"})
		expectKind(t, err, game.ErrConflict)
	}
	if _, _, err := e.SubmitMove(ctx, g.ID, "A", []string{"Once"}); err != nil {
		t.Fatalf("A move: %v", err)
	}
	_, _, err := e.SubmitMove(ctx, g.ID, "C", []string{"skip"})
	expectKind(t, err, game.ErrConflict)
	if _, _, err := e.SubmitMove(ctx, g.ID, "B", []string{"upon"}); err != nil {
		t.Fatalf("B move: %v", err)
	}
	if _, _, err := e.SubmitMove(ctx, g.ID, "C", []string{"a"}); err != nil {
		t.Fatalf("C move: %v", err)
	}
	if _, _, err := e.SubmitMove(ctx, g.ID, "A", []string{"time"}); err != nil {
		t.Fatalf("A second move: %v", err)
	}

	_, moves, err := e.Game(ctx, g.ID)
	if err != nil {
		t.Fatalf("read game: %v", err)
	}
	if got := game.Story(moves); got != "Once upon a time" {
		t.Fatalf("unexpected story %q", got)
	}
}

func TestSubmitMoveWordLimit(t *testing.T) {
	st := store.NewMemoryStore()
	e := New(st)
	ctx := context.Background()
	g := newGame(t, st, []string{"A"}, 3, 5)

	_, _, err := e.SubmitMove(ctx, g.ID, "A", []string{"one", "two", "three", "four"})
	expectKind(t, err, game.ErrValidation)

	// whitespace inside a token still counts as separate words
	_, _, err = e.SubmitMove(ctx, g.ID, "A", []string{"one two", "three four"})
	expectKind(t, err, game.ErrValidation)

	_, _, err = e.SubmitMove(ctx, g.ID, "A", []string{"  ", ""})
	expectKind(t, err, game.ErrValidation)

	m, _, err := e.SubmitMove(ctx, g.ID, "A", []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("three words: %v", err)
	}
	if len(m.Words) != 3 || m.IndexInStory != 0 {
		t.Fatalf("unexpected move %+v", m)
	}
}

func TestSubmitMoveCompletionBoundary(t *testing.T) {
	st := store.NewMemoryStore()
	e := New(st)
	ctx := context.Background()
	g := newGame(t, st, []string{"A"}, 1, 2)

	for i := 0; i < 2; i++ {
		if _, _, err := e.SubmitMove(ctx, g.ID, "A", []string{"w"}); err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
	}
	_, _, err := e.SubmitMove(ctx, g.ID, "A", []string{"w"})
	expectKind(t, err, game.ErrGameOver)

	got, _, err := e.Game(ctx, g.ID)
	if err != nil {
		t.Fatalf("read game: %v", err)
	}
	if got.CurrentMoveIndex != 2 {
		t.Fatalf("expected counter to stop at 2, got %d", got.CurrentMoveIndex)
	}
}

func TestSubmitMoveDensity(t *testing.T) {
	st := store.NewMemoryStore()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := New(st, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	players := []string{"A", "B"}
	g := newGame(t, st, players, 2, 20)

	const n = 11
	for i := 0; i < n; i++ {
		m, _, err := e.SubmitMove(ctx, g.ID, players[i%2], []string{"w"})
		if err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
		if m.IndexInStory != i || !m.CreatedAt.Equal(now) {
			t.Fatalf("unexpected move %+v", m)
		}
	}
	got, moves, err := e.Game(ctx, g.ID)
	if err != nil {
		t.Fatalf("read game: %v", err)
	}
	if got.CurrentMoveIndex != n || len(moves) != n {
		t.Fatalf("expected %d moves and counter, got %d/%d", n, len(moves), got.CurrentMoveIndex)
	}
	for i, m := range moves {
		if m.IndexInStory != i {
			t.Fatalf("gap or duplicate at %d: %d", i, m.IndexInStory)
		}
	}
}

func TestSubmitMoveNonParticipant(t *testing.T) {
	st := store.NewMemoryStore()
	e := New(st)
	ctx := context.Background()
	g := newGame(t, st, []string{"A", "B"}, 2, 4)

	for i := 0; i < 4; i++ {
		_, _, err := e.SubmitMove(ctx, g.ID, "Z", []string{"hi"})
		expectKind(t, err, game.ErrForbidden)
		if _, _, err := e.SubmitMove(ctx, g.ID, []string{"A", "B"}[i%2], []string{"w"}); err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
	}
	_, _, err := e.SubmitMove(ctx, g.ID, "Z", []string{"hi"})
	expectKind(t, err, game.ErrForbidden)
}

func TestSubmitMoveUnknownGame(t *testing.T) {
	e := New(store.NewMemoryStore())
	_, _, err := e.SubmitMove(context.Background(), "nope", "A", []string{"w"})
	expectKind(t, err, game.ErrNotFound)
	_, _, err = e.Game(context.Background(), "nope")
	expectKind(t, err, game.ErrNotFound)
}

// snapshotBarrier holds the first n GetGame calls until all n have read,
// so every caller validates against the same snapshot.
type snapshotBarrier struct {
	store.Store
	n       int
	mu      sync.Mutex
	seen    int
	release chan struct{}
}

func newSnapshotBarrier(st store.Store, n int) *snapshotBarrier {
	return &snapshotBarrier{Store: st, n: n, release: make(chan struct{})}
}

func (b *snapshotBarrier) GetGame(ctx context.Context, id string) (game.Game, error) {
	g, err := b.Store.GetGame(ctx, id)
	b.mu.Lock()
	if b.seen >= b.n {
		b.mu.Unlock()
		return g, err
	}
	b.seen++
	if b.seen == b.n {
		close(b.release)
	}
	b.mu.Unlock()
	<-b.release
	return g, err
}

func TestSubmitMoveRaceSameSlot(t *testing.T) {
	mem := store.NewMemoryStore()
	g := newGame(t, mem, []string{"A", "B"}, 3, 10)
	e := New(newSnapshotBarrier(mem, 2))
	ctx := context.Background()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = e.SubmitMove(ctx, g.ID, "A", []string{"double", "click"})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		expectKind(t, err, game.ErrConflict)
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d (%v)", wins, errs)
	}
	moves, err := mem.ListMoves(ctx, g.ID)
	if err != nil {
		t.Fatalf("list moves: %v", err)
	}
	if len(moves) != 1 || moves[0].IndexInStory != 0 {
		t.Fatalf("expected single move at index 0, got %+v", moves)
	}
}

func TestSubmitMoveRaceRetriesUntilValid(t *testing.T) {
	mem := store.NewMemoryStore()
	g := newGame(t, mem, []string{"solo"}, 1, 50)
	const n = 3
	e := New(newSnapshotBarrier(mem, n), WithMaxAttempts(n))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		indexes []int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, _, err := e.SubmitMove(ctx, g.ID, "solo", []string{"w"})
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			mu.Lock()
			indexes = append(indexes, m.IndexInStory)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(indexes)
	for i, idx := range indexes {
		if idx != i {
			t.Fatalf("expected dense indexes, got %v", indexes)
		}
	}
	got, err := mem.GetGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if got.CurrentMoveIndex != len(indexes) {
		t.Fatalf("counter %d diverged from %d committed moves", got.CurrentMoveIndex, len(indexes))
	}
}

// alwaysStale loses every commit race.
type alwaysStale struct {
	store.Store
	commits int
}

func (s *alwaysStale) CommitMove(ctx context.Context, m game.Move) (game.Move, error) {
	s.commits++
	return game.Move{}, store.ErrStale
}

func TestSubmitMoveBoundedRetry(t *testing.T) {
	mem := store.NewMemoryStore()
	g := newGame(t, mem, []string{"A"}, 1, 5)
	st := &alwaysStale{Store: mem}
	e := New(st)

	_, _, err := e.SubmitMove(context.Background(), g.ID, "A", []string{"w"})
	if !errors.Is(err, &game.Error{Kind: game.KindConflict, Code: game.CodeRaceLost}) {
		t.Fatalf("expected race_lost conflict, got %v", err)
	}
	if st.commits != DefaultMaxAttempts {
		t.Fatalf("expected %d commit attempts, got %d", DefaultMaxAttempts, st.commits)
	}
}

// brokenCommit fails every commit with a driver error.
type brokenCommit struct{ store.Store }

func (brokenCommit) CommitMove(ctx context.Context, m game.Move) (game.Move, error) {
	return game.Move{}, errors.New("pq: connection reset by peer")
}

func TestSubmitMoveStorageErrorHidesCause(t *testing.T) {
	mem := store.NewMemoryStore()
	g := newGame(t, mem, []string{"A"}, 1, 5)
	e := New(brokenCommit{mem})

	_, _, err := e.SubmitMove(context.Background(), g.ID, "A", []string{"w"})
	expectKind(t, err, game.ErrStorage)
	if strings.Contains(err.Error(), "pq:") {
		t.Fatalf("storage internals leaked: %q", err.Error())
	}
	if errors.Unwrap(err) == nil {
		t.Fatalf("expected cause to be kept for logging")
	}
	moves, _ := mem.ListMoves(context.Background(), g.ID)
	if len(moves) != 0 {
		t.Fatalf("expected no moves after failed commit")
	}
}

func TestGamesForPlayer(t *testing.T) {
	st := store.NewMemoryStore()
	e := New(st)
	newGame(t, st, []string{"A", "B"}, 1, 1)
	newGame(t, st, []string{"C"}, 1, 1)

	gs, err := e.GamesForPlayer(context.Background(), "B")
	if err != nil {
		t.Fatalf("games for B: %v", err)
	}
	if len(gs) != 1 {
		t.Fatalf("expected 1 game, got %d", len(gs))
	}
}

// readsFailAfterCommit stops serving reads once a move has been committed.
type readsFailAfterCommit struct {
	store.Store
	committed atomic.Bool
}

func (s *readsFailAfterCommit) GetGame(ctx context.Context, id string) (game.Game, error) {
	if s.committed.Load() {
		return game.Game{}, errors.New("replica lagging")
	}
	return s.Store.GetGame(ctx, id)
}

func (s *readsFailAfterCommit) CommitMove(ctx context.Context, m game.Move) (game.Move, error) {
	out, err := s.Store.CommitMove(ctx, m)
	if err == nil {
		s.committed.Store(true)
	}
	return out, err
}

func TestSubmitMoveReturnsAdvancedGame(t *testing.T) {
	mem := store.NewMemoryStore()
	g := newGame(t, mem, []string{"A", "B"}, 2, 4)
	e := New(&readsFailAfterCommit{Store: mem})

	m, advanced, err := e.SubmitMove(context.Background(), g.ID, "A", []string{"Once", "upon"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if m.IndexInStory != 0 || advanced.CurrentMoveIndex != 1 || advanced.NextPlayerID() != "B" {
		t.Fatalf("unexpected result move=%+v game=%+v", m, advanced)
	}
	if advanced.ID != g.ID || advanced.TotalMovesAllowed != 4 {
		t.Fatalf("returned game lost its configuration: %+v", advanced)
	}
}

func TestSubmitMoveCountsWordsInsideTokens(t *testing.T) {
	st := store.NewMemoryStore()
	e := New(st)
	g := newGame(t, st, []string{"A"}, 1, 3)

	_, _, err := e.SubmitMove(context.Background(), g.ID, "A", []string{"New York"})
	if !errors.Is(err, &game.Error{Kind: game.KindValidation, Code: game.CodeTooManyWords}) {
		t.Fatalf("expected too_many_words for a two-word token, got %v", err)
	}
	m, _, err := e.SubmitMove(context.Background(), g.ID, "A", []string{" York "})
	if err != nil {
		t.Fatalf("single word: %v", err)
	}
	if len(m.Words) != 1 || m.Words[0] != "York" {
		t.Fatalf("unexpected words %q", m.Words)
	}
}
