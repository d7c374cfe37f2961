// internal/store/redis.go
//
// Redis implementation of Backend.
//
// Keys:
//   game:<id>                 JSON game record (holds the move counter)
//   game:<id>:moves           list of JSON moves, position == IndexInStory
//   player:<id>:games         set of game ids the player owns or plays in
//   account:<id>              JSON account
//   account:username:<lower>  account id (SETNX for uniqueness)
//
// Commits use optimistic concurrency: WATCH on the game key, check the
// counter, then MULTI/EXEC the counter bump and ledger append together.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/robalobadob/andthen/internal/game"
)

// Redis is a Backend over a go-redis client.
type Redis struct {
	rdb *redis.Client
}

// OpenRedis parses redisURL (redis://host:port/db) and pings the server.
func OpenRedis(redisURL string) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func gameKey(id string) string        { return "game:" + id }
func movesKey(id string) string       { return "game:" + id + ":moves" }
func playerGamesKey(id string) string { return "player:" + id + ":games" }
func accountKey(id string) string     { return "account:" + id }
func usernameKey(name string) string {
	return "account:username:" + strings.ToLower(strings.TrimSpace(name))
}

func (r *Redis) CreateGame(ctx context.Context, g game.Game) (game.Game, error) {
	g = g.Clone()
	g.ID = uuid.NewString()
	g.CurrentMoveIndex = 0
	raw, err := json.Marshal(g)
	if err != nil {
		return game.Game{}, err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, gameKey(g.ID), raw, 0)
		p.SAdd(ctx, playerGamesKey(g.OwnerID), g.ID)
		for _, pid := range g.PlayerIDs {
			p.SAdd(ctx, playerGamesKey(pid), g.ID)
		}
		return nil
	})
	if err != nil {
		return game.Game{}, fmt.Errorf("create game: %w", err)
	}
	return g, nil
}

func (r *Redis) GetGame(ctx context.Context, id string) (game.Game, error) {
	return loadGame(ctx, r.rdb, id)
}

// getter is satisfied by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// loadGame reads a game through the client or inside a WATCH transaction.
func loadGame(ctx context.Context, c getter, id string) (game.Game, error) {
	raw, err := c.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return game.Game{}, ErrNotFound
	}
	if err != nil {
		return game.Game{}, fmt.Errorf("get game: %w", err)
	}
	var g game.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return game.Game{}, fmt.Errorf("decode game: %w", err)
	}
	return g, nil
}

func (r *Redis) ListMoves(ctx context.Context, gameID string) ([]game.Move, error) {
	if _, err := r.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	raws, err := r.rdb.LRange(ctx, movesKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	out := make([]game.Move, 0, len(raws))
	for _, raw := range raws {
		var m game.Move
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("decode move: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Redis) GamesForPlayer(ctx context.Context, playerID string) ([]game.Game, error) {
	ids, err := r.rdb.SMembers(ctx, playerGamesKey(playerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("games for player: %w", err)
	}
	out := make([]game.Game, 0, len(ids))
	for _, id := range ids {
		g, err := r.GetGame(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *Redis) CommitMove(ctx context.Context, m game.Move) (game.Move, error) {
	mraw, err := json.Marshal(m)
	if err != nil {
		return game.Move{}, err
	}
	gk := gameKey(m.GameID)
	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := loadGame(ctx, tx, m.GameID)
		if err != nil {
			return err
		}
		if cur.CurrentMoveIndex != m.IndexInStory {
			return ErrStale
		}
		cur.CurrentMoveIndex++
		graw, err := json.Marshal(cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, gk, graw, 0)
			p.RPush(ctx, movesKey(m.GameID), mraw)
			return nil
		})
		return err
	}, gk)
	if errors.Is(err, redis.TxFailedErr) {
		return game.Move{}, ErrStale
	}
	if err != nil {
		return game.Move{}, err
	}
	return m, nil
}

func (r *Redis) CreateAccount(ctx context.Context, a Account) (Account, error) {
	a.ID = uuid.NewString()
	raw, err := json.Marshal(a)
	if err != nil {
		return Account{}, err
	}
	ok, err := r.rdb.SetNX(ctx, usernameKey(a.Username), a.ID, 0).Result()
	if err != nil {
		return Account{}, fmt.Errorf("reserve username: %w", err)
	}
	if !ok {
		return Account{}, ErrDuplicate
	}
	if err := r.rdb.Set(ctx, accountKey(a.ID), raw, 0).Err(); err != nil {
		_ = r.rdb.Del(ctx, usernameKey(a.Username)).Err()
		return Account{}, fmt.Errorf("save account: %w", err)
	}
	return a, nil
}

func (r *Redis) AccountByUsername(ctx context.Context, username string) (Account, error) {
	id, err := r.rdb.Get(ctx, usernameKey(username)).Result()
	if err == redis.Nil {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get username: %w", err)
	}
	return r.AccountByID(ctx, id)
}

func (r *Redis) AccountByID(ctx context.Context, id string) (Account, error) {
	raw, err := r.rdb.Get(ctx, accountKey(id)).Bytes()
	if err == redis.Nil {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	var a Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return Account{}, fmt.Errorf("decode account: %w", err)
	}
	return a, nil
}
