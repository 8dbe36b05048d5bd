package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	fieldState    = "state"
	fieldPlayer   = "player_id"
	maxTxAttempts = 5
)

type redisGameRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewGameRepository creates a new Redis-based GameRepository. Live games
// expire ttl after their last write; a zero ttl keeps them forever.
func NewGameRepository(rdb *redis.Client, ttl time.Duration) GameRepository {
	return &redisGameRepository{rdb: rdb, ttl: ttl}
}

func gameKey(id string) string {
	return fmt.Sprintf("game:%s", id)
}

// Create stores a new game. It fails with ErrGameExists if the id is taken.
func (r *redisGameRepository) Create(ctx context.Context, state *GameState) error {
	ctx, span := tracer.Start(ctx, "GameRepository.Create", trace.WithAttributes(
		attribute.String("game.id", state.ID),
	))
	defer span.End()

	cp := state.Clone()
	cp.UpdatedAt = time.Now()
	stateJSON, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}

	key := gameKey(state.ID)
	created, err := r.rdb.HSetNX(ctx, key, fieldState, stateJSON).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create game in redis")
		return fmt.Errorf("failed to create game in redis: %w", err)
	}
	if !created {
		return ErrGameExists
	}

	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, key, fieldPlayer, state.PlayerID)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to finish game creation in redis: %w", err)
	}
	return nil
}

// FindByID retrieves the current game state from Redis.
func (r *redisGameRepository) FindByID(ctx context.Context, id string) (*GameState, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.FindByID", trace.WithAttributes(
		attribute.String("game.id", id),
	))
	defer span.End()

	return loadState(ctx, r.rdb, id)
}

// Update applies fn to the stored state under WATCH, retrying when another
// writer got there first.
func (r *redisGameRepository) Update(ctx context.Context, id string, fn UpdateFunc) (*GameState, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.Update", trace.WithAttributes(
		attribute.String("game.id", id),
	))
	defer span.End()

	key := gameKey(id)
	var updated *GameState

	txf := func(tx *redis.Tx) error {
		state, err := loadState(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}
		state.ID = id
		state.UpdatedAt = time.Now()

		stateJSON, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to marshal updated game state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldState, stateJSON)
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
			return nil
		})
		if err == nil {
			updated = state
		}
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to update game")
			return nil, err
		}
		return updated, nil
	}
	span.SetStatus(codes.Error, "Too many concurrent writers")
	return nil, fmt.Errorf("update of game %s lost %d races: %w", id, maxTxAttempts, redis.TxFailedErr)
}

// Delete removes a game.
func (r *redisGameRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "GameRepository.Delete", trace.WithAttributes(
		attribute.String("game.id", id),
	))
	defer span.End()

	return r.rdb.Del(ctx, gameKey(id)).Err()
}

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func loadState(ctx context.Context, c hashGetter, id string) (*GameState, error) {
	data, err := c.HGet(ctx, gameKey(id), fieldState).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game state from redis: %w", err)
	}

	var state GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game state: %w", err)
	}
	if state.Game == nil {
		return nil, fmt.Errorf("game %s has no board", id)
	}
	return &state, nil
}
