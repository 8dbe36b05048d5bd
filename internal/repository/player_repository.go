package repository

import (
	"context"
	"fmt"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/player"

	"github.com/go-redis/redis/v8"
)

// PlayerRepository remembers which game a player is in so a new websocket
// can pick it up again.
type PlayerRepository interface {
	FindForReconnection(ctx context.Context, id string) (gameID string, status player.PlayerStatus, err error)
	UpdateConnectionStatus(ctx context.Context, id string, status player.PlayerStatus) error
	UpdateForGame(ctx context.Context, id, gameID string) error
}

type redisPlayerRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPlayerRepository creates a new Redis-based PlayerRepository.
func NewPlayerRepository(rdb *redis.Client, ttl time.Duration) PlayerRepository {
	return &redisPlayerRepository{rdb: rdb, ttl: ttl}
}

func playerKey(id string) string {
	return fmt.Sprintf("player:%s", id)
}

// FindForReconnection retrieves the game a player was last attached to.
func (r *redisPlayerRepository) FindForReconnection(ctx context.Context, id string) (string, player.PlayerStatus, error) {
	ctx, span := tracer.Start(ctx, "PlayerRepository.FindForReconnection")
	defer span.End()

	data, err := r.rdb.HGetAll(ctx, playerKey(id)).Result()
	if err != nil {
		return "", "", err
	}
	return data["game_id"], player.PlayerStatus(data["connection_status"]), nil
}

// UpdateConnectionStatus updates only the connection status of a player.
func (r *redisPlayerRepository) UpdateConnectionStatus(ctx context.Context, id string, status player.PlayerStatus) error {
	ctx, span := tracer.Start(ctx, "PlayerRepository.UpdateConnectionStatus")
	defer span.End()

	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, playerKey(id), "connection_status", string(status))
	if r.ttl > 0 {
		pipe.Expire(ctx, playerKey(id), r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// UpdateForGame attaches a player to a game.
func (r *redisPlayerRepository) UpdateForGame(ctx context.Context, id, gameID string) error {
	ctx, span := tracer.Start(ctx, "PlayerRepository.UpdateForGame")
	defer span.End()

	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, playerKey(id), "game_id", gameID)
	pipe.HSet(ctx, playerKey(id), "connection_status", string(player.StatusConnected))
	if r.ttl > 0 {
		pipe.Expire(ctx, playerKey(id), r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
