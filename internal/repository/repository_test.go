package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
	"ctchen222/Tic-Tac-Toe-Banter/internal/player"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newState(id string) *GameState {
	return &GameState{
		ID:         id,
		PlayerID:   "player-1",
		Difficulty: "hard",
		Game:       game.New(game.X, game.FirstHuman),
	}
}

// exerciseGameRepository runs the behaviour every GameRepository must share.
func exerciseGameRepository(t *testing.T, repo GameRepository) {
	ctx := context.Background()

	t.Run("Find missing game", func(t *testing.T) {
		_, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrGameNotFound)
	})

	t.Run("Create and find", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newState("g1")))
		got, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, "player-1", got.PlayerID)
		assert.Equal(t, game.X, got.Game.Turn)
		assert.Equal(t, game.Board{}, got.Game.Board)
		assert.False(t, got.UpdatedAt.IsZero())

		assert.ErrorIs(t, repo.Create(ctx, newState("g1")), ErrGameExists)
	})

	t.Run("Update applies a move", func(t *testing.T) {
		got, err := repo.Update(ctx, "g1", func(s *GameState) error {
			return s.Game.Play(game.X, 4)
		})
		require.NoError(t, err)
		assert.Equal(t, game.X, got.Game.Board[4])
		assert.Equal(t, game.O, got.Game.Turn)

		stored, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, got.Game.Board, stored.Game.Board)
		assert.Equal(t, 1, stored.Game.Moves)
	})

	t.Run("Failed update leaves state untouched", func(t *testing.T) {
		_, err := repo.Update(ctx, "g1", func(s *GameState) error {
			return s.Game.Play(game.X, 0)
		})
		assert.ErrorIs(t, err, game.ErrNotYourTurn)

		stored, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, game.None, stored.Game.Board[0])
		assert.Equal(t, game.O, stored.Game.Turn)
	})

	t.Run("Update missing game", func(t *testing.T) {
		_, err := repo.Update(ctx, "missing", func(*GameState) error { return nil })
		assert.ErrorIs(t, err, ErrGameNotFound)
	})

	t.Run("Returned state is a copy", func(t *testing.T) {
		got, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)
		got.Game.Board[8] = game.O

		stored, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, game.None, stored.Game.Board[8])
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "g1"))
		_, err := repo.FindByID(ctx, "g1")
		assert.ErrorIs(t, err, ErrGameNotFound)
		require.NoError(t, repo.Delete(ctx, "g1"))
	})
}

func exercisePlayerRepository(t *testing.T, repo PlayerRepository) {
	ctx := context.Background()

	gameID, status, err := repo.FindForReconnection(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, gameID)
	assert.Empty(t, status)

	require.NoError(t, repo.UpdateForGame(ctx, "p1", "g1"))
	gameID, status, err = repo.FindForReconnection(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "g1", gameID)
	assert.Equal(t, player.StatusConnected, status)

	require.NoError(t, repo.UpdateConnectionStatus(ctx, "p1", player.StatusDisconnected))
	gameID, status, err = repo.FindForReconnection(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "g1", gameID)
	assert.Equal(t, player.StatusDisconnected, status)
}

func TestMemoryGameRepository(t *testing.T) {
	exerciseGameRepository(t, NewMemoryGameRepository())
}

func TestMemoryPlayerRepository(t *testing.T) {
	exercisePlayerRepository(t, NewMemoryPlayerRepository())
}

func TestMemoryUpdateCallbackError(t *testing.T) {
	repo := NewMemoryGameRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newState("g")))

	boom := errors.New("boom")
	_, err := repo.Update(ctx, "g", func(s *GameState) error {
		s.Game.Board[0] = game.O
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := repo.FindByID(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, game.None, stored.Game.Board[0])
}

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("redis integration test needs docker")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestRedisRepositories(t *testing.T) {
	rdb := startRedis(t)

	t.Run("Games", func(t *testing.T) {
		exerciseGameRepository(t, NewGameRepository(rdb, time.Hour))
	})
	t.Run("Players", func(t *testing.T) {
		exercisePlayerRepository(t, NewPlayerRepository(rdb, time.Hour))
	})
	t.Run("TTL is applied", func(t *testing.T) {
		ctx := context.Background()
		repo := NewGameRepository(rdb, time.Minute)
		require.NoError(t, repo.Create(ctx, newState("ttl")))

		ttl, err := rdb.TTL(ctx, gameKey("ttl")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})
}
