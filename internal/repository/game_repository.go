package repository

import (
	"context"
	"errors"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/game"

	"go.opentelemetry.io/otel"
)

//go:generate mockgen -source=game_repository.go -destination=mocks/mock_game_repository.go -package=mocks

var tracer = otel.Tracer("repository")

var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameExists   = errors.New("game already exists")
)

// GameState is what the store keeps for one live game.
type GameState struct {
	ID         string     `json:"id"`
	PlayerID   string     `json:"player_id"`
	Difficulty string     `json:"difficulty"`
	Game       *game.Game `json:"game"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Clone returns a deep copy.
func (s *GameState) Clone() *GameState {
	cp := *s
	if s.Game != nil {
		cp.Game = s.Game.Clone()
	}
	return &cp
}

// UpdateFunc mutates a state inside a repository transaction. Returning an
// error aborts the update and leaves the stored state untouched.
type UpdateFunc func(state *GameState) error

// GameRepository defines the interface for game data operations.
type GameRepository interface {
	Create(ctx context.Context, state *GameState) error
	FindByID(ctx context.Context, id string) (*GameState, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (*GameState, error)
	Delete(ctx context.Context, id string) error
}
