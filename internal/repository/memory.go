package repository

import (
	"context"
	"sync"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/player"
)

type memoryGameRepository struct {
	mu    sync.RWMutex
	games map[string]*GameState
	now   func() time.Time
}

// NewMemoryGameRepository creates a process-local GameRepository. States are
// copied on the way in and out.
func NewMemoryGameRepository() GameRepository {
	return &memoryGameRepository{
		games: make(map[string]*GameState),
		now:   time.Now,
	}
}

func (r *memoryGameRepository) Create(ctx context.Context, state *GameState) error {
	_, span := tracer.Start(ctx, "GameRepository.Create")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[state.ID]; ok {
		return ErrGameExists
	}
	cp := state.Clone()
	cp.UpdatedAt = r.now()
	r.games[state.ID] = cp
	return nil
}

func (r *memoryGameRepository) FindByID(ctx context.Context, id string) (*GameState, error) {
	_, span := tracer.Start(ctx, "GameRepository.FindByID")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return s.Clone(), nil
}

func (r *memoryGameRepository) Update(ctx context.Context, id string, fn UpdateFunc) (*GameState, error) {
	_, span := tracer.Start(ctx, "GameRepository.Update")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	next := s.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	next.UpdatedAt = r.now()
	r.games[id] = next
	return next.Clone(), nil
}

func (r *memoryGameRepository) Delete(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "GameRepository.Delete")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, id)
	return nil
}

type memoryPlayerRepository struct {
	mu      sync.RWMutex
	players map[string]playerRecord
}

type playerRecord struct {
	gameID string
	status player.PlayerStatus
}

// NewMemoryPlayerRepository creates a process-local PlayerRepository.
func NewMemoryPlayerRepository() PlayerRepository {
	return &memoryPlayerRepository{players: make(map[string]playerRecord)}
}

func (r *memoryPlayerRepository) FindForReconnection(ctx context.Context, id string) (string, player.PlayerStatus, error) {
	_, span := tracer.Start(ctx, "PlayerRepository.FindForReconnection")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()
	rec := r.players[id]
	return rec.gameID, rec.status, nil
}

func (r *memoryPlayerRepository) UpdateConnectionStatus(ctx context.Context, id string, status player.PlayerStatus) error {
	_, span := tracer.Start(ctx, "PlayerRepository.UpdateConnectionStatus")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.players[id]
	rec.status = status
	r.players[id] = rec
	return nil
}

func (r *memoryPlayerRepository) UpdateForGame(ctx context.Context, id, gameID string) error {
	_, span := tracer.Start(ctx, "PlayerRepository.UpdateForGame")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[id] = playerRecord{gameID: gameID, status: player.StatusConnected}
	return nil
}
