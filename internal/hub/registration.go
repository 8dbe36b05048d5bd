package hub

import (
	"context"
	"errors"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Banter/internal/bot"
	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
	"ctchen222/Tic-Tac-Toe-Banter/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-Banter/internal/player"
	"ctchen222/Tic-Tac-Toe-Banter/internal/repository"
	"ctchen222/Tic-Tac-Toe-Banter/internal/room"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// handleRegistration attaches the player to the game they ask for, to the
// game they were last playing, or to a new one.
func (h *Hub) handleRegistration(req *types.RegistrationRequest) {
	// The websocket handler returns before registration finishes.
	ctx := context.Background()
	if req.Ctx != nil {
		ctx = context.WithoutCancel(req.Ctx)
	}
	ctx, span := tracer.Start(ctx, "hub.handleRegistration", trace.WithAttributes(
		attribute.String("player.id", req.Player.ID),
		attribute.String("game.id", req.GameID),
	))
	defer span.End()

	gameID := req.GameID
	if gameID == "" && h.opts.PlayerRepo != nil {
		lastGame, _, err := h.opts.PlayerRepo.FindForReconnection(ctx, req.Player.ID)
		if err != nil {
			slog.WarnContext(ctx, "Could not look up player's last game", "player.id", req.Player.ID, "error", err)
		}
		gameID = lastGame
	}

	if gameID != "" && h.handleReconnectionRegistration(ctx, req.Player, gameID) {
		span.SetAttributes(attribute.Bool("game.reconnected", true))
		return
	}
	h.registerNewGame(ctx, req)
}

// handleReconnectionRegistration reports whether p was attached to gameID.
func (h *Hub) handleReconnectionRegistration(ctx context.Context, p *player.Player, gameID string) bool {
	ctx, span := tracer.Start(ctx, "hub.handleReconnectionRegistration", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", gameID),
	))
	defer span.End()

	if existingRoom, ok := h.localRooms[gameID]; ok {
		if existingRoom.PlayerID != p.ID {
			slog.WarnContext(ctx, "Player tried to join someone else's game", "player.id", p.ID, "room.id", gameID)
			return false
		}
		existingRoom.Attach(ctx, p)
		slog.InfoContext(ctx, "Reconnected player added back to existing local room", "player.id", p.ID, "room.id", gameID)
		return true
	}

	state, err := h.opts.GameRepo.FindByID(ctx, gameID)
	if err != nil {
		if !errors.Is(err, repository.ErrGameNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Could not load game for reconnection")
		}
		slog.InfoContext(ctx, "Game not available for reconnection", "player.id", p.ID, "room.id", gameID, "error", err)
		return false
	}
	if state.PlayerID != p.ID {
		slog.WarnContext(ctx, "Player tried to join someone else's game", "player.id", p.ID, "room.id", gameID)
		return false
	}

	slog.InfoContext(ctx, "Creating new local room handler for reconnected player", "player.id", p.ID, "room.id", gameID)
	r := h.startRoom(state.ID, p.ID, bot.ParseDifficulty(state.Difficulty))
	r.Attach(ctx, p)
	h.announceAttach(ctx, gameID, p.ID)
	return true
}

func (h *Hub) registerNewGame(ctx context.Context, req *types.RegistrationRequest) {
	difficulty := h.opts.Difficulty
	if req.Difficulty != "" {
		difficulty = bot.ParseDifficulty(req.Difficulty)
	}

	ctx, span := tracer.Start(ctx, "hub.registerNewGame", trace.WithAttributes(
		attribute.String("player.id", req.Player.ID),
		attribute.String("bot.difficulty", string(difficulty)),
	))
	defer span.End()

	gameID := uuid.NewString()
	state := &repository.GameState{
		ID:         gameID,
		PlayerID:   req.Player.ID,
		Difficulty: string(difficulty),
		Game:       game.New(game.X, h.opts.FirstPlayer),
	}
	if err := h.opts.GameRepo.Create(ctx, state); err != nil {
		slog.ErrorContext(ctx, "Failed to create game", "room.id", gameID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create game")
		req.Player.Conn.Close()
		return
	}

	r := h.startRoom(gameID, req.Player.ID, difficulty)
	r.Attach(ctx, req.Player)
	slog.InfoContext(ctx, "Game created", "room.id", gameID, "player.id", req.Player.ID, "bot.difficulty", string(difficulty))
}

func (h *Hub) startRoom(gameID, playerID string, difficulty bot.Difficulty) *room.Room {
	r := room.NewRoom(gameID, playerID, difficulty, h.opts.RoomOptions)
	h.localRooms[gameID] = r
	delete(h.handedOff, gameID)
	r.Start(h.runCtx, h.closed)
	return r
}
