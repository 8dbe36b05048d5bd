package room

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/events"
	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
	"ctchen222/Tic-Tac-Toe-Banter/internal/player"
	"ctchen222/Tic-Tac-Toe-Banter/internal/repository"
	"ctchen222/Tic-Tac-Toe-Banter/internal/validator"
	"ctchen222/Tic-Tac-Toe-Banter/pkg/proto"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errMissingIndex = errors.New("move requires an index")

// HandleMessage handles a message from a player. It acts as a dispatcher.
func (r *Room) HandleMessage(ctx context.Context, p *player.Player, rawMessage []byte) {
	ctx, span := tracer.Start(ctx, "room.HandleMessage", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	r.mu.Lock()
	disconnected := p.Status == player.StatusDisconnected
	r.mu.Unlock()
	if disconnected {
		slog.WarnContext(ctx, "ignoring message from disconnected player", "player.id", p.ID)
		span.SetStatus(codes.Error, "Message from disconnected player")
		return
	}

	var message proto.ClientToServerMessage
	if err := json.Unmarshal(rawMessage, &message); err != nil {
		slog.ErrorContext(ctx, "error unmarshalling message", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error unmarshalling message")
		r.sendError(ctx, "malformed message")
		return
	}

	if err := validator.GetValidator().Struct(message); err != nil {
		slog.WarnContext(ctx, "invalid message from player", "player.id", p.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid message format")
		r.sendError(ctx, "invalid message")
		return
	}

	span.SetAttributes(attribute.String("message.type", message.Type))

	switch message.Type {
	case events.TypeMove:
		r.handleMove(ctx, p, &message)
	case events.TypeRestart:
		r.handleRestart(ctx, p)
	}
}

// handleMove applies the human's move.
func (r *Room) handleMove(ctx context.Context, p *player.Player, message *proto.ClientToServerMessage) {
	if message.Index == nil {
		r.sendError(ctx, errMissingIndex.Error())
		return
	}
	index := *message.Index

	ctx, moveSpan := tracer.Start(ctx, "room.handleMove", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", r.ID),
		attribute.Int("move.index", index),
	))
	defer moveSpan.End()

	state, err := r.opts.GameRepo.Update(ctx, r.ID, func(s *repository.GameState) error {
		return s.Game.Play(s.Game.Human, index)
	})
	if err != nil {
		slog.WarnContext(ctx, "invalid move from player", "player.id", p.ID, "move.index", index, "error", err)
		moveSpan.SetAttributes(attribute.Bool("move.valid", false))
		moveSpan.RecordError(err)
		moveSpan.SetStatus(codes.Error, "Invalid move")
		r.sendError(ctx, err.Error())
		return
	}
	moveSpan.SetAttributes(attribute.Bool("move.valid", true))

	r.afterMove(ctx, state, state.Game.Human, index)
}

// playComputerMove asks the move selector for the computer's reply.
func (r *Room) playComputerMove(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "room.playComputerMove", trace.WithAttributes(
		attribute.String("room.id", r.ID),
		attribute.String("bot.difficulty", string(r.Difficulty)),
	))
	defer span.End()

	state, err := r.opts.GameRepo.FindByID(ctx, r.ID)
	if err != nil {
		slog.ErrorContext(ctx, "playComputerMove could not find game state", "room.id", r.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Could not find game state")
		return
	}
	if !state.Game.ComputerToMove() {
		return
	}

	start := time.Now()
	res := r.opts.Calculator.CalculateNextMove(state.Game.Board, state.Game.Computer, r.Difficulty)
	elapsed := time.Since(start)
	if r.opts.Metrics != nil {
		r.opts.Metrics.MoveSearched(ctx, string(r.Difficulty), res.Nodes, float64(elapsed.Microseconds())/1000)
	}
	index := res.Index
	span.SetAttributes(attribute.Int("move.index", index), attribute.Int("search.nodes", res.Nodes))
	if index < 0 {
		return
	}

	state, err = r.opts.GameRepo.Update(ctx, r.ID, func(s *repository.GameState) error {
		if !s.Game.ComputerToMove() {
			return game.ErrNotYourTurn
		}
		return s.Game.Play(s.Game.Computer, index)
	})
	if err != nil {
		slog.ErrorContext(ctx, "computer move rejected", "room.id", r.ID, "move.index", index, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Computer move rejected")
		return
	}
	slog.DebugContext(ctx, "Computer moved", "room.id", r.ID, "move.index", index, "bot.elapsed", elapsed)

	r.afterMove(ctx, state, state.Game.Computer, index)
}

// afterMove publishes the new board, records a finished game and asks for banter.
func (r *Room) afterMove(ctx context.Context, state *repository.GameState, mark game.Mark, index int) {
	r.Broadcast(ctx, events.TypeUpdate, stateMessage(state))

	g := state.Game
	if g.Over() {
		result := "tie"
		if g.Outcome.HasWinner() {
			result = string(g.Outcome.Winner)
		}
		if r.opts.Metrics != nil {
			r.opts.Metrics.GameFinished(ctx, result)
		}
		r.emit(ctx, events.GameFinished, events.GameFinishedPayload{
			RoomID:   r.ID,
			PlayerID: r.PlayerID,
			Winner:   string(g.Outcome.Winner),
			Tied:     g.Outcome.Tied,
			Moves:    g.Moves,
		})
		slog.InfoContext(ctx, "Game finished", "room.id", r.ID, "game.result", result, "game.moves", g.Moves)
	}

	r.requestBanter(ctx, state, mark, index)
}

// handleRestart clears the board and the transcript. Banter still in flight
// for the old game is dropped when it arrives.
func (r *Room) handleRestart(ctx context.Context, p *player.Player) {
	ctx, span := tracer.Start(ctx, "room.handleRestart", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	state, err := r.opts.GameRepo.Update(ctx, r.ID, func(s *repository.GameState) error {
		s.Game.Restart()
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to restart game", "room.id", r.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to restart game")
		r.sendError(ctx, "could not restart game")
		return
	}

	r.mu.Lock()
	r.generation++
	r.chat = nil
	r.chatError = ""
	r.inFlight = 0
	r.mu.Unlock()

	slog.InfoContext(ctx, "Game restarted", "room.id", r.ID, "player.id", p.ID)
	r.Broadcast(ctx, events.TypeUpdate, stateMessage(state))
	r.sendChat(ctx)
	r.sendChatStatus(ctx, "")
	r.emit(ctx, events.GameRestarted, events.GameRestartedPayload{RoomID: r.ID})
}
