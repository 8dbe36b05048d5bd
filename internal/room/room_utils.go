package room

import (
	"context"
	"errors"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Banter/internal/banter"
	"ctchen222/Tic-Tac-Toe-Banter/internal/events"
	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
	"ctchen222/Tic-Tac-Toe-Banter/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-Banter/internal/repository"
	"ctchen222/Tic-Tac-Toe-Banter/pkg/proto"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const genericBanterError = "Chatbot failed to respond."

// IncomingMoves returns the channel for incoming player moves.
func (r *Room) IncomingMoves() chan<- *types.PlayerMove {
	return r.incoming
}

// Transcript returns a copy of the chat transcript, newest first.
func (r *Room) Transcript() []proto.ChatEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]proto.ChatEntry(nil), r.chat...)
}

func stateMessage(state *repository.GameState) *proto.ServerToClientMessage {
	g := state.Game
	msg := &proto.ServerToClientMessage{
		Type:     events.TypeUpdate,
		GameID:   state.ID,
		Board:    g.Board.Cells(),
		Tied:     g.Outcome.Tied,
		Thinking: g.ComputerToMove(),
	}
	if !g.Over() {
		msg.Next = g.Turn
	}
	if g.Outcome.HasWinner() {
		line := g.Outcome.Line
		msg.Winner = g.Outcome.Winner
		msg.Line = line[:]
	}
	return msg
}

// sendInitialRoomState sends the assignment, board, transcript and banter
// status, in that order.
func (r *Room) sendInitialRoomState(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "room.sendInitialRoomState", trace.WithAttributes(
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	state, err := r.opts.GameRepo.FindByID(ctx, r.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Could not get initial game state", "room.id", r.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Could not get initial game state")
		r.sendError(ctx, "game not available")
		return
	}

	r.Broadcast(ctx, events.TypeAssignment, &proto.PlayerAssignmentMessage{
		Type:       events.TypeAssignment,
		PlayerID:   r.PlayerID,
		GameID:     r.ID,
		Mark:       state.Game.Human,
		Difficulty: string(r.Difficulty),
	})
	r.Broadcast(ctx, events.TypeUpdate, stateMessage(state))
	r.sendChat(ctx)
	r.sendChatStatus(ctx, "")
}

func (r *Room) sendError(ctx context.Context, reason string) {
	r.Broadcast(ctx, events.TypeError, &proto.ServerToClientMessage{Type: events.TypeError, Reason: reason})
}

func (r *Room) sendChat(ctx context.Context) {
	r.Broadcast(ctx, events.TypeChat, &proto.ChatMessage{Type: events.TypeChat, Messages: r.Transcript()})
}

func (r *Room) sendChatStatus(ctx context.Context, nudge string) {
	r.mu.Lock()
	msg := &proto.ChatStatusMessage{
		Type:    events.TypeChatStatus,
		Enabled: r.opts.Banter != nil,
		Loading: r.inFlight > 0,
		Error:   r.chatError,
		Nudge:   nudge,
	}
	r.mu.Unlock()
	r.Broadcast(ctx, events.TypeChatStatus, msg)
}

func (r *Room) nudge(ctx context.Context) {
	slog.InfoContext(ctx, "Player is idle, nudging", "room.id", r.ID, "player.id", r.PlayerID)
	r.sendChatStatus(ctx, nudgeText)
}

// addChat prepends an entry and trims the transcript to maxTranscript.
// The caller holds r.mu.
func (r *Room) addChat(content string) {
	entry := proto.ChatEntry{ID: uuid.NewString(), Role: events.RoleAssistant, Content: content}
	r.chat = append([]proto.ChatEntry{entry}, r.chat...)
	if len(r.chat) > maxTranscript {
		r.chat = r.chat[:maxTranscript]
	}
}

// requestBanter asks for a line about the move without blocking the game.
// Whatever happens, the board and turn are left alone.
func (r *Room) requestBanter(ctx context.Context, state *repository.GameState, mark game.Mark, index int) {
	if r.opts.Banter == nil {
		return
	}

	r.mu.Lock()
	gen := r.generation
	r.inFlight++
	r.chatError = ""
	r.mu.Unlock()
	r.sendChatStatus(ctx, "")

	req := banter.Request{Board: state.Game.Board, Player: mark, Index: index, Outcome: state.Game.Outcome}
	bctx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		bctx, span := tracer.Start(bctx, "room.requestBanter", trace.WithAttributes(
			attribute.String("room.id", r.ID),
			attribute.String("move.player", string(mark)),
			attribute.Int("move.index", index),
		))
		defer span.End()

		line, err := r.opts.Banter.Generate(bctx, req)

		r.mu.Lock()
		if gen != r.generation {
			r.mu.Unlock()
			span.SetAttributes(attribute.Bool("banter.stale", true))
			return
		}
		r.inFlight--
		result := "ok"
		if err != nil {
			result = banter.KindOf(err).String()
			r.chatError = banterErrorMessage(err)
		} else {
			r.addChat(line)
		}
		r.mu.Unlock()

		if r.opts.Metrics != nil {
			r.opts.Metrics.BanterResult(bctx, result)
		}
		if err != nil {
			slog.WarnContext(bctx, "banter unavailable", "room.id", r.ID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		} else {
			r.sendChat(bctx)
		}
		r.sendChatStatus(bctx, "")
	}()
}

func banterErrorMessage(err error) string {
	var be *banter.Error
	if errors.As(err, &be) {
		return be.Message()
	}
	return genericBanterError
}
