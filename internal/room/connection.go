package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/events"
	"ctchen222/Tic-Tac-Toe-Banter/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-Banter/internal/player"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Broadcast sends a message to the room's player if they are connected.
func (r *Room) Broadcast(ctx context.Context, messageType string, message any) {
	_, span := tracer.Start(ctx, "room.Broadcast", trace.WithAttributes(
		attribute.String("room.id", r.ID),
		attribute.String("message.type", messageType),
	))
	defer span.End()

	data, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error marshalling message")
		return
	}

	r.mu.Lock()
	p := r.player
	connected := p != nil && p.Status == player.StatusConnected
	r.mu.Unlock()
	if !connected {
		return
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := p.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.ErrorContext(ctx, "error writing message to player", "player.id", p.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error writing message to player")
	}
}

// Attach makes p the room's connection, replacing any earlier one, sends the
// full room state and starts reading from it.
func (r *Room) Attach(ctx context.Context, p *player.Player) {
	ctx, span := tracer.Start(ctx, "room.Attach", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	r.mu.Lock()
	previous := r.player
	p.Status = player.StatusConnected
	p.LastSeen = time.Now()
	r.player = p
	r.mu.Unlock()

	if previous != nil && previous != p {
		previous.Conn.Close()
		r.emit(ctx, events.PlayerReconnected, events.PlayerReconnectedPayload{RoomID: r.ID, PlayerID: p.ID})
	}

	if r.opts.PlayerRepo != nil {
		if err := r.opts.PlayerRepo.UpdateForGame(ctx, p.ID, r.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to record player's game", "player.id", p.ID, "room.id", r.ID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to record player's game")
		}
	}

	r.sendInitialRoomState(ctx)
	go r.ReadPump(p)
}

// ReadPump pumps messages from the websocket connection to the room's incoming channel.
func (r *Room) ReadPump(p *player.Player) {
	ctx, span := tracer.Start(context.Background(), "room.ReadPump", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	defer func() {
		p.Conn.Close()
		r.detach(ctx, p)
	}()

	for {
		_, msg, err := p.Conn.ReadMessage()
		if err != nil {
			slog.WarnContext(ctx, "Player connection error", "player.id", p.ID, "room.id", r.ID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Player connection error")
			return
		}
		select {
		case r.incoming <- &types.PlayerMove{Player: p, Message: msg}:
		case <-r.Done:
			return
		}
	}
}

// detach marks p disconnected unless a newer connection already replaced it.
func (r *Room) detach(ctx context.Context, p *player.Player) {
	ctx, span := tracer.Start(ctx, "room.ReadPump.disconnectHandler", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	r.mu.Lock()
	current := r.player == p
	if current {
		p.Status = player.StatusDisconnected
		p.LastSeen = time.Now()
	}
	r.mu.Unlock()
	if !current {
		return
	}

	if r.opts.PlayerRepo != nil {
		if err := r.opts.PlayerRepo.UpdateConnectionStatus(ctx, p.ID, player.StatusDisconnected); err != nil {
			slog.ErrorContext(ctx, "Failed to set player status to disconnected", "player.id", p.ID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to set player status to disconnected")
		}
	}
	r.emit(ctx, events.PlayerDisconnected, events.PlayerDisconnectedPayload{RoomID: r.ID, PlayerID: p.ID})
	slog.InfoContext(ctx, "Player disconnected. Updated status and published event.", "player.id", p.ID, "room.id", r.ID)
}
