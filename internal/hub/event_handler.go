package hub

import (
	"context"
	"encoding/json"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Banter/internal/events"
	"ctchen222/Tic-Tac-Toe-Banter/internal/room"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// handleEvent logs a local room event and shares it with other instances.
func (h *Hub) handleEvent(ctx context.Context, event events.Event) {
	ctx, span := tracer.Start(ctx, "hub.handleEvent", trace.WithAttributes(
		attribute.String("event.type", event.Type),
	))
	defer span.End()

	slog.DebugContext(ctx, "Room event", "event.type", event.Type, "event.payload", string(event.Payload))
	h.publish(ctx, event)
}

// handleRemoteEvent reacts to events from other instances. A player who
// reattached elsewhere takes their game with them.
func (h *Hub) handleRemoteEvent(ctx context.Context, event events.Event) {
	ctx, span := tracer.Start(ctx, "hub.handleRemoteEvent", trace.WithAttributes(
		attribute.String("event.type", event.Type),
		attribute.String("event.origin", event.Origin),
	))
	defer span.End()

	if event.Type != events.PlayerReconnected {
		return
	}
	var payload events.PlayerReconnectedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		slog.ErrorContext(ctx, "Could not unmarshal player_reconnected payload", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Could not unmarshal player_reconnected payload")
		return
	}
	if r, ok := h.localRooms[payload.RoomID]; ok {
		slog.InfoContext(ctx, "Player moved to another instance, closing local room", "room.id", payload.RoomID, "player.id", payload.PlayerID)
		h.handedOff[payload.RoomID] = true
		r.Close()
	}
}

// handleRoomClosed forgets a room. Abandoned games are deleted; games that
// moved to another instance are left in the store.
func (h *Hub) handleRoomClosed(ctx context.Context, r *room.Room) {
	ctx, span := tracer.Start(ctx, "hub.handleRoomClosed", trace.WithAttributes(
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	if h.localRooms[r.ID] == r {
		delete(h.localRooms, r.ID)
	}
	if h.handedOff[r.ID] {
		delete(h.handedOff, r.ID)
		return
	}
	if err := h.opts.GameRepo.Delete(ctx, r.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to delete closed game", "room.id", r.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete closed game")
	}
	slog.InfoContext(ctx, "Room closed", "room.id", r.ID)
}

func (h *Hub) announceAttach(ctx context.Context, roomID, playerID string) {
	event, err := events.New(events.PlayerReconnected, events.PlayerReconnectedPayload{RoomID: roomID, PlayerID: playerID})
	if err != nil {
		return
	}
	h.publish(ctx, event)
}
