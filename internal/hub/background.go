package hub

import (
	"context"
	"encoding/json"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Banter/internal/events"

	"go.opentelemetry.io/otel/codes"
)

// publish sends event to the other instances. It is a no-op without Redis.
func (h *Hub) publish(ctx context.Context, event events.Event) {
	if h.opts.Redis == nil {
		return
	}
	event.Origin = h.id
	data, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal event", "event.type", event.Type, "error", err)
		return
	}
	if err := h.opts.Redis.Publish(ctx, events.EventsChannel, data).Err(); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event", "event.type", event.Type, "error", err)
	}
}

// runEventSubscriber forwards events from other instances to the hub loop.
func (h *Hub) runEventSubscriber(ctx context.Context) {
	slog.InfoContext(ctx, "Event subscriber started", "channel", events.EventsChannel)
	pubsub := h.opts.Redis.Subscribe(ctx, events.EventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			eventCtx, eventSpan := tracer.Start(ctx, "hub.receiveEvent")
			var event events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(eventCtx, "Could not unmarshal global event", "error", err)
				eventSpan.RecordError(err)
				eventSpan.SetStatus(codes.Error, "Could not unmarshal global event")
				eventSpan.End()
				continue
			}
			eventSpan.End()
			if event.Origin == h.id {
				continue
			}
			select {
			case h.remote <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
