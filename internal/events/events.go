package events

import "encoding/json"

// Pub/Sub channel constants
const (
	EventsChannel = "channel:events"
)

// Client message types.
const (
	TypeMove    = "move"
	TypeRestart = "restart"
)

// Server message types.
const (
	TypeUpdate     = "update"
	TypeAssignment = "assignment"
	TypeChat       = "chat"
	TypeChatStatus = "chat_status"
	TypeError      = "error"
)

// Lifecycle event types.
const (
	PlayerDisconnected = "player_disconnected"
	PlayerReconnected  = "player_reconnected"
	GameFinished       = "game_finished"
	GameRestarted      = "game_restarted"
)

// RoleAssistant marks chat entries written by the banter service.
const RoleAssistant = "assistant"

// Event is a room lifecycle notification. The hub handles it locally and,
// with Redis configured, publishes it on EventsChannel.
type Event struct {
	Type    string          `json:"event"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// PlayerDisconnectedPayload is the payload for the "player_disconnected" event.
type PlayerDisconnectedPayload struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

// PlayerReconnectedPayload is the payload for the "player_reconnected" event.
type PlayerReconnectedPayload struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

// GameFinishedPayload is the payload for the "game_finished" event.
type GameFinishedPayload struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Winner   string `json:"winner,omitempty"`
	Tied     bool   `json:"tied"`
	Moves    int    `json:"moves"`
}

// GameRestartedPayload is the payload for the "game_restarted" event.
type GameRestartedPayload struct {
	RoomID string `json:"room_id"`
}

// New wraps payload in an Event.
func New(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: data}, nil
}
