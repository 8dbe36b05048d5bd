package player

import "time"

// PlayerStatus is the websocket presence of a player.
type PlayerStatus string

const (
	StatusConnected    PlayerStatus = "connected"
	StatusDisconnected PlayerStatus = "disconnected"
)

// Connection is an interface that abstracts the websocket connection.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// Player represents the human side of a game.
type Player struct {
	ID       string
	Conn     Connection
	Status   PlayerStatus
	LastSeen time.Time
}

// NewPlayer creates a connected player.
func NewPlayer(id string, conn Connection) *Player {
	return &Player{
		ID:       id,
		Conn:     conn,
		Status:   StatusConnected,
		LastSeen: time.Now(),
	}
}
