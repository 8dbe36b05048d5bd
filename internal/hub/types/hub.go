package types

import (
	"context"

	"ctchen222/Tic-Tac-Toe-Banter/internal/player"
)

// RegistrationRequest asks the hub to attach a websocket to a game.
type RegistrationRequest struct {
	Player     *player.Player
	GameID     string // Set when reconnecting to a live game
	Difficulty string // "easy", "medium", "hard"
	Ctx        context.Context
}

// PlayerMove is a raw client message queued for a room.
type PlayerMove struct {
	Player  *player.Player
	Message []byte
}
