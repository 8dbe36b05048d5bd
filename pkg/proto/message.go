package proto

import "ctchen222/Tic-Tac-Toe-Banter/internal/game"

// ClientToServerMessage represents a message from the client to the server.
// Index is required for moves and ignored otherwise.
type ClientToServerMessage struct {
	Type  string `json:"type" validate:"required,oneof=move restart"`
	Index *int   `json:"index,omitempty" validate:"omitempty,min=0,max=8"`
}

// ServerToClientMessage carries the board after every change.
type ServerToClientMessage struct {
	Type     string    `json:"type" validate:"required"`
	Reason   string    `json:"reason,omitempty"`
	GameID   string    `json:"gameId,omitempty"`
	Board    []string  `json:"board,omitempty"`
	Next     game.Mark `json:"next,omitempty"`
	Winner   game.Mark `json:"winner,omitempty"`
	Line     []int     `json:"line,omitempty"`
	Tied     bool      `json:"tied,omitempty"`
	Thinking bool      `json:"thinking,omitempty"`
}

// PlayerAssignmentMessage informs a player of their assigned mark.
type PlayerAssignmentMessage struct {
	Type       string    `json:"type"`
	PlayerID   string    `json:"playerId,omitempty"`
	GameID     string    `json:"gameId"`
	Mark       game.Mark `json:"mark"`
	Difficulty string    `json:"difficulty,omitempty"`
}

// ChatEntry is one line of the banter transcript.
type ChatEntry struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatMessage carries the whole transcript, newest first.
type ChatMessage struct {
	Type     string      `json:"type"`
	Messages []ChatEntry `json:"messages"`
}

// ChatStatusMessage reports the banter side channel state.
type ChatStatusMessage struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Nudge   string `json:"nudge,omitempty"`
}
