package models

import (
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
)

// GameResponse is the public view of a live game.
type GameResponse struct {
	ID         string    `json:"id"`
	Board      []string  `json:"board"`
	Turn       game.Mark `json:"turn,omitempty"`
	Human      game.Mark `json:"human"`
	Computer   game.Mark `json:"computer"`
	Winner     game.Mark `json:"winner,omitempty"`
	Line       []int     `json:"line,omitempty"`
	Tied       bool      `json:"tied"`
	Moves      int       `json:"moves"`
	Difficulty string    `json:"difficulty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
