package models

import "ctchen222/Tic-Tac-Toe-Banter/internal/game"

// EvaluateRequest carries a board as nine cells; "" or null is empty.
type EvaluateRequest struct {
	Board []string `json:"board" binding:"required,len=9,dive,cell"`
}

// EvaluateResponse is the rules evaluator's verdict on a board.
type EvaluateResponse struct {
	Winner         game.Mark `json:"winner,omitempty"`
	Line           []int     `json:"line,omitempty"`
	Tied           bool      `json:"tied"`
	Over           bool      `json:"over"`
	AvailableMoves []int     `json:"available_moves"`
}

// BestMoveRequest asks the move selector to play AIMark.
type BestMoveRequest struct {
	Board        []string `json:"board" binding:"required,len=9,dive,cell"`
	AIMark       string   `json:"ai_mark" binding:"required,mark"`
	OpponentMark string   `json:"opponent_mark" binding:"required,mark"`
}

// BestMoveResponse is the chosen cell and the search statistics.
type BestMoveResponse struct {
	Index int `json:"index"`
	Row   int `json:"row"`
	Col   int `json:"col"`
	Score int `json:"score"`
	Nodes int `json:"nodes"`
}
