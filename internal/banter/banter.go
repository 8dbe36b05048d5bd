// Package banter asks a text-generation service for a short line of trash
// talk about the latest move. Failures here never affect the game.
package banter

import (
	"context"
	"fmt"
	"strings"

	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
)

const (
	// TestModeLine is returned instead of calling the service in test mode.
	TestModeLine = "Test mode banter: nice move... or was it?"
	// FallbackLine replaces an empty completion.
	FallbackLine = "I got nothing… but I'm still watching your moves!"

	systemPrompt = "You are a witty, PG-rated trash-talker for a Tic Tac Toe game. Be playful and positive. " +
		"One or two very short lines, family-friendly, no profanity, no harassment, and avoid personal insults."
)

// Request describes the move to comment on. Board is the state after the move.
type Request struct {
	Board   game.Board
	Player  game.Mark
	Index   int
	Outcome game.Outcome
}

//go:generate mockgen -source=banter.go -destination=mocks/mock_generator.go -package=mocks

// Generator produces one banter line per move.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Canned always answers with the same line and never touches the network.
type Canned struct {
	Line string
}

func (c Canned) Generate(ctx context.Context, _ Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify(err)
	}
	if c.Line == "" {
		return TestModeLine, nil
	}
	return c.Line, nil
}

// UserMessage builds the prompt describing the board, the move and the outcome.
func UserMessage(req Request) string {
	row, col := game.RowCol(req.Index)
	return strings.Join([]string{
		"Tic Tac Toe current board:",
		req.Board.Format(),
		"",
		fmt.Sprintf("Latest move: Player %s to row %d, col %d (index %d).", req.Player, row+1, col+1, req.Index),
		fmt.Sprintf("Outcome: %s.", outcomeText(req.Outcome)),
		"",
		"Please respond with a single playful, witty, family-friendly trash-talk line (<= 20 words).",
		"No profanity, no personal insults. Keep it about the move or the board.",
	}, "\n")
}

func outcomeText(o game.Outcome) string {
	switch {
	case o.HasWinner():
		return fmt.Sprintf("%s just won", o.Winner)
	case o.Tied:
		return "The board is full (tie)"
	default:
		return "Game continues"
	}
}
