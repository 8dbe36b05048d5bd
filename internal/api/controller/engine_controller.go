package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/api/models"
	"ctchen222/Tic-Tac-Toe-Banter/internal/api/response"
	"ctchen222/Tic-Tac-Toe-Banter/internal/bot"
	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
	"ctchen222/Tic-Tac-Toe-Banter/internal/telemetry"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("controller")

var (
	errSameMarks     = errors.New("ai_mark and opponent_mark must differ")
	errBoardFinished = errors.New("board has no moves left to search")
)

// EngineController exposes the rules evaluator and move selector.
type EngineController struct {
	metrics *telemetry.GameMetrics
}

// NewEngineController creates an EngineController. metrics may be nil.
func NewEngineController(metrics *telemetry.GameMetrics) *EngineController {
	return &EngineController{metrics: metrics}
}

// Evaluate reports the winner, winning line, tie flag and free cells of a board.
func (ec *EngineController) Evaluate(c *gin.Context) {
	var req models.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(response.Wrap(http.StatusBadRequest, err))
		return
	}
	b, err := game.BoardFromCells(req.Board)
	if err != nil {
		_ = c.Error(response.Wrap(http.StatusBadRequest, err))
		return
	}

	outcome := game.Evaluate(b)
	resp := models.EvaluateResponse{
		Winner:         outcome.Winner,
		Tied:           outcome.Tied,
		Over:           outcome.Over(),
		AvailableMoves: game.AvailableMoves(b),
	}
	if outcome.HasWinner() {
		resp.Line = outcome.Line[:]
	}
	response.SuccessResponse(c, resp)
}

// BestMove runs the minimax search for ai_mark.
func (ec *EngineController) BestMove(c *gin.Context) {
	var req models.BestMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(response.Wrap(http.StatusBadRequest, err))
		return
	}
	b, err := game.BoardFromCells(req.Board)
	if err != nil {
		_ = c.Error(response.Wrap(http.StatusBadRequest, err))
		return
	}
	// Bindings already validated both marks.
	ai, _ := game.ParseMark(req.AIMark)
	opp, _ := game.ParseMark(req.OpponentMark)
	if ai == opp {
		_ = c.Error(response.Wrap(http.StatusBadRequest, errSameMarks))
		return
	}
	if game.Evaluate(b).Over() {
		_ = c.Error(response.Wrap(http.StatusBadRequest, errBoardFinished))
		return
	}

	ctx, span := tracer.Start(c.Request.Context(), "controller.BestMove", trace.WithAttributes(
		attribute.String("board", b.String()),
		attribute.String("move.player", string(ai)),
	))
	defer span.End()

	start := time.Now()
	res := bot.Search(b, ai, opp)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	span.SetAttributes(attribute.Int("move.index", res.Index), attribute.Int("search.nodes", res.Nodes))
	if ec.metrics != nil {
		ec.metrics.MoveSearched(ctx, string(bot.Hard), res.Nodes, elapsed)
	}
	slog.DebugContext(ctx, "best move computed", "board", b.String(), "move.index", res.Index, "search.nodes", res.Nodes)

	row, col := game.RowCol(res.Index)
	response.SuccessResponse(c, models.BestMoveResponse{
		Index: res.Index,
		Row:   row,
		Col:   col,
		Score: res.Score,
		Nodes: res.Nodes,
	})
}
