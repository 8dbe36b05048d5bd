package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "ctchen222/Tic-Tac-Toe-Banter"

// GameMetrics records game and search activity. The zero value is not usable;
// build one with NewGameMetrics.
type GameMetrics struct {
	gamesFinished  metric.Int64Counter
	searchNodes    metric.Int64Histogram
	searchDuration metric.Float64Histogram
	banterRequests metric.Int64Counter
}

// NewGameMetrics registers instruments on the global meter provider.
func NewGameMetrics() (*GameMetrics, error) {
	meter := otel.Meter(meterName)

	gamesFinished, err := meter.Int64Counter("games.finished",
		metric.WithDescription("Games that ended in a win or a tie."))
	if err != nil {
		return nil, err
	}
	searchNodes, err := meter.Int64Histogram("bot.search.nodes",
		metric.WithDescription("Positions visited per computer move."))
	if err != nil {
		return nil, err
	}
	searchDuration, err := meter.Float64Histogram("bot.search.duration",
		metric.WithDescription("Time spent choosing a computer move."),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	banterRequests, err := meter.Int64Counter("banter.requests",
		metric.WithDescription("Banter requests by result."))
	if err != nil {
		return nil, err
	}

	return &GameMetrics{
		gamesFinished:  gamesFinished,
		searchNodes:    searchNodes,
		searchDuration: searchDuration,
		banterRequests: banterRequests,
	}, nil
}

// GameFinished counts a finished game; result is the winning mark or "tie".
func (m *GameMetrics) GameFinished(ctx context.Context, result string) {
	m.gamesFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("game.result", result)))
}

// MoveSearched records the cost of one computer move.
func (m *GameMetrics) MoveSearched(ctx context.Context, difficulty string, nodes int, millis float64) {
	attrs := metric.WithAttributes(attribute.String("bot.difficulty", difficulty))
	if nodes > 0 {
		m.searchNodes.Record(ctx, int64(nodes), attrs)
	}
	m.searchDuration.Record(ctx, millis, attrs)
}

// BanterResult counts a banter request; result is "ok" or an error kind.
func (m *GameMetrics) BanterResult(ctx context.Context, result string) {
	m.banterRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("banter.result", result)))
}
