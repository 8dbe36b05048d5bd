package room

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/banter"
	"ctchen222/Tic-Tac-Toe-Banter/internal/bot"
	"ctchen222/Tic-Tac-Toe-Banter/internal/events"
	"ctchen222/Tic-Tac-Toe-Banter/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-Banter/internal/player"
	"ctchen222/Tic-Tac-Toe-Banter/internal/repository"
	"ctchen222/Tic-Tac-Toe-Banter/internal/telemetry"
	"ctchen222/Tic-Tac-Toe-Banter/pkg/proto"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
)

const (
	heartbeatInterval = 10 * time.Second
	// maxTranscript is how many banter lines a room keeps.
	maxTranscript = 20
	nudgeText     = "Your move! The computer is getting bored."
)

var reconnectionGracePeriod = 60 * time.Second
var tracer = otel.Tracer("room")

// Options are the collaborators shared by every room.
type Options struct {
	GameRepo   repository.GameRepository
	PlayerRepo repository.PlayerRepository
	Calculator bot.MoveCalculator
	// Banter is nil when banter is disabled.
	Banter  banter.Generator
	Metrics *telemetry.GameMetrics
	// ThinkDelay is how long the computer pauses before moving.
	ThinkDelay time.Duration
	// MoveTimeout nudges an idle human; zero disables it.
	MoveTimeout time.Duration
	// Events receives lifecycle notifications; may be nil.
	Events chan<- events.Event
}

// Room owns one human-versus-computer game. The stored game state is
// authoritative; the room serialises moves against it and runs the
// computer's replies.
type Room struct {
	ID         string
	PlayerID   string
	Difficulty bot.Difficulty

	opts Options

	mu         sync.Mutex
	player     *player.Player
	createdAt  time.Time
	chat       []proto.ChatEntry
	chatError  string
	inFlight   int
	generation uint64

	writeMu   sync.Mutex
	incoming  chan *types.PlayerMove
	wg        sync.WaitGroup
	stopped   chan struct{}
	Done      chan struct{}
	closeOnce sync.Once
}

// NewRoom creates a room for a game that already exists in the repository.
func NewRoom(id, playerID string, difficulty bot.Difficulty, opts Options) *Room {
	if opts.Calculator == nil {
		opts.Calculator = &bot.BotMoveCalculator{}
	}
	return &Room{
		ID:         id,
		PlayerID:   playerID,
		Difficulty: difficulty,
		opts:       opts,
		createdAt:  time.Now(),
		incoming:   make(chan *types.PlayerMove, 10),
		Done:       make(chan struct{}),
	}
}

// Start launches the game loop. When the room shuts down it reports itself
// on closed.
func (r *Room) Start(ctx context.Context, closed chan<- *Room) {
	r.stopped = make(chan struct{})
	go func() {
		r.run(ctx)
		close(r.stopped)
		select {
		case closed <- r:
		case <-ctx.Done():
		}
	}()
}

// Close stops the room and drops the player's connection.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.Done)
		r.mu.Lock()
		p := r.player
		r.mu.Unlock()
		if p != nil && p.Conn != nil {
			p.Conn.Close()
		}
	})
}

// Wait blocks until the game loop has exited and in-flight banter requests
// have finished. Call it after Close.
func (r *Room) Wait() {
	if r.stopped != nil {
		<-r.stopped
	}
	r.wg.Wait()
}

// moveClock tracks the two timers the loop arms between events.
type moveClock struct {
	think      *time.Timer
	thinkArmed bool
	thinkGen   uint64
	idle       *time.Timer
}

func stoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// run is the main game loop for the room.
func (r *Room) run(ctx context.Context) {
	clock := &moveClock{think: stoppedTimer(), idle: stoppedTimer()}
	pingTicker := time.NewTicker(heartbeatInterval)
	cleanupTicker := time.NewTicker(reconnectionGracePeriod / 4)

	defer func() {
		clock.think.Stop()
		clock.idle.Stop()
		pingTicker.Stop()
		cleanupTicker.Stop()
	}()

	r.schedule(ctx, clock)
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return

		case <-r.Done:
			slog.InfoContext(ctx, "Room run goroutine stopping.", "room.id", r.ID)
			return

		case move := <-r.incoming:
			r.HandleMessage(ctx, move.Player, move.Message)
			r.schedule(ctx, clock)

		case <-clock.think.C:
			clock.thinkArmed = false
			r.mu.Lock()
			stale := clock.thinkGen != r.generation
			r.mu.Unlock()
			if !stale {
				r.playComputerMove(ctx)
			}
			r.schedule(ctx, clock)

		case <-clock.idle.C:
			r.nudge(ctx)

		case <-pingTicker.C:
			r.ping(ctx)

		case <-cleanupTicker.C:
			if r.abandoned() {
				slog.InfoContext(ctx, "Player exceeded reconnection grace period. Closing room.", "room.id", r.ID, "player.id", r.PlayerID)
				r.Close()
				return
			}
		}
	}
}

// schedule arms the think timer while the computer is to move and the idle
// timer while the human is. A restart always re-arms from scratch.
func (r *Room) schedule(ctx context.Context, clock *moveClock) {
	state, err := r.opts.GameRepo.FindByID(ctx, r.ID)
	if err != nil {
		slog.ErrorContext(ctx, "run loop cannot get game state", "room.id", r.ID, "error", err)
		return
	}
	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	g := state.Game
	if g.ComputerToMove() {
		if !clock.thinkArmed || clock.thinkGen != gen {
			stopTimer(clock.think)
			clock.think.Reset(r.opts.ThinkDelay)
			clock.thinkArmed = true
			clock.thinkGen = gen
		}
	} else if clock.thinkArmed {
		stopTimer(clock.think)
		clock.thinkArmed = false
	}

	stopTimer(clock.idle)
	if !g.Over() && !g.ComputerToMove() && r.opts.MoveTimeout > 0 {
		clock.idle.Reset(r.opts.MoveTimeout)
	}
}

func (r *Room) abandoned() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.player == nil {
		return time.Since(r.createdAt) > reconnectionGracePeriod
	}
	return r.player.Status == player.StatusDisconnected && time.Since(r.player.LastSeen) > reconnectionGracePeriod
}

func (r *Room) ping(ctx context.Context) {
	r.mu.Lock()
	p := r.player
	connected := p != nil && p.Status == player.StatusConnected
	r.mu.Unlock()
	if !connected {
		return
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := p.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		slog.WarnContext(ctx, "Failed to send ping to player, assuming disconnect", "player.id", p.ID, "error", err)
	}
}

func (r *Room) emit(ctx context.Context, eventType string, payload any) {
	if r.opts.Events == nil {
		return
	}
	event, err := events.New(eventType, payload)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build event", "event.type", eventType, "error", err)
		return
	}
	select {
	case r.opts.Events <- event:
	default:
		slog.WarnContext(ctx, "Event queue full, dropping event", "event.type", eventType, "room.id", r.ID)
	}
}
