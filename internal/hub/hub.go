package hub

import (
	"context"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Banter/internal/bot"
	"ctchen222/Tic-Tac-Toe-Banter/internal/events"
	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
	"ctchen222/Tic-Tac-Toe-Banter/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-Banter/internal/repository"
	"ctchen222/Tic-Tac-Toe-Banter/internal/room"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("hub")

// Options configure a Hub. RoomOptions.GameRepo, PlayerRepo and Events are
// filled in by NewHub.
type Options struct {
	GameRepo    repository.GameRepository
	PlayerRepo  repository.PlayerRepository
	RoomOptions room.Options
	FirstPlayer game.FirstPlayer
	Difficulty  bot.Difficulty
	// Redis, when set, carries lifecycle events between server instances.
	Redis *redis.Client
}

// Hub manages all the rooms of this server instance.
type Hub struct {
	id         string
	runCtx     context.Context
	opts       Options
	localRooms map[string]*room.Room
	handedOff  map[string]bool
	register   chan *types.RegistrationRequest
	closed     chan *room.Room
	events     chan events.Event
	remote     chan events.Event
}

// NewHub creates a new hub.
func NewHub(opts Options) *Hub {
	h := &Hub{
		id:         uuid.NewString(),
		opts:       opts,
		localRooms: make(map[string]*room.Room),
		handedOff:  make(map[string]bool),
		register:   make(chan *types.RegistrationRequest),
		closed:     make(chan *room.Room),
		events:     make(chan events.Event, 64),
		remote:     make(chan events.Event, 64),
	}
	h.opts.RoomOptions.GameRepo = opts.GameRepo
	h.opts.RoomOptions.PlayerRepo = opts.PlayerRepo
	h.opts.RoomOptions.Events = h.events
	if h.opts.Difficulty == "" {
		h.opts.Difficulty = bot.Hard
	}
	if h.opts.FirstPlayer == "" {
		h.opts.FirstPlayer = game.FirstHuman
	}
	return h
}

// Run owns the room registry until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.runCtx = ctx
	if h.opts.Redis != nil {
		go h.runEventSubscriber(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for _, r := range h.localRooms {
				r.Close()
			}
			slog.InfoContext(ctx, "Hub stopped", "rooms.count", len(h.localRooms))
			return

		case req := <-h.register:
			h.handleRegistration(req)

		case r := <-h.closed:
			h.handleRoomClosed(ctx, r)

		case event := <-h.events:
			h.handleEvent(ctx, event)

		case event := <-h.remote:
			h.handleRemoteEvent(ctx, event)
		}
	}
}

// Register returns the register channel.
func (h *Hub) Register() chan<- *types.RegistrationRequest {
	return h.register
}
