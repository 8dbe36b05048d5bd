package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/banter"
	"ctchen222/Tic-Tac-Toe-Banter/internal/banter/mocks"
	"ctchen222/Tic-Tac-Toe-Banter/internal/bot"
	"ctchen222/Tic-Tac-Toe-Banter/internal/events"
	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
	"ctchen222/Tic-Tac-Toe-Banter/internal/player"
	"ctchen222/Tic-Tac-Toe-Banter/internal/repository"
	repomocks "ctchen222/Tic-Tac-Toe-Banter/internal/repository/mocks"
	"ctchen222/Tic-Tac-Toe-Banter/internal/telemetry"
	"ctchen222/Tic-Tac-Toe-Banter/pkg/proto"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/mock/gomock"
)

const waitTimeout = 2 * time.Second

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	select {
	case c.out <- append([]byte(nil), data...):
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.in:
		return websocket.TextMessage, msg, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) send(t *testing.T, msg string) {
	t.Helper()
	c.in <- []byte(msg)
}

// wire is the union of every server message.
type wire struct {
	Type     string            `json:"type"`
	Reason   string            `json:"reason"`
	GameID   string            `json:"gameId"`
	Board    []string          `json:"board"`
	Next     string            `json:"next"`
	Winner   string            `json:"winner"`
	Line     []int             `json:"line"`
	Tied     bool              `json:"tied"`
	Thinking bool              `json:"thinking"`
	Mark     string            `json:"mark"`
	Messages []proto.ChatEntry `json:"messages"`
	Enabled  bool              `json:"enabled"`
	Loading  bool              `json:"loading"`
	Error    string            `json:"error"`
	Nudge    string            `json:"nudge"`
}

// until reads messages until one satisfies match.
func (c *fakeConn) until(t *testing.T, match func(w wire) bool) wire {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case data := <-c.out:
			var w wire
			require.NoError(t, json.Unmarshal(data, &w))
			if match(w) {
				return w
			}
		case <-deadline:
			t.Fatal("timed out waiting for message")
			return wire{}
		}
	}
}

func (c *fakeConn) next(t *testing.T, messageType string) wire {
	t.Helper()
	return c.until(t, func(w wire) bool { return w.Type == messageType })
}

// lowestFree always takes the first empty cell.
type lowestFree struct{}

func (lowestFree) CalculateNextMove(board game.Board, _ game.Mark, _ bot.Difficulty) bot.SearchResult {
	moves := game.AvailableMoves(board)
	if len(moves) == 0 {
		return bot.SearchResult{Index: -1}
	}
	return bot.SearchResult{Index: moves[0]}
}

type fixture struct {
	room *Room
	conn *fakeConn
	repo repository.GameRepository
	ctx  context.Context
}

func newFixture(t *testing.T, opts Options, first game.FirstPlayer) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	repo := repository.NewMemoryGameRepository()
	opts.GameRepo = repo
	if opts.PlayerRepo == nil {
		opts.PlayerRepo = repository.NewMemoryPlayerRepository()
	}
	require.NoError(t, repo.Create(ctx, &repository.GameState{
		ID:         "room-1",
		PlayerID:   "p1",
		Difficulty: string(bot.Hard),
		Game:       game.New(game.X, first),
	}))

	r := NewRoom("room-1", "p1", bot.Hard, opts)
	r.Start(ctx, make(chan *Room, 1))
	conn := newFakeConn()
	r.Attach(ctx, player.NewPlayer("p1", conn))

	t.Cleanup(func() {
		r.Close()
		cancel()
		r.Wait()
	})
	return &fixture{room: r, conn: conn, repo: repo, ctx: ctx}
}

func (f *fixture) board(t *testing.T) game.Board {
	t.Helper()
	state, err := f.repo.FindByID(f.ctx, f.room.ID)
	require.NoError(t, err)
	return state.Game.Board
}

func TestInitialState(t *testing.T) {
	f := newFixture(t, Options{ThinkDelay: time.Hour}, game.FirstHuman)

	assignment := f.conn.next(t, events.TypeAssignment)
	assert.Equal(t, "X", assignment.Mark)
	assert.Equal(t, "room-1", assignment.GameID)

	update := f.conn.next(t, events.TypeUpdate)
	assert.Equal(t, make([]string, game.BoardSize), update.Board)
	assert.Equal(t, "X", update.Next)
	assert.False(t, update.Thinking)

	chat := f.conn.next(t, events.TypeChat)
	assert.Empty(t, chat.Messages)

	status := f.conn.next(t, events.TypeChatStatus)
	assert.False(t, status.Enabled)
}

func TestHumanMoveThenComputerReplies(t *testing.T) {
	f := newFixture(t, Options{ThinkDelay: 20 * time.Millisecond}, game.FirstHuman)

	f.conn.send(t, `{"type":"move","index":4}`)
	afterHuman := f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[4] == "X" })
	assert.True(t, afterHuman.Thinking)
	assert.Equal(t, "O", afterHuman.Next)

	afterComputer := f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[0] == "O" })
	assert.False(t, afterComputer.Thinking)
	assert.Equal(t, "X", afterComputer.Next)

	b := f.board(t)
	assert.Equal(t, game.X, b[4])
	assert.Equal(t, game.O, b[0])
}

func TestComputerOpens(t *testing.T) {
	f := newFixture(t, Options{ThinkDelay: 10 * time.Millisecond}, game.FirstComputer)

	update := f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[0] == "O" })
	assert.Equal(t, "X", update.Next)
}

func TestRejectedMessages(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		wantReason string
	}{
		{name: "Malformed JSON", message: `{"type":`, wantReason: "malformed message"},
		{name: "Unknown type", message: `{"type":"rematch"}`, wantReason: "invalid message"},
		{name: "Index out of range", message: `{"type":"move","index":9}`, wantReason: "invalid message"},
		{name: "Missing index", message: `{"type":"move"}`, wantReason: "move requires an index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{ThinkDelay: time.Hour}, game.FirstHuman)
			f.conn.send(t, tt.message)
			msg := f.conn.next(t, events.TypeError)
			assert.Equal(t, tt.wantReason, msg.Reason)
			assert.Equal(t, game.Board{}, f.board(t))
		})
	}
}

func TestMoveWhileComputerThinks(t *testing.T) {
	f := newFixture(t, Options{ThinkDelay: time.Hour}, game.FirstHuman)

	f.conn.send(t, `{"type":"move","index":4}`)
	f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[4] == "X" })

	f.conn.send(t, `{"type":"move","index":0}`)
	msg := f.conn.next(t, events.TypeError)
	assert.Equal(t, game.ErrNotYourTurn.Error(), msg.Reason)
	assert.Equal(t, game.None, f.board(t)[0])
}

func TestRestartCancelsPendingComputerMove(t *testing.T) {
	f := newFixture(t, Options{ThinkDelay: 100 * time.Millisecond}, game.FirstHuman)

	f.conn.send(t, `{"type":"move","index":4}`)
	f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[4] == "X" })

	f.conn.send(t, `{"type":"restart"}`)
	restarted := f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[4] == "" })
	assert.Equal(t, "X", restarted.Next)

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, game.Board{}, f.board(t))
}

func TestHumanWinFinishesGame(t *testing.T) {
	evs := make(chan events.Event, 16)
	f := newFixture(t, Options{ThinkDelay: time.Millisecond, Calculator: lowestFree{}, Events: evs}, game.FirstHuman)

	// X takes the left column while the computer fills the top row from the left.
	for i, idx := range []int{0, 3, 6} {
		f.conn.send(t, fmt.Sprintf(`{"type":"move","index":%d}`, idx))
		if i < 2 {
			want := i + 1
			f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[want] == "O" })
		}
	}

	final := f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Winner != "" })
	assert.Equal(t, "X", final.Winner)
	assert.Equal(t, []int{0, 3, 6}, final.Line)
	assert.Empty(t, final.Next)
	assert.False(t, final.Thinking)

	var finished events.GameFinishedPayload
	require.Eventually(t, func() bool {
		for {
			select {
			case ev := <-evs:
				if ev.Type == events.GameFinished {
					return json.Unmarshal(ev.Payload, &finished) == nil
				}
			default:
				return false
			}
		}
	}, waitTimeout, 10*time.Millisecond)
	assert.Equal(t, "X", finished.Winner)
	assert.Equal(t, 5, finished.Moves)

	f.conn.send(t, `{"type":"move","index":8}`)
	msg := f.conn.next(t, events.TypeError)
	assert.Equal(t, game.ErrGameOver.Error(), msg.Reason)
}

func TestBanterForEveryMove(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)

	var mu sync.Mutex
	var requests []banter.Request
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req banter.Request) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		requests = append(requests, req)
		return fmt.Sprintf("line %d", len(requests)), nil
	}).Times(2)

	f := newFixture(t, Options{ThinkDelay: 10 * time.Millisecond, Banter: gen}, game.FirstHuman)
	status := f.conn.next(t, events.TypeChatStatus)
	assert.True(t, status.Enabled)

	f.conn.send(t, `{"type":"move","index":4}`)
	require.Eventually(t, func() bool { return len(f.room.Transcript()) == 2 }, waitTimeout, 10*time.Millisecond)

	transcript := f.room.Transcript()
	assert.ElementsMatch(t, []string{"line 1", "line 2"}, []string{transcript[0].Content, transcript[1].Content})
	assert.Equal(t, events.RoleAssistant, transcript[0].Role)
	assert.NotEqual(t, transcript[0].ID, transcript[1].ID)

	mu.Lock()
	defer mu.Unlock()
	byPlayer := map[game.Mark]banter.Request{}
	for _, req := range requests {
		byPlayer[req.Player] = req
	}
	assert.Equal(t, 4, byPlayer[game.X].Index)
	assert.Equal(t, game.X, byPlayer[game.X].Board[4])
	assert.Equal(t, 0, byPlayer[game.O].Index)
	assert.Equal(t, game.O, byPlayer[game.O].Board[0])
}

func TestBanterFailureLeavesGameAlone(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).
		Return("", &banter.Error{Kind: banter.KindRateLimited, Status: 429}).AnyTimes()

	f := newFixture(t, Options{ThinkDelay: 10 * time.Millisecond, Banter: gen}, game.FirstHuman)

	f.conn.send(t, `{"type":"move","index":4}`)
	status := f.conn.until(t, func(w wire) bool { return w.Type == events.TypeChatStatus && w.Error != "" })
	assert.Equal(t, "Rate limited by OpenAI. Please wait a moment and try again.", status.Error)

	f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[0] == "O" })
	f.room.Close()
	f.room.Wait()
	assert.Empty(t, f.room.Transcript())
	assert.Equal(t, game.O, f.board(t)[0])
}

func TestRestartDropsLateBanter(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	release := make(chan struct{})
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, banter.Request) (string, error) {
		<-release
		return "too late", nil
	}).Times(1)

	f := newFixture(t, Options{ThinkDelay: time.Hour, Banter: gen}, game.FirstHuman)

	f.conn.send(t, `{"type":"move","index":4}`)
	f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[4] == "X" })
	f.conn.send(t, `{"type":"restart"}`)
	f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[4] == "" })

	close(release)
	f.room.Close()
	f.room.Wait()
	assert.Empty(t, f.room.Transcript())
}

func TestTranscriptKeepsNewestTwenty(t *testing.T) {
	r := NewRoom("room", "p", bot.Hard, Options{})
	r.mu.Lock()
	for i := range 25 {
		r.addChat(fmt.Sprintf("line %d", i))
	}
	r.mu.Unlock()

	transcript := r.Transcript()
	require.Len(t, transcript, maxTranscript)
	assert.Equal(t, "line 24", transcript[0].Content)
	assert.Equal(t, "line 5", transcript[maxTranscript-1].Content)
}

func TestIdleHumanIsNudged(t *testing.T) {
	f := newFixture(t, Options{ThinkDelay: time.Hour, MoveTimeout: 30 * time.Millisecond}, game.FirstHuman)

	status := f.conn.until(t, func(w wire) bool { return w.Type == events.TypeChatStatus && w.Nudge != "" })
	assert.Equal(t, nudgeText, status.Nudge)
	assert.Equal(t, game.Board{}, f.board(t))
}

func TestAttachReplacesConnection(t *testing.T) {
	evs := make(chan events.Event, 16)
	f := newFixture(t, Options{ThinkDelay: time.Hour, Events: evs}, game.FirstHuman)

	f.conn.send(t, `{"type":"move","index":4}`)
	f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[4] == "X" })

	second := newFakeConn()
	f.room.Attach(f.ctx, player.NewPlayer("p1", second))
	assert.True(t, f.conn.isClosed())

	update := second.next(t, events.TypeUpdate)
	assert.Equal(t, "X", update.Board[4])
	assert.True(t, update.Thinking)

	ev := <-evs
	assert.Equal(t, events.PlayerReconnected, ev.Type)
}

func TestPingWhileDisconnecting(t *testing.T) {
	f := newFixture(t, Options{ThinkDelay: time.Hour}, game.FirstHuman)
	f.conn.next(t, events.TypeChatStatus)

	f.room.mu.Lock()
	p := f.room.player
	f.room.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 200 {
			f.room.ping(f.ctx)
		}
	}()
	go func() {
		defer wg.Done()
		f.room.detach(f.ctx, p)
	}()
	wg.Wait()

	f.room.mu.Lock()
	defer f.room.mu.Unlock()
	assert.Equal(t, player.StatusDisconnected, p.Status)
}

// startWithStore runs a room against store instead of the memory repository.
func startWithStore(t *testing.T, store repository.GameRepository) *fakeConn {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRoom("room-1", "p1", bot.Hard, Options{
		GameRepo:   store,
		PlayerRepo: repository.NewMemoryPlayerRepository(),
		ThinkDelay: time.Hour,
	})
	r.Start(ctx, make(chan *Room, 1))
	conn := newFakeConn()
	r.Attach(ctx, player.NewPlayer("p1", conn))

	t.Cleanup(func() {
		r.Close()
		cancel()
		r.Wait()
	})
	return conn
}

func TestStoreFailures(t *testing.T) {
	errStore := errors.New("store unavailable")
	fresh := func(context.Context, string) (*repository.GameState, error) {
		return &repository.GameState{
			ID:         "room-1",
			PlayerID:   "p1",
			Difficulty: string(bot.Hard),
			Game:       game.New(game.X, game.FirstHuman),
		}, nil
	}

	t.Run("Move cannot be saved", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := repomocks.NewMockGameRepository(ctrl)
		store.EXPECT().FindByID(gomock.Any(), "room-1").DoAndReturn(fresh).AnyTimes()
		store.EXPECT().Update(gomock.Any(), "room-1", gomock.Any()).Return(nil, errStore)

		conn := startWithStore(t, store)
		conn.next(t, events.TypeChatStatus)
		conn.send(t, `{"type":"move","index":4}`)

		msg := conn.next(t, events.TypeError)
		assert.Equal(t, errStore.Error(), msg.Reason)
	})

	t.Run("Game cannot be loaded", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := repomocks.NewMockGameRepository(ctrl)
		store.EXPECT().FindByID(gomock.Any(), "room-1").Return(nil, errStore).AnyTimes()

		conn := startWithStore(t, store)
		msg := conn.next(t, events.TypeError)
		assert.Equal(t, "game not available", msg.Reason)
	})
}

func TestComputerMoveRecordsSearchedNodes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	metrics, err := telemetry.NewGameMetrics()
	require.NoError(t, err)

	f := newFixture(t, Options{ThinkDelay: 10 * time.Millisecond, Metrics: metrics}, game.FirstHuman)
	f.conn.send(t, `{"type":"move","index":4}`)
	f.conn.until(t, func(w wire) bool { return w.Type == events.TypeUpdate && w.Board[0] == "O" })

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var count uint64
	var sum int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "bot.search.nodes" {
				continue
			}
			hist, ok := md.Data.(metricdata.Histogram[int64])
			require.True(t, ok)
			for _, dp := range hist.DataPoints {
				count += dp.Count
				sum += dp.Sum
			}
		}
	}
	assert.Equal(t, uint64(1), count)
	assert.Positive(t, sum)
}
