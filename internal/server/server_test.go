package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/api/controller"
	"ctchen222/Tic-Tac-Toe-Banter/internal/api/models"
	userrepo "ctchen222/Tic-Tac-Toe-Banter/internal/api/repository"
	"ctchen222/Tic-Tac-Toe-Banter/internal/api/service"
	"ctchen222/Tic-Tac-Toe-Banter/internal/db"
	"ctchen222/Tic-Tac-Toe-Banter/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-Banter/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "server-secret"

type fakeHub struct {
	requests chan *types.RegistrationRequest
}

func (f *fakeHub) Register() chan<- *types.RegistrationRequest {
	return f.requests
}

func newTestServer(t *testing.T, staticDir string) (*httptest.Server, *fakeHub, service.UserService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := db.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	h := &fakeHub{requests: make(chan *types.RegistrationRequest, 1)}
	users := service.NewUserService(userrepo.NewUserRepository(pool), testSecret, time.Hour)
	s, err := NewServer(Options{
		Hub:        h,
		Users:      users,
		UserCtrl:   controller.NewUserController(users),
		EngineCtrl: controller.NewEngineController(nil),
		GameCtrl:   controller.NewGameController(repository.NewMemoryGameRepository()),
		StaticDir:  staticDir,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Engine())
	t.Cleanup(ts.Close)
	return ts, h, users
}

func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query
}

func receive(t *testing.T, h *fakeHub) *types.RegistrationRequest {
	t.Helper()
	select {
	case req := <-h.requests:
		t.Cleanup(func() { req.Player.Conn.Close() })
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no registration reached the hub")
		return nil
	}
}

func TestWebSocketRegistration(t *testing.T) {
	ts, h, users := newTestServer(t, "")

	ctx := context.Background()
	_, err := users.Register(ctx, &models.RegisterRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	login, err := users.Login(ctx, &models.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	token := login.Token

	tests := []struct {
		name           string
		query          string
		wantPlayer     string
		wantGame       string
		wantDifficulty string
	}{
		{name: "Explicit player", query: "playerId=p1&gameId=g1", wantPlayer: "p1", wantGame: "g1"},
		{name: "Token wins over playerId", query: "playerId=p1&token=" + token, wantPlayer: login.PlayerID},
		{name: "Difficulty is normalised", query: "playerId=p2&difficulty=nightmare", wantPlayer: "p2", wantDifficulty: "hard"},
		{name: "Guest", query: "difficulty=easy", wantDifficulty: "easy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, tt.query), nil)
			require.NoError(t, err)
			t.Cleanup(func() { conn.Close() })

			req := receive(t, h)
			if tt.wantPlayer != "" {
				assert.Equal(t, tt.wantPlayer, req.Player.ID)
			} else {
				assert.NotEmpty(t, req.Player.ID)
			}
			assert.Equal(t, tt.wantGame, req.GameID)
			assert.Equal(t, tt.wantDifficulty, req.Difficulty)
			assert.NotNil(t, req.Ctx)
		})
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	ts, h, _ := newTestServer(t, "")

	// Signed correctly, but no account owns the subject.
	orphan, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "deleted-player",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "Garbage", token: "garbage"},
		{name: "Unknown account", token: orphan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "token="+tt.token), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Empty(t, h.requests)
		})
	}
}

func TestHealthAndStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>tic tac toe</h1>"), 0o644))
	ts, _, _ := newTestServer(t, dir)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
