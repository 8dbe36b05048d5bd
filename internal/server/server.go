package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/api/controller"
	"ctchen222/Tic-Tac-Toe-Banter/internal/api/response"
	"ctchen222/Tic-Tac-Toe-Banter/internal/api/service"
	"ctchen222/Tic-Tac-Toe-Banter/internal/bot"
	"ctchen222/Tic-Tac-Toe-Banter/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-Banter/internal/player"
	"ctchen222/Tic-Tac-Toe-Banter/internal/validator"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("server")

// Registrar accepts websocket registrations. *hub.Hub implements it.
type Registrar interface {
	Register() chan<- *types.RegistrationRequest
}

// Options wires the HTTP surface to the rest of the application.
type Options struct {
	Hub         Registrar
	Users       service.UserService
	UserCtrl    *controller.UserController
	EngineCtrl  *controller.EngineController
	GameCtrl    *controller.GameController
	StaticDir   string
	ServiceName string
}

type Server struct {
	opts     Options
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

func NewServer(opts Options) (*Server, error) {
	if v, ok := binding.Validator.Engine().(*playground.Validate); ok {
		if err := validator.RegisterCustom(v); err != nil {
			return nil, err
		}
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "tic-tac-toe-banter"
	}

	s := &Server{
		opts:   opts,
		engine: gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.registerHandlers()
	return s, nil
}

// Engine returns the gin engine serving every route.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerHandlers() {
	r := s.engine
	r.Use(gin.Recovery(), otelgin.Middleware(s.opts.ServiceName), response.ErrorHandler())

	r.GET("/healthz", func(c *gin.Context) {
		response.SuccessResponse(c, gin.H{"status": "ok"})
	})
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	{
		api.POST("/guest", s.opts.UserCtrl.GuestLogin)
		api.POST("/register", s.opts.UserCtrl.Register)
		api.POST("/login", s.opts.UserCtrl.Login)

		api.POST("/engine/evaluate", s.opts.EngineCtrl.Evaluate)
		api.POST("/engine/best-move", s.opts.EngineCtrl.BestMove)

		api.GET("/games/:id", s.opts.GameCtrl.Get)
	}

	if s.opts.StaticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.opts.StaticDir))))
	}
}

// resolvePlayer picks the player id for a websocket request: the subject of
// a login token, then an explicit playerId, then a fresh guest id.
func (s *Server) resolvePlayer(c *gin.Context) (string, error) {
	if token := c.Query("token"); token != "" {
		if s.opts.Users == nil {
			return "", service.ErrInvalidToken
		}
		return s.opts.Users.PlayerFromToken(c.Request.Context(), token)
	}
	if id := c.Query("playerId"); id != "" {
		return id, nil
	}
	return uuid.NewString(), nil
}

// handleWebSocket's only responsibility is to upgrade the connection and
// pass a registration request to the hub. It does not distinguish between
// new and reconnecting players.
func (s *Server) handleWebSocket(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("http.url", c.Request.URL.String()),
		attribute.String("http.method", c.Request.Method),
	))
	defer span.End()

	playerID, err := s.resolvePlayer(c)
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, service.ErrInvalidToken) {
			span.SetStatus(codes.Error, "Failed to resolve player")
			_ = c.Error(err)
			return
		}
		span.SetStatus(codes.Error, "invalid token")
		_ = c.Error(response.Wrap(http.StatusUnauthorized, err))
		return
	}
	span.SetAttributes(attribute.String("player.id", playerID))

	difficulty := c.Query("difficulty")
	if difficulty != "" {
		difficulty = string(bot.ParseDifficulty(difficulty))
	}
	gameID := c.Query("gameId")
	span.SetAttributes(attribute.String("game.id", gameID), attribute.String("game.difficulty", difficulty))

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already replied to the client.
		slog.WarnContext(ctx, "Failed to upgrade connection", "player.id", playerID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}

	req := &types.RegistrationRequest{
		Player:     player.NewPlayer(playerID, conn),
		GameID:     gameID,
		Difficulty: difficulty,
		Ctx:        ctx,
	}
	select {
	case s.opts.Hub.Register() <- req:
	case <-ctx.Done():
		conn.Close()
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then gives open
// requests shutdownTimeout to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server started", "server.addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
