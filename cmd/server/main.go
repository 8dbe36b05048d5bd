package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/api/controller"
	apirepository "ctchen222/Tic-Tac-Toe-Banter/internal/api/repository"
	"ctchen222/Tic-Tac-Toe-Banter/internal/api/service"
	"ctchen222/Tic-Tac-Toe-Banter/internal/banter"
	"ctchen222/Tic-Tac-Toe-Banter/internal/bot"
	"ctchen222/Tic-Tac-Toe-Banter/internal/config"
	"ctchen222/Tic-Tac-Toe-Banter/internal/db"
	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
	"ctchen222/Tic-Tac-Toe-Banter/internal/hub"
	"ctchen222/Tic-Tac-Toe-Banter/internal/logger"
	"ctchen222/Tic-Tac-Toe-Banter/internal/repository"
	"ctchen222/Tic-Tac-Toe-Banter/internal/room"
	"ctchen222/Tic-Tac-Toe-Banter/internal/server"
	"ctchen222/Tic-Tac-Toe-Banter/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve the tic tac toe game with computer banter",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv("TTT_CONFIG")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (env TTT_CONFIG)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Initialize telemetry
	shutdown := telemetry.ShutdownFunc(telemetry.Noop)
	if cfg.Telemetry.Enabled {
		var err error
		shutdown, err = telemetry.InitOtel(ctx, telemetry.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Error("Error shutting down telemetry", "error", err)
		}
	}()
	logger.Init(cfg.Log.Level, cfg.Telemetry.Enabled)
	if logger.ParseLevel(cfg.Log.Level) != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics, err := telemetry.NewGameMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	// Live game state: Redis when configured, otherwise this process only.
	var (
		rdb        *redis.Client
		gameRepo   repository.GameRepository
		playerRepo repository.PlayerRepository
	)
	if cfg.Redis.Addr != "" {
		rdb, err = db.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer rdb.Close()
		gameRepo = repository.NewGameRepository(rdb, cfg.Redis.TTL)
		playerRepo = repository.NewPlayerRepository(rdb, cfg.Redis.TTL)
	} else {
		slog.InfoContext(ctx, "redis.addr not set, keeping games in memory")
		gameRepo = repository.NewMemoryGameRepository()
		playerRepo = repository.NewMemoryPlayerRepository()
	}

	// Initialize SQLite DB
	pool, err := db.OpenSQLite(ctx, cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize sqlite db: %w", err)
	}
	defer pool.Close()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		slog.WarnContext(ctx, "auth.jwt_secret not set, tokens will not survive a restart")
	}
	userService := service.NewUserService(apirepository.NewUserRepository(pool), secret, cfg.Auth.TokenTTL)

	h := hub.NewHub(hub.Options{
		GameRepo:    gameRepo,
		PlayerRepo:  playerRepo,
		FirstPlayer: game.FirstPlayer(cfg.Game.FirstPlayer),
		Difficulty:  bot.ParseDifficulty(cfg.Game.Difficulty),
		Redis:       rdb,
		RoomOptions: room.Options{
			Banter:      newBanter(ctx, cfg),
			Metrics:     metrics,
			ThinkDelay:  cfg.Game.ThinkDelay,
			MoveTimeout: cfg.Game.MoveTimeout,
		},
	})
	go h.Run(ctx)

	srv, err := server.NewServer(server.Options{
		Hub:         h,
		Users:       userService,
		UserCtrl:    controller.NewUserController(userService),
		EngineCtrl:  controller.NewEngineController(metrics),
		GameCtrl:    controller.NewGameController(gameRepo),
		StaticDir:   cfg.Server.StaticDir,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return err
	}

	err = srv.ListenAndServe(ctx, cfg.Server.Addr, shutdownTimeout)
	slog.Info("Server exiting")
	return err
}

// newBanter returns nil when banter is disabled.
func newBanter(ctx context.Context, cfg *config.Config) banter.Generator {
	switch {
	case cfg.Banter.TestMode:
		slog.InfoContext(ctx, "banter running in test mode")
		return banter.Canned{}
	case cfg.BanterEnabled():
		return banter.NewOpenAI(banter.Options{
			APIKey:        cfg.Banter.APIKey,
			Model:         cfg.Banter.Model,
			BaseURL:       cfg.Banter.BaseURL,
			Timeout:       cfg.Banter.Timeout,
			RatePerMinute: cfg.Banter.RatePerMinute,
		})
	default:
		slog.InfoContext(ctx, "no OpenAI API key configured, banter disabled")
		return nil
	}
}
