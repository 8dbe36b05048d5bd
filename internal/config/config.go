package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TTT"

// Config holds every runtime setting of the server.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Game      GameConfig      `mapstructure:"game"`
	Banter    BanterConfig    `mapstructure:"banter"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

// RedisConfig enables the Redis game store when Addr is set.
type RedisConfig struct {
	Addr string        `mapstructure:"addr"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type GameConfig struct {
	FirstPlayer string        `mapstructure:"first_player"`
	Difficulty  string        `mapstructure:"difficulty"`
	ThinkDelay  time.Duration `mapstructure:"think_delay"`
	MoveTimeout time.Duration `mapstructure:"move_timeout"`
}

type BanterConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	TestMode      bool          `mapstructure:"test_mode"`
	RatePerMinute int           `mapstructure:"rate_per_minute"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "./web")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.ttl", 2*time.Hour)
	v.SetDefault("sqlite.path", "./master.db")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "otel-collector:4317")
	v.SetDefault("telemetry.service_name", "tic-tac-toe-banter")
	v.SetDefault("log.level", "info")
	v.SetDefault("game.first_player", "human")
	v.SetDefault("game.difficulty", "hard")
	v.SetDefault("game.think_delay", 400*time.Millisecond)
	v.SetDefault("game.move_timeout", time.Duration(0))
	v.SetDefault("banter.api_key", "")
	v.SetDefault("banter.model", "gpt-3.5-turbo")
	v.SetDefault("banter.base_url", "")
	v.SetDefault("banter.timeout", 10*time.Second)
	v.SetDefault("banter.test_mode", false)
	v.SetDefault("banter.rate_per_minute", 20)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 72*time.Hour)
}

// Load reads defaults, the optional YAML file at path and TTT_* environment
// variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Banter.APIKey == "" {
		cfg.Banter.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Game.FirstPlayer {
	case "human", "computer", "random":
	default:
		return fmt.Errorf("game.first_player must be human, computer or random, got %q", c.Game.FirstPlayer)
	}
	if c.Game.ThinkDelay < 0 {
		return errors.New("game.think_delay must not be negative")
	}
	if c.Banter.RatePerMinute < 0 {
		return errors.New("banter.rate_per_minute must not be negative")
	}
	return nil
}

// BanterEnabled reports whether moves should trigger banter requests.
func (c *Config) BanterEnabled() bool {
	return c.Banter.APIKey != "" || c.Banter.TestMode
}
