// Package config 載入服務配置
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/koopa0/pong-match/internal/game"
	"github.com/koopa0/pong-match/internal/manager"
	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		StateInterval   time.Duration `yaml:"state_interval"` // WebSocket 推送間隔
	} `yaml:"server"`

	Game struct {
		TickInterval   time.Duration `yaml:"tick_interval"`
		MaxTickDelta   time.Duration `yaml:"max_tick_delta"`
		WaitingTimeout time.Duration `yaml:"waiting_timeout"`
		StartCountdown float64       `yaml:"start_countdown"` // 秒
		GoalCountdown  float64       `yaml:"goal_countdown"`  // 秒
		Defaults       game.Settings `yaml:"defaults"`
	} `yaml:"game"`

	Postgres struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		MaxConns int32  `yaml:"max_conns"`
		MinConns int32  `yaml:"min_conns"`
	} `yaml:"postgres"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		PoolSize int           `yaml:"pool_size"`
		NameTTL  time.Duration `yaml:"name_ttl"`
	} `yaml:"redis"`

	NATS struct {
		Enabled bool          `yaml:"enabled"`
		URL     string        `yaml:"url"`
		Stream  string        `yaml:"stream"`
		Subject string        `yaml:"subject"`
		MaxAge  time.Duration `yaml:"max_age"`
	} `yaml:"nats"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default 預設配置
func Default() *Config {
	var c Config

	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 15 * time.Second
	c.Server.ShutdownTimeout = 30 * time.Second
	c.Server.StateInterval = time.Second / 30

	def := manager.DefaultConfig()
	c.Game.TickInterval = def.TickInterval
	c.Game.MaxTickDelta = def.MaxTickDelta
	c.Game.WaitingTimeout = def.WaitingTimeout
	c.Game.StartCountdown = def.StartCountdown
	c.Game.GoalCountdown = def.GoalCountdown
	c.Game.Defaults = game.DefaultSettings()

	c.Postgres.Host = "localhost"
	c.Postgres.Port = 5432
	c.Postgres.User = "pong"
	c.Postgres.DBName = "pong"
	c.Postgres.MaxConns = 10
	c.Postgres.MinConns = 2

	c.Redis.Addr = "localhost:6379"
	c.Redis.PoolSize = 10
	c.Redis.NameTTL = time.Hour

	c.NATS.URL = "nats://localhost:4222"

	c.Log.Level = "info"
	c.Log.Format = "text"

	return &c
}

// Load 讀取 yaml 檔案，未設定的欄位保留預設值，最後套用環境變數
//
// 檔案不存在時只使用預設值與環境變數。
func Load(path string) (*Config, error) {
	c := Default()

	// #nosec G304 - path 來自命令行參數
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv 環境變數覆蓋（生產環境常用）
func (c *Config) applyEnv() error {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if os.Getenv("DATABASE_URL") != "" {
		c.Postgres.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
		c.NATS.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate 檢查配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Game.TickInterval <= 0 {
		return fmt.Errorf("game.tick_interval must be positive")
	}
	if err := c.Game.Defaults.Validate(); err != nil {
		return fmt.Errorf("game.defaults: %w", err)
	}
	return nil
}

// PostgresURL 生成 PostgreSQL 連線字串（pgxpool 與 migrate 共用 URL 格式）
func (c *Config) PostgresURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     net.JoinHostPort(c.Postgres.Host, strconv.Itoa(c.Postgres.Port)),
		Path:     "/" + c.Postgres.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// ManagerConfig 轉換為對戰管理器的設定
func (c *Config) ManagerConfig() manager.Config {
	cfg := manager.DefaultConfig()
	cfg.TickInterval = c.Game.TickInterval
	cfg.MaxTickDelta = c.Game.MaxTickDelta
	cfg.WaitingTimeout = c.Game.WaitingTimeout
	cfg.StartCountdown = c.Game.StartCountdown
	cfg.GoalCountdown = c.Game.GoalCountdown
	cfg.Defaults = c.Game.Defaults
	return cfg
}
