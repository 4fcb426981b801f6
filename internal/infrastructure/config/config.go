package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// EnvAPIKey 覆盖 fugle.api_key 的环境变量
const EnvAPIKey = "FUGLE_API_KEY"

type Config struct {
	App struct {
		LogLevel       string   `toml:"log_level" validate:"oneof=trace debug info warn error"`
		DefaultChannel string   `toml:"default_channel" validate:"oneof=trades candles books aggregates indices"`
		DefaultSymbols []string `toml:"default_symbols"`
		MaxFavorites   int      `toml:"max_favorites" validate:"gte=1,lte=50"`
		StatusEverySec int      `toml:"status_every_sec" validate:"gte=0"`
	} `toml:"app"`

	Fugle struct {
		APIKey            string `toml:"api_key"`
		WsURL             string `toml:"ws_url" validate:"required,url"`
		RestURL           string `toml:"rest_url" validate:"required,url"`
		PingIntervalSec   int    `toml:"ping_interval_sec" validate:"gt=0"`
		ConnectTimeoutSec int    `toml:"connect_timeout_sec" validate:"gt=0"`
		ReadTimeoutSec    int    `toml:"read_timeout_sec" validate:"gt=0"`
		WriteTimeoutSec   int    `toml:"write_timeout_sec" validate:"gt=0"`
	} `toml:"fugle"`

	Reconnect struct {
		MaxRetries     int     `toml:"max_retries" validate:"gte=0"`
		InitialDelayMs int     `toml:"initial_delay_ms" validate:"gt=0"`
		MaxDelayMs     int     `toml:"max_delay_ms" validate:"gtefield=InitialDelayMs"`
		Multiplier     float64 `toml:"multiplier" validate:"gte=1"`
	} `toml:"reconnect"`

	Network struct {
		Enabled       bool   `toml:"enabled"`
		ProbeAddr     string `toml:"probe_addr"`
		ProbeEverySec int    `toml:"probe_every_sec" validate:"gte=0"`
	} `toml:"network"`

	SQLite struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"sqlite"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn"`
	} `toml:"postgres"`

	Redis struct {
		Enabled      bool   `toml:"enabled"`
		Addr         string `toml:"addr"`
		Password     string `toml:"password"`
		DB           int    `toml:"db" validate:"gte=0"`
		Prefix       string `toml:"prefix"`
		TTLSeconds   int    `toml:"ttl_seconds" validate:"gte=0"`
		StateStream  string `toml:"state_stream"`
		QuoteChannel string `toml:"quote_channel"`
	} `toml:"redis"`

	HTTP struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"http"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return finish(&cfg)
}

// Parse 从 TOML 文本加载（测试与内嵌默认配置使用）
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}
	return finish(&cfg)
}

// Default 全部使用默认值
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	applyEnv(&cfg)
	cfg.App.DefaultSymbols = normalizeSymbols(cfg.App.DefaultSymbols)
	return &cfg
}

func finish(cfg *Config) (*Config, error) {
	applyDefaults(cfg)
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.DefaultChannel == "" {
		cfg.App.DefaultChannel = "aggregates"
	}
	if len(cfg.App.DefaultSymbols) == 0 {
		cfg.App.DefaultSymbols = []string{"2330", "2317", "2454"}
	}
	if cfg.App.MaxFavorites <= 0 {
		cfg.App.MaxFavorites = 10
	}

	if cfg.Fugle.WsURL == "" {
		cfg.Fugle.WsURL = "wss://api.fugle.tw/marketdata/v1.0/stock/streaming"
	}
	if cfg.Fugle.RestURL == "" {
		cfg.Fugle.RestURL = "https://api.fugle.tw/marketdata/v1.0/stock/"
	}
	if cfg.Fugle.PingIntervalSec <= 0 {
		cfg.Fugle.PingIntervalSec = 60
	}
	if cfg.Fugle.ConnectTimeoutSec <= 0 {
		cfg.Fugle.ConnectTimeoutSec = 10
	}
	if cfg.Fugle.ReadTimeoutSec <= 0 {
		cfg.Fugle.ReadTimeoutSec = 30
	}
	if cfg.Fugle.WriteTimeoutSec <= 0 {
		cfg.Fugle.WriteTimeoutSec = 30
	}

	if cfg.Reconnect.MaxRetries == 0 {
		cfg.Reconnect.MaxRetries = 5
	}
	if cfg.Reconnect.InitialDelayMs <= 0 {
		cfg.Reconnect.InitialDelayMs = 1000
	}
	if cfg.Reconnect.MaxDelayMs <= 0 {
		cfg.Reconnect.MaxDelayMs = 30000
	}
	if cfg.Reconnect.Multiplier == 0 {
		cfg.Reconnect.Multiplier = 2
	}

	if cfg.Network.ProbeAddr == "" {
		cfg.Network.ProbeAddr = "api.fugle.tw:443"
	}
	if cfg.Network.ProbeEverySec <= 0 {
		cfg.Network.ProbeEverySec = 10
	}

	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "data/quotewatch.db"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "quotewatch"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.Fugle.APIKey = v
	}
}

var structValidator = validator.New()

func validate(cfg *Config) error {
	cfg.App.DefaultSymbols = normalizeSymbols(cfg.App.DefaultSymbols)
	cfg.App.LogLevel = strings.ToLower(strings.TrimSpace(cfg.App.LogLevel))

	if err := structValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if len(cfg.App.DefaultSymbols) == 0 {
		return errors.New("app.default_symbols is empty")
	}
	if cfg.Postgres.Enabled && strings.TrimSpace(cfg.Postgres.DSN) == "" {
		return errors.New("postgres.dsn empty but enabled")
	}
	if cfg.SQLite.Enabled && strings.TrimSpace(cfg.SQLite.Path) == "" {
		return errors.New("sqlite.path empty but enabled")
	}
	return nil
}

// RequireAPIKey 连接行情服务前检查
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.Fugle.APIKey) == "" {
		return fmt.Errorf("fugle.api_key is empty (set it in config or %s)", EnvAPIKey)
	}
	return nil
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Fugle.PingIntervalSec) * time.Second
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Fugle.ConnectTimeoutSec) * time.Second
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Fugle.ReadTimeoutSec) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Fugle.WriteTimeoutSec) * time.Second
}

func (c *Config) StatusEvery() time.Duration {
	return time.Duration(c.App.StatusEverySec) * time.Second
}

func (c *Config) ProbeEvery() time.Duration {
	return time.Duration(c.Network.ProbeEverySec) * time.Second
}

func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
