package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Загрузка конфигурации из config.yaml через cleanenv.
// Без файла и переменных окружения значения по умолчанию совпадают
// с фиксированными константами движка обновления.

type Config struct {
	Refresh   RefreshConfig   `yaml:"refresh"`
	CoinGecko CoinGeckoConfig `yaml:"coingecko"`
	Favorites FavoritesConfig `yaml:"favorites"`
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Logger    LoggerConfig    `yaml:"logger"`
}

type RefreshConfig struct {
	DefaultInterval  time.Duration `yaml:"default_interval" env-default:"30s"`
	MaxInterval      time.Duration `yaml:"max_interval" env-default:"300s"`
	MaxHistoryPoints int           `yaml:"max_history_points" env-default:"120"`
	SinkTimeout      time.Duration `yaml:"sink_timeout" env-default:"3s"`
}

type CoinGeckoConfig struct {
	BaseURL        string        `yaml:"base_url" env:"COINGECKO_BASE_URL" env-default:"https://api.coingecko.com/api/v3"`
	Currency       string        `yaml:"currency" env-default:"usd"`
	PerPage        int           `yaml:"per_page" env-default:"10"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env-default:"5s"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env-default:"5s"`
	UserAgent      string        `yaml:"user_agent" env-default:"coin-dashboard/1.0"`
}

type FavoritesConfig struct {
	DataDir  string `yaml:"data_dir" env:"DATA_DIR" env-default:"data"`
	FileName string `yaml:"file_name" env-default:"favorites.txt"`
}

type ServerConfig struct {
	Enabled         bool          `yaml:"enabled" env-default:"true"`
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"5s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled" env:"POSTGRES_ENABLED" env-default:"false"`
	Host            string        `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User            string        `yaml:"user" env:"POSTGRES_USER" env-default:"postgres"`
	Password        string        `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"postgres"`
	DBName          string        `yaml:"dbname" env:"POSTGRES_DB" env-default:"crypto"`
	SSLMode         string        `yaml:"sslmode" env-default:"disable"`
	Timeout         time.Duration `yaml:"timeout" env-default:"5s"`
	MaxConns        int32         `yaml:"max_conns" env-default:"4"`
	MinConns        int32         `yaml:"min_conns" env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env-default:"30m"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
	Key      string `yaml:"key" env-default:"dashboard:snapshot"`
}

type TelegramConfig struct {
	Enabled         bool          `yaml:"enabled" env:"TELEGRAM_ENABLED" env-default:"false"`
	Token           string        `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	LongPollTimeout time.Duration `yaml:"long_poll_timeout" env-default:"10s"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"` // debug|info|warn|error
	Format string `yaml:"format" env-default:"text"`                // text|json
}

// LoadConfig — читает путь из флага -c или CONFIG_PATH и загружает конфиг.
func LoadConfig() (*Config, error) {
	return Load(fetchConfigPath())
}

// Load — файл (если задан), затем переменные окружения, затем валидация.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate — проверка согласованности интервалов и лимитов.
func (c *Config) Validate() error {
	r := c.Refresh
	if r.DefaultInterval <= 0 {
		return errors.New("refresh.default_interval must be positive")
	}
	if r.MaxInterval < r.DefaultInterval {
		return errors.New("refresh.max_interval must be >= default_interval")
	}
	if r.MaxHistoryPoints <= 0 {
		return errors.New("refresh.max_history_points must be positive")
	}
	if c.CoinGecko.BaseURL == "" {
		return errors.New("coingecko.base_url is empty")
	}
	if c.CoinGecko.PerPage <= 0 {
		return errors.New("coingecko.per_page must be positive")
	}
	if c.Favorites.DataDir == "" || c.Favorites.FileName == "" {
		return errors.New("favorites path is empty")
	}
	return nil
}

func fetchConfigPath() string {
	var res string
	flag.StringVar(&res, "c", "", "config file path")
	flag.Parse()
	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}
