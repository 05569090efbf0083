package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile  = "config.yaml"
	DefaultEnvFile     = ".env"
	DefaultKeyword     = "ChatGPT"
	DefaultProvider    = "algolia"
	DefaultSkew        = 5 * time.Hour
	DefaultTimeout     = 30 * time.Second
	DefaultWorkers     = 4
	DefaultCache       = "memory"
	DefaultCacheTTL    = 30 * time.Minute
	DefaultAPIKeyEnv   = "OPENAI_API_KEY"
	DefaultTokenEnv    = "telegram_token"
	DefaultChatIDEnv   = "telegram_chat_id"
	DefaultInterval    = time.Second
	DefaultCron        = "33 * * * *"
	DefaultStoragePath = ".hnpager/hnpager.db"
	DefaultRetainDays  = 30
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"

	// DefaultChatID is used when the chat id variable is set but not a number.
	DefaultChatID int64 = 2142063265

	// StorageDisabled as storage.path turns the run journal off.
	StorageDisabled = "none"

	keywordEnv = "KEYWORD"
)

var (
	ErrMissingToken  = errors.New("telegram bot token is not set")
	ErrMissingChatID = errors.New("telegram chat id is not set")
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "5h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Search    SearchConfig    `yaml:"search"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Summarize SummarizeConfig `yaml:"summarize"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Storage   StorageConfig   `yaml:"storage"`
	Privacy   PrivacyConfig   `yaml:"privacy"`
	Log       LogConfig       `yaml:"log"`
}

type SearchConfig struct {
	Keyword  string   `yaml:"keyword"`
	Provider string   `yaml:"provider"`
	BaseURL  string   `yaml:"base_url"`
	Skew     Duration `yaml:"skew"`
}

type FetchConfig struct {
	Timeout   Duration    `yaml:"timeout"`
	Workers   int         `yaml:"workers"`
	UserAgent string      `yaml:"user_agent"`
	Cache     string      `yaml:"cache"`
	CacheTTL  Duration    `yaml:"cache_ttl"`
	Redis     RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SummarizeConfig struct {
	Model         string  `yaml:"model"`
	Endpoint      string  `yaml:"endpoint"`
	APIKeyEnv     string  `yaml:"api_key_env"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	Attempts      int     `yaml:"attempts"`
	MinWords      int     `yaml:"min_words"`
	MaxInputWords int     `yaml:"max_input_words"`

	// Resolved from env var at load time.
	APIKey string `yaml:"-"`
}

type TelegramConfig struct {
	TokenEnv  string   `yaml:"token_env"`
	ChatIDEnv string   `yaml:"chat_id_env"`
	BaseURL   string   `yaml:"base_url"`
	Interval  Duration `yaml:"interval"`

	// Resolved from env vars at load time.
	Token          string `yaml:"-"`
	ChatID         int64  `yaml:"-"`
	ChatIDSet      bool   `yaml:"-"`
	ChatIDFallback bool   `yaml:"-"` // set but unparseable, DefaultChatID in use
}

type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

// JournalEnabled reports whether runs are recorded.
func (s StorageConfig) JournalEnabled() bool {
	return s.Path != StorageDisabled
}

type PrivacyConfig struct {
	Redact RedactConfig `yaml:"redact"`
}

type RedactConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadEnvFile loads variables from a dotenv file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
// A missing config.yaml yields the defaults.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	var cfg Config

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// CheckDelivery reports whether the Telegram credentials needed to send are present.
func (c *Config) CheckDelivery() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("%w (set %s)", ErrMissingToken, c.Telegram.TokenEnv)
	}
	if !c.Telegram.ChatIDSet {
		return fmt.Errorf("%w (set %s)", ErrMissingChatID, c.Telegram.ChatIDEnv)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Search.Keyword == "" {
		cfg.Search.Keyword = DefaultKeyword
	}
	if cfg.Search.Provider == "" {
		cfg.Search.Provider = DefaultProvider
	}
	if cfg.Search.Skew.Duration == 0 {
		cfg.Search.Skew.Duration = DefaultSkew
	}
	if cfg.Fetch.Timeout.Duration == 0 {
		cfg.Fetch.Timeout.Duration = DefaultTimeout
	}
	if cfg.Fetch.Workers == 0 {
		cfg.Fetch.Workers = DefaultWorkers
	}
	if cfg.Fetch.Cache == "" {
		cfg.Fetch.Cache = DefaultCache
	}
	if cfg.Fetch.CacheTTL.Duration == 0 {
		cfg.Fetch.CacheTTL.Duration = DefaultCacheTTL
	}
	if cfg.Summarize.APIKeyEnv == "" {
		cfg.Summarize.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.Telegram.TokenEnv == "" {
		cfg.Telegram.TokenEnv = DefaultTokenEnv
	}
	if cfg.Telegram.ChatIDEnv == "" {
		cfg.Telegram.ChatIDEnv = DefaultChatIDEnv
	}
	if cfg.Telegram.Interval.Duration == 0 {
		cfg.Telegram.Interval.Duration = DefaultInterval
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = DefaultCron
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.RetainDays == 0 {
		cfg.Storage.RetainDays = DefaultRetainDays
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

func resolveEnv(cfg *Config) {
	if kw := strings.TrimSpace(os.Getenv(keywordEnv)); kw != "" {
		cfg.Search.Keyword = kw
	}

	cfg.Summarize.APIKey = os.Getenv(cfg.Summarize.APIKeyEnv)
	cfg.Telegram.Token = strings.TrimSpace(os.Getenv(cfg.Telegram.TokenEnv))

	raw, ok := os.LookupEnv(cfg.Telegram.ChatIDEnv)
	if !ok {
		return
	}
	cfg.Telegram.ChatIDSet = true
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		cfg.Telegram.ChatID = DefaultChatID
		cfg.Telegram.ChatIDFallback = true
		return
	}
	cfg.Telegram.ChatID = id
}

func validate(cfg *Config) error {
	switch cfg.Search.Provider {
	case "algolia", "hnrss":
		// valid
	default:
		return fmt.Errorf("search.provider: unknown provider %q (want algolia or hnrss)", cfg.Search.Provider)
	}
	if cfg.Search.Skew.Duration < 0 {
		return errors.New("search.skew: must not be negative")
	}

	if cfg.Fetch.Workers < 0 {
		return errors.New("fetch.workers: must not be negative")
	}
	switch cfg.Fetch.Cache {
	case "none", "memory":
		// valid
	case "redis":
		if cfg.Fetch.Redis.Addr == "" {
			return errors.New("fetch.redis.addr: required when fetch.cache is redis")
		}
	default:
		return fmt.Errorf("fetch.cache: unknown cache %q (want none, memory or redis)", cfg.Fetch.Cache)
	}

	if cfg.Summarize.Temperature < 0 || cfg.Summarize.Temperature > 2 {
		return fmt.Errorf("summarize.temperature: %v out of range [0, 2]", cfg.Summarize.Temperature)
	}
	if cfg.Summarize.Attempts < 0 {
		return errors.New("summarize.attempts: must not be negative")
	}

	if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}

	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "text", "json":
		// valid
	default:
		return fmt.Errorf("log.format: unknown format %q (want text or json)", cfg.Log.Format)
	}

	return nil
}
