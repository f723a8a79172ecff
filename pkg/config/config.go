package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"SpreadScout/pkg/util"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" toml:"environment" default:"development" validate:"oneof=development staging production test"`
	Server      ServerConfig     `yaml:"server" toml:"server"`
	Logging     LoggingConfig    `yaml:"logging" toml:"logging"`
	Metrics     MetricsConfig    `yaml:"metrics" toml:"metrics"`
	Kafka       KafkaConfig      `yaml:"kafka" toml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse" toml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis" toml:"redis"`
	Queue       QueueConfig      `yaml:"queue" toml:"queue"`
	Feed        FeedConfig       `yaml:"feed" toml:"feed"`
	Collector   CollectorConfig  `yaml:"collector" toml:"collector"`
	Liquidity   LiquidityConfig  `yaml:"liquidity" toml:"liquidity"`
	Discovery   DiscoveryConfig  `yaml:"discovery" toml:"discovery"`
	Builder     BuilderConfig    `yaml:"builder" toml:"builder"`
	Pricing     PricingConfig    `yaml:"pricing" toml:"pricing"`
	Rates       RatesConfig      `yaml:"rates" toml:"rates"`
	Ranking     RankingConfig    `yaml:"ranking" toml:"ranking"`
	Notify      NotifyConfig     `yaml:"notify" toml:"notify"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" toml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" toml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" default:"10s"`
	CORS            bool          `yaml:"cors" toml:"cors" default:"true"`
	// Token bucket for POST /api/runs, per client IP.
	RunBurst  int     `yaml:"run_burst" toml:"run_burst" default:"3" validate:"gte=1"`
	RunPerMin float64 `yaml:"run_per_minute" toml:"run_per_minute" default:"6" validate:"gt=0"`
}

type LoggingConfig struct {
	Level         string `yaml:"level" toml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format        string `yaml:"format" toml:"format" default:"json" validate:"oneof=json console"`
	Output        string `yaml:"output" toml:"output" default:"stdout"`
	CollectErrors bool   `yaml:"collect_errors" toml:"collect_errors"`
}

type MetricsConfig struct {
	Enabled     bool          `yaml:"enabled" toml:"enabled" default:"true"`
	SlowRequest time.Duration `yaml:"slow_request" toml:"slow_request" default:"1s"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" toml:"enabled"`
	Brokers []string `yaml:"brokers" toml:"brokers"`
	Topics  struct {
		Snapshots string `yaml:"snapshots" toml:"snapshots" default:"chains.snapshots"`
		Ranked    string `yaml:"ranked" toml:"ranked" default:"spreads.ranked"`
		Logs      string `yaml:"logs" toml:"logs" default:"spreadscout.logs"`
		DLQ       string `yaml:"dlq" toml:"dlq" default:"chains.snapshots.dlq"`
	} `yaml:"topics" toml:"topics"`
	Producer struct {
		Compression  string        `yaml:"compression" toml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
		RequiredAcks int           `yaml:"required_acks" toml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
		BatchSize    int           `yaml:"batch_size" toml:"batch_size" default:"100" validate:"gte=1"`
		BatchTimeout time.Duration `yaml:"batch_timeout" toml:"batch_timeout" default:"50ms"`
		AutoCreate   bool          `yaml:"auto_create_topics" toml:"auto_create_topics"`
	} `yaml:"producer" toml:"producer"`
	Consumer struct {
		GroupID     string        `yaml:"group_id" toml:"group_id" default:"spreadscout"`
		Workers     int           `yaml:"workers" toml:"workers" default:"1" validate:"gte=1"`
		RetryMax    int           `yaml:"retry_max" toml:"retry_max" default:"3" validate:"gte=0"`
		BackoffMin  time.Duration `yaml:"backoff_min" toml:"backoff_min" default:"200ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" toml:"backoff_max" default:"10s"`
		StartOffset string        `yaml:"start_offset" toml:"start_offset" default:"latest" validate:"oneof=earliest latest"`
	} `yaml:"consumer" toml:"consumer"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled" toml:"enabled"`
	Host             string        `yaml:"host" toml:"host" default:"localhost"`
	Port             int           `yaml:"port" toml:"port" default:"9000"`
	Database         string        `yaml:"database" toml:"database" default:"spreadscout" validate:"required"`
	User             string        `yaml:"user" toml:"user" default:"default"`
	Password         string        `yaml:"password" toml:"password"`
	UseHTTP          bool          `yaml:"use_http" toml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert" toml:"async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" toml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" toml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" toml:"max_execution_time" default:"30s"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Addr     string `yaml:"addr" toml:"addr" default:"localhost:6379"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db" validate:"gte=0,lte=15"`
	PoolSize int    `yaml:"pool_size" toml:"pool_size" default:"10" validate:"gte=1"`
	Prefix   string `yaml:"prefix" toml:"prefix" default:"spreadscout"`
	// In-process cache sizing; used alone when Redis is disabled and as L1 otherwise.
	MemoryMaxSize int           `yaml:"memory_max_size" toml:"memory_max_size" default:"1000" validate:"gte=1"`
	MemoryTTL     time.Duration `yaml:"memory_ttl" toml:"memory_ttl" default:"1m"`
}

type QueueConfig struct {
	Workers    int           `yaml:"workers" toml:"workers" default:"1" validate:"gte=1"`
	RetryLimit int           `yaml:"retry_limit" toml:"retry_limit" default:"2" validate:"gte=0"`
	RetryDelay time.Duration `yaml:"retry_delay" toml:"retry_delay" default:"30s"`
	Buffer     int           `yaml:"buffer" toml:"buffer" default:"16" validate:"gte=1"`
}

type FeedConfig struct {
	URL            string        `yaml:"url" toml:"url" validate:"omitempty,url"`
	Token          string        `yaml:"token" toml:"token"`
	Channel        string        `yaml:"channel" toml:"channel" default:"greeks"`
	BufferSize     int           `yaml:"buffer_size" toml:"buffer_size" default:"1024" validate:"gte=1"`
	PingInterval   time.Duration `yaml:"ping_interval" toml:"ping_interval" default:"20s"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" toml:"reconnect_delay" default:"5s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" toml:"write_timeout" default:"5s" validate:"gt=0"`
}

type CollectorConfig struct {
	BatchSize      int           `yaml:"batch_size" toml:"batch_size" default:"300" validate:"gte=1"`
	CoverageTarget float64       `yaml:"coverage_target" toml:"coverage_target" default:"0.70" validate:"gt=0,lte=1"`
	BatchTimeout   time.Duration `yaml:"batch_timeout" toml:"batch_timeout" default:"8s" validate:"gt=0"`
	RetryTimeout   time.Duration `yaml:"retry_timeout" toml:"retry_timeout" default:"4s" validate:"gte=0"`
	PollInterval   time.Duration `yaml:"poll_interval" toml:"poll_interval" default:"300ms" validate:"gt=0"`
}

type LiquidityConfig struct {
	MinScore float64 `yaml:"min_score" toml:"min_score" default:"40" validate:"gte=0,lte=100"`
}

type DiscoveryConfig struct {
	Workers           int           `yaml:"workers" toml:"workers" default:"4" validate:"gte=1"`
	LockTTL           time.Duration `yaml:"lock_ttl" toml:"lock_ttl" default:"5m"`
	SideEffectTimeout time.Duration `yaml:"side_effect_timeout" toml:"side_effect_timeout" default:"15s"`
}

type BuilderConfig struct {
	MinDTE     int     `yaml:"min_dte" toml:"min_dte" default:"7" validate:"gte=0"`
	MaxDTE     int     `yaml:"max_dte" toml:"max_dte" default:"45" validate:"gte=0"`
	MinWidth   float64 `yaml:"min_width" toml:"min_width" default:"2.5" validate:"gt=0"`
	MaxWidth   float64 `yaml:"max_width" toml:"max_width" default:"10" validate:"gt=0"`
	MinCredit  float64 `yaml:"min_credit" toml:"min_credit" default:"0.10" validate:"gte=0"`
	MinROI     float64 `yaml:"min_roi" toml:"min_roi" default:"5" validate:"gte=0"`
	MaxROI     float64 `yaml:"max_roi" toml:"max_roi" default:"50" validate:"gt=0"`
	SuspectROI float64 `yaml:"suspect_roi" toml:"suspect_roi" default:"100" validate:"gt=0"`
	MinDelta   float64 `yaml:"min_delta" toml:"min_delta" default:"0.15" validate:"gte=0,lte=1"`
	MaxDelta   float64 `yaml:"max_delta" toml:"max_delta" default:"0.35" validate:"gte=0,lte=1"`
	Lookahead  int     `yaml:"lookahead" toml:"lookahead" default:"4" validate:"gte=1"`
}

type PricingConfig struct {
	Method string `yaml:"method" toml:"method" default:"black_scholes" validate:"oneof=black_scholes delta"`
}

type RatesConfig struct {
	URL         string        `yaml:"url" toml:"url" default:"https://fred.stlouisfed.org/graph/fredgraph.csv" validate:"url"`
	Series      string        `yaml:"series" toml:"series" default:"DGS3MO"`
	Timeout     time.Duration `yaml:"timeout" toml:"timeout" default:"10s"`
	Attempts    int           `yaml:"attempts" toml:"attempts" default:"3" validate:"gte=1"`
	BackoffBase time.Duration `yaml:"backoff_base" toml:"backoff_base" default:"1s"`
	Fallback    float64       `yaml:"fallback" toml:"fallback" default:"0.042" validate:"gte=0,lt=1"`
	MaxRate     float64       `yaml:"max_rate" toml:"max_rate" default:"0.25" validate:"gt=0,lt=1"`
}

type RankingConfig struct {
	WeightScore    float64 `yaml:"weight_score" toml:"weight_score" default:"0.4" validate:"gte=0"`
	WeightPoP      float64 `yaml:"weight_pop" toml:"weight_pop" default:"0.3" validate:"gte=0"`
	WeightROI      float64 `yaml:"weight_roi" toml:"weight_roi" default:"0.2" validate:"gte=0"`
	WeightDistance float64 `yaml:"weight_distance" toml:"weight_distance" default:"0.1" validate:"gte=0"`
	EnterPoPMin    float64 `yaml:"enter_pop_min" toml:"enter_pop_min" default:"70" validate:"gte=0,lte=100"`
	EnterROIMin    float64 `yaml:"enter_roi_min" toml:"enter_roi_min" default:"20" validate:"gte=0"`
	WatchPoPMin    float64 `yaml:"watch_pop_min" toml:"watch_pop_min" default:"60" validate:"gte=0,lte=100"`
	WatchROIMin    float64 `yaml:"watch_roi_min" toml:"watch_roi_min" default:"30" validate:"gte=0"`
}

type NotifyConfig struct {
	Telegram struct {
		Enabled    bool          `yaml:"enabled" toml:"enabled"`
		BotToken   string        `yaml:"bot_token" toml:"bot_token"`
		ChatID     string        `yaml:"chat_id" toml:"chat_id"`
		MaxRetries int           `yaml:"max_retries" toml:"max_retries" default:"3" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" toml:"retry_delay" default:"1s"`
		MaxRows    int           `yaml:"max_rows" toml:"max_rows" default:"10" validate:"gte=1"`
	} `yaml:"telegram" toml:"telegram"`
}

// Load reads a YAML (or .toml) file, fills defaults and validates.
func Load(path string) (*Config, error) {
	c, err := decode(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv is Load with .env loading and environment overrides applied
// before validation. A missing .env file is not an error.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := decode(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Default returns a configuration made of defaults only.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

func decode(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(b)).Decode(c); err != nil {
			return nil, fmt.Errorf("parse toml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("FEED_URL", &c.Feed.URL)
	set("FEED_TOKEN", &c.Feed.Token)
	set("REDIS_ADDR", &c.Redis.Addr)
	set("TELEGRAM_BOT_TOKEN", &c.Notify.Telegram.BotToken)
	set("TELEGRAM_CHAT_ID", &c.Notify.Telegram.ChatID)
	set("FRED_API_URL", &c.Rates.URL)
	set("POP_METHOD", &c.Pricing.Method)
	set("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	c.Server.Port = util.ParseIntDefault(getenv("PORT"), c.Server.Port)
	c.Liquidity.MinScore = util.ParseFloatDefault(getenv("MIN_LIQUIDITY_SCORE"), c.Liquidity.MinScore)
}

var validate = validator.New()

// Validate runs tag validation, then the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	b := c.Builder
	switch {
	case b.MinDTE > b.MaxDTE:
		return fmt.Errorf("builder: min_dte %d > max_dte %d", b.MinDTE, b.MaxDTE)
	case b.MinWidth > b.MaxWidth:
		return fmt.Errorf("builder: min_width %.2f > max_width %.2f", b.MinWidth, b.MaxWidth)
	case b.MinROI > b.MaxROI:
		return fmt.Errorf("builder: min_roi %.2f > max_roi %.2f", b.MinROI, b.MaxROI)
	case b.SuspectROI < b.MaxROI:
		return fmt.Errorf("builder: suspect_roi %.2f below max_roi %.2f", b.SuspectROI, b.MaxROI)
	case b.MinDelta > b.MaxDelta:
		return fmt.Errorf("builder: min_delta %.2f > max_delta %.2f", b.MinDelta, b.MaxDelta)
	}

	r := c.Ranking
	if sum := r.WeightScore + r.WeightPoP + r.WeightROI + r.WeightDistance; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("ranking: weights sum to %.4f, want 1", sum)
	}
	if r.EnterPoPMin < r.WatchPoPMin {
		return fmt.Errorf("ranking: enter_pop_min %.1f below watch_pop_min %.1f", r.EnterPoPMin, r.WatchPoPMin)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka: brokers are required when enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return errors.New("clickhouse: host is required when enabled")
	}
	if t := c.Notify.Telegram; t.Enabled && (t.BotToken == "" || t.ChatID == "") {
		return errors.New("notify.telegram: bot_token and chat_id are required when enabled")
	}
	return nil
}
