package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Identity    IdentityConfig    `yaml:"identity"`
	Entitlement EntitlementConfig `yaml:"entitlement"`
	Payment     PaymentConfig     `yaml:"payment"`
	Messaging   MessagingConfig   `yaml:"messaging"`
	Game        GameConfig        `yaml:"game"`
	Cycle       CycleConfig       `yaml:"cycle"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Archive     ArchiveConfig     `yaml:"archive"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	Enabled      bool          `yaml:"enabled"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// IdentityConfig holds the social-graph lookup API configuration
type IdentityConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// EntitlementConfig holds the asset-ownership gate configuration
type EntitlementConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Timeout         time.Duration `yaml:"timeout"`
	ContractAddress string        `yaml:"contract_address"`
	Chains          []string      `yaml:"chains"`
}

// PaymentConfig holds the purchase/payout collaborator configuration
type PaymentConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	CreditPrice float64       `yaml:"credit_price"`
}

// MessagingConfig holds the decentralized messaging client configuration
type MessagingConfig struct {
	PrivateKey       string        `yaml:"private_key"`
	RecipientAddress string        `yaml:"recipient_address"`
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
}

// StipendMode controls what a successful entitlement check does to credits.
type StipendMode string

const (
	// StipendReplace overwrites credits with the stipend. This mirrors the
	// shipped behavior: a player can drain credits and re-trigger the check
	// to refill, which is likely a bug but is what the product does today.
	StipendReplace StipendMode = "replace"
	// StipendAdd adds the stipend to the existing balance.
	StipendAdd StipendMode = "add"
)

// GameConfig holds session state machine configuration
type GameConfig struct {
	InitialLives    int           `yaml:"initial_lives"`
	InitialCredits  int           `yaml:"initial_credits"`
	Stipend         int           `yaml:"stipend"`
	StipendMode     StipendMode   `yaml:"stipend_mode"`
	ScoreInterval   time.Duration `yaml:"score_interval"`
	DifficultyStep  float64       `yaml:"difficulty_step"`
	DifficultyEvery int64         `yaml:"difficulty_every"`
}

// CycleConfig holds the daily reset/award cycle configuration
type CycleConfig struct {
	BountyAmount   float64       `yaml:"bounty_amount"`
	PayoutAttempts int           `yaml:"payout_attempts"`
	PayoutDelay    time.Duration `yaml:"payout_delay"`
}

// LeaderboardConfig holds standings query limits
type LeaderboardConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// ArchiveConfig holds the standings archiver configuration
type ArchiveConfig struct {
	Interval time.Duration `yaml:"interval"`
	Enabled  bool          `yaml:"enabled"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "frame-scores"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "frame-consumer"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}

	// Collaborator defaults
	if c.Identity.Timeout == 0 {
		c.Identity.Timeout = 10 * time.Second
	}
	if c.Entitlement.Timeout == 0 {
		c.Entitlement.Timeout = 10 * time.Second
	}
	if len(c.Entitlement.Chains) == 0 {
		c.Entitlement.Chains = []string{"ethereum", "polygon", "base", "zora"}
	}
	if c.Payment.Timeout == 0 {
		c.Payment.Timeout = 15 * time.Second
	}
	if c.Payment.CreditPrice == 0 {
		c.Payment.CreditPrice = 0.001
	}
	if c.Messaging.Timeout == 0 {
		c.Messaging.Timeout = 10 * time.Second
	}

	// Game defaults
	if c.Game.InitialLives == 0 {
		c.Game.InitialLives = 3
	}
	if c.Game.InitialCredits == 0 {
		c.Game.InitialCredits = 3
	}
	if c.Game.Stipend == 0 {
		c.Game.Stipend = 3
	}
	if c.Game.StipendMode == "" {
		c.Game.StipendMode = StipendReplace
	}
	if c.Game.ScoreInterval == 0 {
		c.Game.ScoreInterval = 3 * time.Second
	}
	if c.Game.DifficultyStep == 0 {
		c.Game.DifficultyStep = 0.1
	}
	if c.Game.DifficultyEvery == 0 {
		c.Game.DifficultyEvery = 10
	}

	// Cycle defaults
	if c.Cycle.BountyAmount == 0 {
		c.Cycle.BountyAmount = 0.01
	}
	if c.Cycle.PayoutAttempts == 0 {
		c.Cycle.PayoutAttempts = 3
	}
	if c.Cycle.PayoutDelay == 0 {
		c.Cycle.PayoutDelay = 2 * time.Second
	}

	// Leaderboard defaults
	if c.Leaderboard.DefaultLimit == 0 {
		c.Leaderboard.DefaultLimit = 100
	}
	if c.Leaderboard.MaxLimit == 0 {
		c.Leaderboard.MaxLimit = 1000
	}

	// Archive defaults
	if c.Archive.Interval == 0 {
		c.Archive.Interval = 15 * time.Minute
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Archive.Enabled = true
	return cfg
}
