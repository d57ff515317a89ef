package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the full configuration for the chronicle server.
type Config struct {
	// Server settings
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// PostgreSQL settings
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"chronicle"`
	DBPassword string `envconfig:"DB_PASSWORD" default:""`
	DBName     string `envconfig:"DB_NAME" default:"chronicle"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns int    `envconfig:"DB_MAX_CONNECTIONS" default:"10"`

	// Redis settings (per-scene turn locks)
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	TurnLockTTL   time.Duration `envconfig:"TURN_LOCK_TTL" default:"2m"`

	// Oracle (LLM) settings
	OracleAPIKey     string        `envconfig:"ORACLE_API_KEY" required:"true"`
	OracleBaseURL    string        `envconfig:"ORACLE_BASE_URL" default:""`
	OracleModel      string        `envconfig:"ORACLE_MODEL" default:"gpt-4o"`
	OracleTimeout    time.Duration `envconfig:"ORACLE_TIMEOUT" default:"90s"`
	OracleMaxRetries int           `envconfig:"ORACLE_MAX_RETRIES" default:"3"`

	// Media pipeline settings. An empty renderer URL disables image
	// generation; speech is disabled by SPEECH_ENABLED=false. Either way the
	// turn still succeeds with null artifacts.
	ImageRendererURL     string        `envconfig:"IMAGE_RENDERER_URL" default:""`
	ImageRendererTimeout time.Duration `envconfig:"IMAGE_RENDERER_TIMEOUT" default:"60s"`
	ImageRatio           string        `envconfig:"IMAGE_RATIO" default:"16:9"`
	SpeechEnabled        bool          `envconfig:"SPEECH_ENABLED" default:"true"`
	SpeechVoice          string        `envconfig:"SPEECH_VOICE" default:"onyx"`
	SpeechTimeout        time.Duration `envconfig:"SPEECH_TIMEOUT" default:"60s"`

	// Ruleset settings
	ActionPointsPerTurn int `envconfig:"ACTION_POINTS_PER_TURN" default:"3"`
	MemoryLimit         int `envconfig:"MEMORY_LIMIT" default:"5"`
	HistoryWindow       int `envconfig:"HISTORY_WINDOW" default:"8"`
	PromptTokenBudget   int `envconfig:"PROMPT_TOKEN_BUDGET" default:"6000"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load chronicle server config: %w", err)
	}
	return &cfg, nil
}
