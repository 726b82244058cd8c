// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment
// variables, with sane defaults for local development.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server holds transport configuration.
type Server struct {
	HTTP *ServerHTTP
}

// ServerHTTP holds the HTTP listener configuration.
type ServerHTTP struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// Data holds persistence configuration.
type Data struct {
	Database *Database
	Redis    *Redis
}

// Database holds the MySQL connection configuration.
type Database struct {
	Driver string
	Source string
}

// Redis holds the Redis connection configuration.
type Redis struct {
	Network      string
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// TierModel is one (provider, model) pair inside a tier's preference list.
type TierModel struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

// AI holds provider credentials and the tier-to-model mapping.
// Tier keys are lowercase ("light", "medium", "heavy"); each value is an
// ordered preference list: the first entry is the preferred selection,
// later entries feed failover.
type AI struct {
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	RequestTimeout   time.Duration
	Tiers            map[string][]TierModel
}

// Circuit holds circuit breaker tuning.
type Circuit struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	HalfOpenAttempts int
}

// Board holds the split-flap display geometry.
type Board struct {
	Rows int
	Cols int
}

// Prompt holds prompt template loading configuration.
type Prompt struct {
	Dir       string
	CacheSize int
}

// Cron holds the cron specs for the background jobs.
type Cron struct {
	GenerateSpec string
	RecoverySpec string
}

// Log holds logging configuration.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}

// Bootstrap is the root configuration structure.
type Bootstrap struct {
	Server  *Server
	Data    *Data
	AI      *AI
	Circuit *Circuit
	Board   *Board
	Prompt  *Prompt
	Cron    *Cron
	Log     *Log
}

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies
// defaults, and allows overrides from environment variables prefixed
// with FLAPBOARD_.
//
// Configuration priority: Environment variables > Config file > Defaults
//
// Required environment variables (unless set in the config file):
//   - MYSQL_DSN or FLAPBOARD_DATA_DATABASE_SOURCE: MySQL connection string
//   - OPENAI_API_KEY and/or ANTHROPIC_API_KEY: provider credentials
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("FLAPBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow bare environment variable names for the secrets that
	// deployment tooling conventionally exports.
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "FLAPBOARD_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "FLAPBOARD_DATA_REDIS_ADDR")
	_ = v.BindEnv("ai.openai_api_key", "OPENAI_API_KEY", "FLAPBOARD_AI_OPENAI_API_KEY")
	_ = v.BindEnv("ai.anthropic_api_key", "ANTHROPIC_API_KEY", "FLAPBOARD_AI_ANTHROPIC_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	tiers := defaultTiers()
	if v.IsSet("ai.tiers") {
		tiers = map[string][]TierModel{}
		if err := v.UnmarshalKey("ai.tiers", &tiers); err != nil {
			return nil, fmt.Errorf("failed to parse ai.tiers: %w", err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			HTTP: &ServerHTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: v.GetDuration("server.http.timeout"),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  v.GetDuration("data.redis.read_timeout"),
				WriteTimeout: v.GetDuration("data.redis.write_timeout"),
			},
		},
		AI: &AI{
			OpenAIAPIKey:     v.GetString("ai.openai_api_key"),
			AnthropicAPIKey:  v.GetString("ai.anthropic_api_key"),
			AnthropicBaseURL: v.GetString("ai.anthropic_base_url"),
			RequestTimeout:   v.GetDuration("ai.request_timeout"),
			Tiers:            tiers,
		},
		Circuit: &Circuit{
			FailureThreshold: v.GetInt("circuit.failure_threshold"),
			ResetTimeout:     v.GetDuration("circuit.reset_timeout"),
			HalfOpenAttempts: v.GetInt("circuit.half_open_attempts"),
		},
		Board: &Board{
			Rows: v.GetInt("board.rows"),
			Cols: v.GetInt("board.cols"),
		},
		Prompt: &Prompt{
			Dir:       v.GetString("prompt.dir"),
			CacheSize: v.GetInt("prompt.cache_size"),
		},
		Cron: &Cron{
			GenerateSpec: v.GetString("cron.generate_spec"),
			RecoverySpec: v.GetString("cron.recovery_spec"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 2*time.Minute)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// AI defaults
	v.SetDefault("ai.request_timeout", 60*time.Second)

	// Circuit breaker defaults
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout", 5*time.Minute)
	v.SetDefault("circuit.half_open_attempts", 2)

	// Vestaboard standard geometry: 6 rows of 22 characters
	v.SetDefault("board.rows", 6)
	v.SetDefault("board.cols", 22)

	// Prompt defaults
	v.SetDefault("prompt.dir", "./prompts")
	v.SetDefault("prompt.cache_size", 32)

	// Cron defaults: generate a frame every 15 minutes, sweep tripped
	// circuits once a minute
	v.SetDefault("cron.generate_spec", "0 */15 * * * *")
	v.SetDefault("cron.recovery_spec", "0 * * * * *")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// defaultTiers returns the built-in tier preference lists used when the
// config file does not define ai.tiers.
func defaultTiers() map[string][]TierModel {
	return map[string][]TierModel{
		"light": {
			{Provider: "openai", Model: "gpt-4o-mini"},
			{Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
		},
		"medium": {
			{Provider: "anthropic", Model: "claude-sonnet-4-20250514"},
			{Provider: "openai", Model: "gpt-4o"},
		},
		"heavy": {
			{Provider: "anthropic", Model: "claude-opus-4-1"},
			{Provider: "openai", Model: "o3"},
		},
	}
}

// Validate checks that all required configuration fields are present.
// It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	if bc.AI == nil || (bc.AI.OpenAIAPIKey == "" && bc.AI.AnthropicAPIKey == "") {
		missingFields = append(missingFields, "ai.openai_api_key or ai.anthropic_api_key (OPENAI_API_KEY / ANTHROPIC_API_KEY)")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	if bc.AI != nil && len(bc.AI.Tiers) == 0 {
		return fmt.Errorf("ai.tiers must define at least one tier")
	}

	return nil
}
