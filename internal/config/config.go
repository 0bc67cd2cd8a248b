package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// APIToken, when set, is required as a bearer token on every request.
	// A personal deployment typically runs behind one shared token.
	APIToken string `envconfig:"API_TOKEN"`

	// MaxChunks caps how many context chunks any single retrieval may
	// hand to the language model, regardless of classifier suggestions.
	MaxChunks int `envconfig:"MAX_CHUNKS" default:"20"`

	// LogRetentionDays controls how long retrieval decision logs are
	// kept. Zero disables pruning.
	LogRetentionDays int `envconfig:"LOG_RETENTION_DAYS" default:"90"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LORELEAF", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasAPIToken() bool {
	return c.APIToken != ""
}
