package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the settings read from the environment
type Config struct {
	LogConfig     LogConfig     `envconfig:""`
	LLMConfig     LLMConfig     `envconfig:""`
	StorageConfig StorageConfig `envconfig:""`
}

// LogConfig configures the global logger
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Format     string `envconfig:"LOG_FORMAT" default:"console"` // console | json
	Output     string `envconfig:"LOG_OUTPUT" default:"stderr"`  // stdout | stderr | file
	FilePath   string `envconfig:"LOG_FILE_PATH" default:"logs/copilot.log"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"rfc3339"`
}

// LLMConfig selects and configures the chat model behind the transforms
type LLMConfig struct {
	Provider    string        `envconfig:"LLM_PROVIDER" default:"ollama"` // openai | ollama | deepseek | ark
	Model       string        `envconfig:"LLM_MODEL" default:"phi3.5"`
	APIKey      string        `envconfig:"LLM_API_KEY"`
	BaseURL     string        `envconfig:"LLM_BASE_URL"`
	MaxTokens   int           `envconfig:"LLM_MAX_TOKENS" default:"2000"`
	Temperature float64       `envconfig:"LLM_TEMPERATURE" default:"0.1"`
	Timeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"0s"` // 0 blocks until the model answers
}

// StorageConfig locates the dataset, the documents and the run store
type StorageConfig struct {
	DatabasePath string        `envconfig:"DATABASE_PATH" default:"data/northwind.sqlite"`
	DocsDir      string        `envconfig:"DOCS_DIR" default:"docs"`
	RedisURL     string        `envconfig:"REDIS_URL"`
	RunTTL       time.Duration `envconfig:"RUN_TTL" default:"1h"`
}

// LoadEnv reads .env (if present) and processes the environment
func LoadEnv() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	return &config, nil
}
