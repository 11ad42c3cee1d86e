// Package app loads configuration and assembles the components shared by the
// HTTP server and the terminal client.
package app

import (
	"fmt"
	"io"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Chative-rag-chat/server/internal/agent/model"
	"github.com/Chative-rag-chat/server/internal/core"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
	pkgredis "github.com/Chative-rag-chat/server/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	Response     model.ResponseModelConfig
	Embedder     model.EmbedderConfig
	Retrieval    model.RetrievalConfig
	Conversation model.ConversationConfig
	Server       model.ServerConfig
}

// Env parses the configured environment.
func (c *AppConfig) Env() core.Environment {
	return core.ParseEnvironment(c.Environment)
}

// RequestTimeout parses SERVER_REQUEST_TIMEOUT; empty disables the deadline.
func (c *AppConfig) RequestTimeout() (time.Duration, error) {
	if c.Server.RequestTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid SERVER_REQUEST_TIMEOUT %q: %w", c.Server.RequestTimeout, err)
	}
	return d, nil
}

// LoadConfig reads envFiles (missing files are ignored) and then the environment.
func LoadConfig(envFiles ...string) (*AppConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			logx.Debug().Err(err).Str("file", f).Msg("Could not load env file")
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	if _, err := cfg.Conversation.TTLDuration(); err != nil {
		return nil, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", cfg.Conversation.TTL, err)
	}
	if _, err := cfg.RequestTimeout(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InitLogger configures the global logger from cfg. A nil out logs to stderr.
func InitLogger(cfg *AppConfig, out io.Writer) {
	logx.Init(logx.LoggerOpts{Environment: cfg.Env(), Level: cfg.LogLevel, Output: out})
}
