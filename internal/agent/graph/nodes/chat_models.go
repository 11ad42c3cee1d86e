package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/Chative-rag-chat/server/internal/agent/model"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey     string
	BaseURL    string
	RespConfig model.ResponseModelConfig
}

// ChatModelFactory builds the generative model for an API key.
type ChatModelFactory func(ctx context.Context, config ChatModelConfig) (einomodel.BaseChatModel, error)

// NewChatModel creates the Gemini response model on a fresh client for the given key.
func NewChatModel(ctx context.Context, config ChatModelConfig) (einomodel.BaseChatModel, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, errx.Config("Gemini API key is required", nil)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, errx.Config("error creating Gemini client", err)
	}

	gemCfg := &gemini.Config{
		Client:      client,
		Model:       config.RespConfig.Model,
		Temperature: &config.RespConfig.Temperature,
		MaxTokens:   &config.RespConfig.MaxTokens,
	}
	if config.RespConfig.ThinkingBudget > 0 {
		gemCfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(config.RespConfig.ThinkingBudget)),
		}
	}

	chatModel, err := gemini.NewChatModel(ctx, gemCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, errx.Config("error creating Response model", fmt.Errorf("%s: %w", config.RespConfig.Model, err))
	}

	logx.Debug().Str("model", config.RespConfig.Model).Msg("Response model ready")
	return chatModel, nil
}
