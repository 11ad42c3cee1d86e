// Package embedders turns text into vectors through an OpenAI-compatible
// embeddings endpoint (text-embeddings-inference, vLLM, Ollama, LocalAI or
// api.openai.com).
package embedders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Chative-rag-chat/server/internal/agent/model"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
	"github.com/cloudwego/eino/components/embedding"
	openai "github.com/sashabaranov/go-openai"
)

var ErrNoInput = errors.New("no texts to embed")

type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int // 0 disables the check
	Timeout   time.Duration
}

// ConfigFrom maps the environment config onto the embedder config.
func ConfigFrom(cfg model.EmbedderConfig) (Config, error) {
	timeout := 30 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("invalid EMBEDDER_TIMEOUT %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}
	return Config{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
		Timeout:   timeout,
	}, nil
}

// OpenAIEmbedder implements embedding.Embedder.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

var _ embedding.Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, errx.Config("embedding model is required", nil)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// Dimension is the configured vector width, or 0 when unchecked.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, errx.Embedding(ErrNoInput)
	}

	modelName := e.model
	options := embedding.GetCommonOptions(&embedding.Options{Model: &modelName}, opts...)
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(modelName),
	})
	if err != nil {
		return nil, errx.Embedding(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errx.Embedding(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	sort.SliceStable(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	vectors := make([][]float64, len(resp.Data))
	for i, item := range resp.Data {
		if e.dimension > 0 && len(item.Embedding) != e.dimension {
			return nil, errx.Embedding(fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(item.Embedding), e.dimension))
		}
		vec := make([]float64, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float64(v)
		}
		vectors[i] = vec
	}

	logx.Debug().
		Str("model", modelName).
		Int("texts", len(texts)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Dur("took", time.Since(start)).
		Msg("Embedded texts")

	return vectors, nil
}
