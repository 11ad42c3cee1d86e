package app

import (
	"context"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/Chative-rag-chat/server/internal/agent/chatbot"
	"github.com/Chative-rag-chat/server/internal/agent/embedders"
	"github.com/Chative-rag-chat/server/internal/agent/graph/conversations"
	"github.com/Chative-rag-chat/server/internal/agent/model"
	"github.com/Chative-rag-chat/server/internal/agent/repo"
	"github.com/Chative-rag-chat/server/internal/session"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

// NewEmbedder builds the OpenAI-compatible query embedder.
func NewEmbedder(cfg *AppConfig) (embedding.Embedder, error) {
	embCfg, err := embedders.ConfigFrom(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	return embedders.NewOpenAIEmbedder(embCfg)
}

// NewHistoryRepository returns a Redis repository when REDIS_URL is set and
// an in-memory one otherwise. The returned close function is never nil.
func NewHistoryRepository(ctx context.Context, cfg *AppConfig) (model.HistoryRepository, func() error, error) {
	if !cfg.Redis.Enabled() {
		logx.Info().Msg("REDIS_URL not set; keeping history in memory")
		return repo.NewMemoryHistoryRepository(), func() error { return nil }, nil
	}

	rdb, err := cfg.Redis.NewContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	ttl, err := cfg.Conversation.TTLDuration()
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	logx.Info().Dur("ttl", ttl).Msg("Connected to Redis successfully")
	return repo.NewRedisHistoryRepository(rdb, ttl), rdb.Close, nil
}

// NewBotFactory returns a constructor for unconfigured chatbots sharing emb.
func NewBotFactory(cfg *AppConfig, emb embedding.Embedder, opts ...chatbot.Option) session.BotFactory {
	botCfg := chatbot.Config{
		Response:      cfg.Response,
		GeminiBaseURL: cfg.BaseURL,
		TopK:          cfg.Retrieval.TopK,
		HistoryTurns:  cfg.Conversation.HistoryTurns,
		LogCallbacks:  !cfg.Env().IsProduction(),
	}
	return func() *chatbot.Chatbot {
		return chatbot.New(emb, botCfg, opts...)
	}
}

// NewSessionManager wires the history repository into a session manager.
func NewSessionManager(cfg *AppConfig, historyRepo model.HistoryRepository, newBot session.BotFactory) (*session.Manager, error) {
	ttl, err := cfg.Conversation.TTLDuration()
	if err != nil {
		return nil, err
	}
	messages := conversations.NewMessagesManager(historyRepo, cfg.Conversation)
	return session.NewManager(messages, newBot, session.ManagerConfig{
		IdleTTL:       ttl,
		VerboseErrors: cfg.Env().ExposeErrorDetail(),
	}), nil
}
