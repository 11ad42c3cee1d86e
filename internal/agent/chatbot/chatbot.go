// Package chatbot answers questions over an uploaded index and chunk store.
//
// A Chatbot starts unconfigured. It becomes configured once it has both a
// generative model (SetupModel or UseChatModel) and data (LoadData or
// UseData). Running either setup step again replaces that part and rebuilds
// the answer graph; a step that fails leaves the previous parts in place.
package chatbot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"

	"github.com/Chative-rag-chat/server/internal/agent/chunks"
	"github.com/Chative-rag-chat/server/internal/agent/graph"
	"github.com/Chative-rag-chat/server/internal/agent/graph/nodes"
	"github.com/Chative-rag-chat/server/internal/agent/graph/retrievers"
	"github.com/Chative-rag-chat/server/internal/agent/index"
	"github.com/Chative-rag-chat/server/internal/agent/model"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

type Config struct {
	Response      model.ResponseModelConfig
	GeminiBaseURL string
	TopK          int
	HistoryTurns  int
	LogCallbacks  bool
}

type Option func(*Chatbot)

// WithChatModelFactory replaces the Gemini model constructor used by SetupModel.
func WithChatModelFactory(f nodes.ChatModelFactory) Option {
	return func(c *Chatbot) { c.newChatModel = f }
}

type Chatbot struct {
	cfg          Config
	embedder     embedding.Embedder
	newChatModel nodes.ChatModelFactory
	buildGraph   func(context.Context, graph.GraphConfig) (graph.Runner, error)

	mu        sync.RWMutex
	chatModel einomodel.BaseChatModel
	modelName string
	index     index.Index
	chunks    chunks.Store
	retriever *retrievers.IndexRetriever
	runner    graph.Runner
}

func New(embedder embedding.Embedder, cfg Config, opts ...Option) *Chatbot {
	if cfg.TopK < 1 {
		cfg.TopK = retrievers.DefaultTopK
	}
	if cfg.HistoryTurns < 0 {
		cfg.HistoryTurns = 0
	}
	c := &Chatbot{
		cfg:          cfg,
		embedder:     embedder,
		newChatModel: nodes.NewChatModel,
		buildGraph:   graph.BuildResponseGraph,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetupModel creates the generative model for apiKey.
func (c *Chatbot) SetupModel(ctx context.Context, apiKey string) error {
	cm, err := c.newChatModel(ctx, nodes.ChatModelConfig{
		APIKey:     apiKey,
		BaseURL:    c.cfg.GeminiBaseURL,
		RespConfig: c.cfg.Response,
	})
	if err != nil {
		return err
	}
	return c.UseChatModel(ctx, cm, c.cfg.Response.Model)
}

// UseChatModel installs an already constructed model.
func (c *Chatbot) UseChatModel(ctx context.Context, cm einomodel.BaseChatModel, name string) error {
	if cm == nil {
		return errx.NotConfigured("chat model")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ret, runner, err := c.build(ctx, cm, name, c.index, c.chunks)
	if err != nil {
		return err
	}
	c.chatModel = cm
	c.modelName = name
	c.retriever, c.runner = ret, runner
	return nil
}

// LoadData reads a FAISS index file and a chunk file.
func (c *Chatbot) LoadData(ctx context.Context, indexPath, chunksPath string) error {
	idx, err := index.ReadFile(indexPath)
	if err != nil {
		return errx.Config("could not read vector index", err)
	}
	store, err := chunks.Load(chunksPath)
	if err != nil {
		return errx.Config("could not read chunks", err)
	}
	if err := c.UseData(ctx, idx, store); err != nil {
		_ = store.Close()
		return err
	}
	return nil
}

// UseData installs an index and its chunk store. The previous chunk store is closed.
func (c *Chatbot) UseData(ctx context.Context, idx index.Index, store chunks.Store) error {
	if idx == nil {
		return errx.NotConfigured("vector index")
	}
	if store == nil {
		return errx.NotConfigured("chunk store")
	}

	if idx.Len() != store.Len() {
		logx.Warn().
			Int("index_vectors", idx.Len()).
			Int("chunks", store.Len()).
			Msg("Index and chunk store sizes differ; unmatched ids will fail retrieval")
	}
	if d, ok := c.embedder.(interface{ Dimension() int }); ok && d.Dimension() > 0 && d.Dimension() != idx.Dimension() {
		logx.Warn().
			Int("index_dimension", idx.Dimension()).
			Int("embedder_dimension", d.Dimension()).
			Msg("Embedder and index dimensions differ")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ret, runner, err := c.build(ctx, c.chatModel, c.modelName, idx, store)
	if err != nil {
		return err
	}
	previous := c.chunks
	c.index = idx
	c.chunks = store
	c.retriever, c.runner = ret, runner
	if previous != nil && previous != store {
		if err := previous.Close(); err != nil {
			logx.Warn().Err(err).Msg("Error closing previous chunk store")
		}
	}

	logx.Info().
		Int("vectors", idx.Len()).
		Int("dimension", idx.Dimension()).
		Str("metric", idx.Metric().String()).
		Int("chunks", store.Len()).
		Msg("Data loaded")
	return nil
}

// build assembles the retriever and response graph for the given parts
// without touching c. Missing parts yield nil components.
func (c *Chatbot) build(ctx context.Context, cm einomodel.BaseChatModel, name string, idx index.Index, store chunks.Store) (*retrievers.IndexRetriever, graph.Runner, error) {
	if c.embedder == nil || idx == nil || store == nil {
		return nil, nil, nil
	}

	ret, err := retrievers.NewIndexRetriever(c.embedder, idx, store, c.cfg.TopK)
	if err != nil {
		return nil, nil, err
	}
	if cm == nil {
		return ret, nil, nil
	}
	runner, err := c.buildGraph(ctx, graph.GraphConfig{
		Retriever:    ret,
		ChatModel:    cm,
		ModelName:    name,
		TopK:         c.cfg.TopK,
		HistoryTurns: c.cfg.HistoryTurns,
		LogCallbacks: c.cfg.LogCallbacks,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build response graph: %w", err)
	}
	return ret, runner, nil
}

// Configured reports whether both model and data are in place.
func (c *Chatbot) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runner != nil
}

// Retrieve returns the texts of the topK chunks nearest to query, nearest first.
func (c *Chatbot) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	c.mu.RLock()
	ret := c.retriever
	c.mu.RUnlock()
	if ret == nil {
		return nil, errx.NotConfigured("vector index and chunk store")
	}

	docs, err := ret.Retrieve(ctx, query, retriever.WithTopK(topK))
	if err != nil {
		return nil, err
	}
	return retrievers.Texts(docs), nil
}

// Answer runs the full retrieve and generate chain. Failures are carried in
// the returned Reply.
func (c *Chatbot) Answer(ctx context.Context, query string, history []model.ChatTurn) model.Reply {
	return c.AnswerInSession(ctx, "", query, history)
}

// AnswerInSession is Answer with the session id attached to logs.
func (c *Chatbot) AnswerInSession(ctx context.Context, sessionID, query string, history []model.ChatTurn) model.Reply {
	c.mu.RLock()
	runner := c.runner
	c.mu.RUnlock()
	if runner == nil {
		return model.Failed(errx.NotConfigured("chatbot"))
	}

	start := time.Now()
	gen, err := runner.Invoke(ctx, model.QueryInput{SessionID: sessionID, Query: query, History: history})
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Str("kind", string(errx.KindOf(err))).Msg("Error generating response")
		return model.Failed(err)
	}

	logx.Info().
		Str("session_id", sessionID).
		Int("sources", len(gen.Sources)).
		Float64("cost_usd", gen.CostUSD).
		Dur("took", time.Since(start)).
		Msg("Answer generated")
	return model.Reply{Answer: gen.Content, Sources: gen.Sources, CostUSD: gen.CostUSD}
}

// Respond returns the answer text, or "Error generating response: <message>".
func (c *Chatbot) Respond(ctx context.Context, query string, history []model.ChatTurn) string {
	return c.Answer(ctx, query, history).Text()
}

// Close releases the chunk store.
func (c *Chatbot) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runner = nil
	c.retriever = nil
	if c.chunks == nil {
		return nil
	}
	err := c.chunks.Close()
	c.chunks = nil
	return err
}
