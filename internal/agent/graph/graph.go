package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	logx "github.com/Chative-rag-chat/server/pkg/logger"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-rag-chat/server/internal/agent/graph/nodes"
	"github.com/Chative-rag-chat/server/internal/agent/graph/observers"
	"github.com/Chative-rag-chat/server/internal/agent/model"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
)

// Runner executes the compiled answer graph for one question.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.Generation, error)
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Retriever    retriever.Retriever
	ChatModel    einomodel.BaseChatModel
	ModelName    string
	TopK         int
	HistoryTurns int
	LogCallbacks bool
}

// GraphBuilder handles the construction of the answer graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	runnable     compose.Runnable[model.QueryInput, *schema.Message]
	topK         int
	logCallbacks bool
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.Generation, error) {
	opts := []compose.Option{
		compose.WithRetrieverOption(retriever.WithTopK(r.topK)),
	}
	if r.logCallbacks {
		opts = append(opts, compose.WithCallbacks(observers.NewAllCallbacks()))
	}

	out, err := r.runnable.Invoke(ctx, in, opts...)
	if err != nil {
		return nil, classify(err)
	}
	if out == nil {
		return nil, errx.WrapGeneration(errors.New("graph returned no message"))
	}

	gen := &model.Generation{Content: out.Content}
	if sources, ok := out.Extra[nodes.ExtraSources].([]string); ok {
		gen.Sources = sources
	}
	if total, ok := out.Extra[nodes.ExtraUsageCostTotal].(float64); ok {
		gen.CostUSD = total
	}
	return gen, nil
}

// Recovered node panics render as "panic error: <value>, \nstack: <trace>".
const (
	panicMarker = "panic error: "
	stackMarker = "\nstack:"
)

// classify keeps categorised errors raised inside nodes and treats anything
// else as a generation failure, minus the graph's node-path trace. Recovered
// panics become internal errors without their stack.
func classify(err error) error {
	var appErr *errx.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if msg := err.Error(); strings.Contains(msg, panicMarker) {
		logx.Error().Str("panic", msg).Msg("Answer graph panicked")
		return errx.NewKind(errx.KindInternal, errors.New(panicSummary(msg)),
			http.StatusInternalServerError, "internal error while generating the response")
	}
	for cause := err; cause != nil; cause = errors.Unwrap(cause) {
		if !strings.Contains(cause.Error(), "node path:") {
			return errx.WrapGeneration(cause)
		}
	}
	return errx.WrapGeneration(err)
}

func panicSummary(msg string) string {
	_, rest, _ := strings.Cut(msg, panicMarker)
	rest, _, _ = strings.Cut(rest, stackMarker)
	return "panic: " + strings.TrimRight(rest, ", ")
}

// BuildResponseGraph builds the graph and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Response graph built successfully")
	return &graphRunner{runnable: runnable, topK: cfg.TopK, logCallbacks: cfg.LogCallbacks}, nil
}

// BuildGraph constructs and returns the compiled answer graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Retriever == nil {
		return nil, errx.NotConfigured("retriever")
	}
	if config.ChatModel == nil {
		return nil, errx.NotConfigured("chat model")
	}
	if config.TopK < 1 {
		config.TopK = 3
	}
	if config.HistoryTurns < 0 {
		config.HistoryTurns = 0
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	steps := []error{
		b.graph.AddLambdaNode(nodes.NodeInputConverter,
			nodes.NewInputConverterNode(),
			compose.WithStatePreHandler(nodes.NewInputConverterPreHandler(b.config.HistoryTurns)),
		),
		b.graph.AddRetrieverNode(nodes.NodeRetriever,
			b.config.Retriever,
			compose.WithStatePostHandler(nodes.NewRetrieverPostHandler()),
		),
		b.graph.AddLambdaNode(nodes.NodePromptAssembler,
			nodes.NewPromptAssemblerNode(),
		),
		b.graph.AddChatModelNode(nodes.NodeChatModel,
			b.config.ChatModel,
			compose.WithStatePostHandler(nodes.NewChatModelPostHandler(b.config.ModelName)),
		),
	}
	for _, err := range steps {
		if err != nil {
			logx.Error().Err(err).Msg("Error adding graph node")
			return fmt.Errorf("error adding graph node: %w", err)
		}
	}
	return nil
}

// addEdges creates the linear flow between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeRetriever},
		{nodes.NodeRetriever, nodes.NodePromptAssembler},
		{nodes.NodePromptAssembler, nodes.NodeChatModel},
		{nodes.NodeChatModel, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding graph edge")
			return fmt.Errorf("error adding graph edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
