package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-rag-chat/server/internal/agent/graph/conversations"
	"github.com/Chative-rag-chat/server/internal/agent/graph/prompts"
	"github.com/Chative-rag-chat/server/internal/agent/graph/retrievers"
	"github.com/Chative-rag-chat/server/internal/agent/model"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

const (
	NodeInputConverter  = "input_converter"
	NodeRetriever       = "retriever"
	NodePromptAssembler = "prompt_assembler"
	NodeChatModel       = "chat_model"

	ExtraSources = "sources"
)

// NewInputConverterPreHandler seeds the graph state for a new question.
func NewInputConverterPreHandler(historyTurns int) func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.SessionID = in.SessionID
		s.Query = in.Query
		s.History = model.TrimTail(in.History, historyTurns)
		s.Sources = nil
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode hands the raw query to the retriever.
func NewInputConverterNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) (string, error) {
		query := strings.TrimSpace(input.Query)
		if query == "" {
			return "", errx.InvalidInput("query must not be empty")
		}
		return input.Query, nil
	})
}

// NewRetrieverPostHandler keeps the retrieved chunks for the prompt and the reply.
func NewRetrieverPostHandler() func(context.Context, []*schema.Document, *model.AppState) ([]*schema.Document, error) {
	return func(ctx context.Context, out []*schema.Document, state *model.AppState) ([]*schema.Document, error) {
		state.Sources = out
		logx.Debug().
			Str("session_id", state.SessionID).
			Str("node", NodeRetriever).
			Int("chunks", len(out)).
			Msg("Context retrieved")
		return out, nil
	}
}

// NewPromptAssemblerNode renders the answer prompt from the retrieved chunks
// and the recent history held in state.
func NewPromptAssemblerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, docs []*schema.Document) ([]*schema.Message, error) {
		var in prompts.RAGPromptInput
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			in = prompts.RAGPromptInput{
				Chunks:  retrievers.Texts(docs),
				History: conversations.RenderHistory(state.History, len(state.History)),
				Query:   state.Query,
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		msg, err := prompts.RenderRAGPrompt(ctx, in)
		if err != nil {
			return nil, err
		}
		return []*schema.Message{msg}, nil
	})
}

// NewChatModelPostHandler computes usage cost and attaches the sources to the answer.
func NewChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, errx.WrapGeneration(fmt.Errorf("model returned no message"))
		}
		if strings.TrimSpace(out.Content) == "" {
			return nil, errx.WrapGeneration(fmt.Errorf("model returned an empty response"))
		}

		attachUsageCost(out, modelName, state)

		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		out.Extra[ExtraSources] = retrievers.Texts(state.Sources)

		logx.Debug().
			Str("session_id", state.SessionID).
			Str("node", NodeChatModel).
			Msg("AI response ready")
		return out, nil
	}
}
