package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/rag_prompt.txt
var ragPrompt string

// ContextSeparator joins retrieved chunks inside the Document Context block.
const ContextSeparator = "\n"

// RAGPromptInput carries the values substituted into the answer prompt.
type RAGPromptInput struct {
	Chunks  []string
	History string // already rendered, may be empty
	Query   string
}

// RenderRAGPrompt renders the answer prompt as a single user message. Going
// through the Eino prompt component keeps prompt callbacks firing.
func RenderRAGPrompt(ctx context.Context, in RAGPromptInput) (*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.UserMessage(ragPrompt),
	)
	vars := map[string]any{
		"Context": strings.Join(in.Chunks, ContextSeparator),
		"History": in.History,
		"Query":   in.Query,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("rag prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("rag prompt render: empty result")
	}
	return msgs[0], nil
}
