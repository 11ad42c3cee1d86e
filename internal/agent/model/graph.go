package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// It is registered via compose.WithGenLocalState and must only be read or
// written inside state handlers or compose.ProcessState.
type AppState struct {
	SessionID string
	Query     string
	History   []ChatTurn         // already trimmed to the configured turn count
	Sources   []*schema.Document // retriever output, nearest first

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// QueryInput represents the input for processing user queries.
type QueryInput struct {
	SessionID string     `json:"session_id"`
	Query     string     `json:"query"`
	History   []ChatTurn `json:"history"`
}

// Generation is the graph result handed back to the orchestrator.
type Generation struct {
	Content string
	Sources []string
	CostUSD float64
}
