package nodes

import (
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-rag-chat/server/internal/agent/model"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

const (
	ExtraUsageCost      = "usage_cost"
	ExtraUsageCostTotal = "usage_cost_total_usd"
)

// attachUsageCost prices the token usage reported on out, logs it and adds it
// to the running total in state.
func attachUsageCost(out *schema.Message, modelName string, state *model.AppState) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	cost := model.PriceUsage(modelName, out.ResponseMeta.Usage)

	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra[ExtraUsageCost] = cost
	logx.Debug().
		Str("session_id", state.SessionID).
		Str("node", NodeChatModel).
		Str("model", modelName).
		Int("prompt_tokens", cost.PromptTokens).
		Int("completion_tokens", cost.CompletionTokens).
		Int("total_tokens", cost.TotalTokens).
		Float64("total_cost_usd", cost.TotalUSD()).
		Msg("LLM usage")

	state.TotalCostUSD += cost.TotalUSD()
	out.Extra[ExtraUsageCostTotal] = state.TotalCostUSD
}
