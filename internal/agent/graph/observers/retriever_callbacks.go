package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/retriever"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

func newRetrieverHandler() *callbackHelper.RetrieverCallbackHandler {
	return &callbackHelper.RetrieverCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *retriever.CallbackInput) context.Context {
			if input != nil {
				logx.Debug().Str("name", info.Name).Str("query", input.Query).Int("top_k", input.TopK).Msg("Retriever start")
			}
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *retriever.CallbackOutput) context.Context {
			if output == nil {
				return ctx
			}
			ev := logx.Debug().Str("name", info.Name).Int("docs", len(output.Docs))
			for i, doc := range output.Docs {
				if doc == nil {
					continue
				}
				ev = ev.Float64("score_"+doc.ID, doc.Score())
				if i >= 4 {
					break
				}
			}
			ev.Msg("Retriever end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Warn().Err(err).Str("name", info.Name).Msg("Retriever error")
			return ctx
		},
	}
}
