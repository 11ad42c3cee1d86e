package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks aggregates all observer handlers (retriever, prompt, model) into one callbacks.Handler.
func NewAllCallbacks() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		Retriever(newRetrieverHandler()).
		Prompt(newPromptHandler()).
		ChatModel(newModelHandler()).
		Handler()
}
