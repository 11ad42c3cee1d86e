package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-rag-chat/server/internal/agent/model"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
)

type stubRetriever struct {
	docs []*schema.Document
	err  error
	topK int
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, opts ...retriever.Option) ([]*schema.Document, error) {
	o := retriever.GetCommonOptions(&retriever.Options{}, opts...)
	if o.TopK != nil {
		s.topK = *o.TopK
	}
	return s.docs, s.err
}

type stubChatModel struct {
	prompt string
	reply  *schema.Message
	err    error
}

func (s *stubChatModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if len(input) > 0 {
		s.prompt = input[len(input)-1].Content
	}
	return s.reply, s.err
}

func (s *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := s.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func buildRunner(t *testing.T, r retriever.Retriever, cm einomodel.BaseChatModel) Runner {
	t.Helper()
	runner, err := BuildResponseGraph(context.Background(), GraphConfig{
		Retriever:    r,
		ChatModel:    cm,
		ModelName:    "gemini-2.5-flash",
		TopK:         3,
		HistoryTurns: 3,
		LogCallbacks: true,
	})
	if err != nil {
		t.Fatalf("BuildResponseGraph: %v", err)
	}
	return runner
}

func TestRunnerAnswersFromRetrievedContext(t *testing.T) {
	ret := &stubRetriever{docs: []*schema.Document{
		{ID: "0", Content: "Paris is the capital of France."},
		{ID: "2", Content: "Tokyo is the capital of Japan."},
	}}
	reply := schema.AssistantMessage("Paris.", nil)
	reply.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 1000, CompletionTokens: 10, TotalTokens: 1010}}
	cm := &stubChatModel{reply: reply}

	gen, err := buildRunner(t, ret, cm).Invoke(context.Background(), model.QueryInput{
		SessionID: "s1",
		Query:     "What is the capital of France?",
		History:   []model.ChatTurn{{Query: "Hi", Answer: "Hello!"}},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if gen.Content != "Paris." {
		t.Errorf("content = %q", gen.Content)
	}
	if len(gen.Sources) != 2 || gen.Sources[0] != "Paris is the capital of France." {
		t.Errorf("sources = %q", gen.Sources)
	}
	if gen.CostUSD <= 0 {
		t.Errorf("expected a cost for known model, got %v", gen.CostUSD)
	}
	if ret.topK != 3 {
		t.Errorf("retriever top_k = %d", ret.topK)
	}

	wantContext := "Document Context:\nParis is the capital of France.\nTokyo is the capital of Japan.\n\n"
	if !strings.Contains(cm.prompt, wantContext) {
		t.Errorf("prompt missing context block: %q", cm.prompt)
	}
	if !strings.Contains(cm.prompt, "Previous conversation:\nQ: Hi\nA: Hello!\n\n\nCurrent Question: What is the capital of France?") {
		t.Errorf("prompt missing history block: %q", cm.prompt)
	}
}

func TestRunnerTrimsHistoryToConfiguredTurns(t *testing.T) {
	cm := &stubChatModel{reply: schema.AssistantMessage("ok", nil)}
	runner := buildRunner(t, &stubRetriever{docs: []*schema.Document{{Content: "c"}}}, cm)

	history := []model.ChatTurn{
		{Query: "q1", Answer: "a1"},
		{Query: "q2", Answer: "a2"},
		{Query: "q3", Answer: "a3"},
		{Query: "q4", Answer: "a4"},
	}
	if _, err := runner.Invoke(context.Background(), model.QueryInput{Query: "q5", History: history}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if strings.Contains(cm.prompt, "q1") || strings.Count(cm.prompt, "Q: ") != 3 {
		t.Errorf("history not trimmed to 3 turns: %q", cm.prompt)
	}
}

func TestRunnerPropagatesRetrievalKinds(t *testing.T) {
	ret := &stubRetriever{err: errx.Alignment(7, 3)}
	cm := &stubChatModel{reply: schema.AssistantMessage("unused", nil)}

	_, err := buildRunner(t, ret, cm).Invoke(context.Background(), model.QueryInput{Query: "q"})
	if errx.KindOf(err) != errx.KindIndexAlignment {
		t.Fatalf("kind = %q, err = %v", errx.KindOf(err), err)
	}
	if cm.prompt != "" {
		t.Error("model must not be called when retrieval fails")
	}
}

func TestRunnerClassifiesModelFailures(t *testing.T) {
	ret := &stubRetriever{docs: []*schema.Document{{Content: "c"}}}
	cm := &stubChatModel{err: errors.New("dial tcp 127.0.0.1:443: connect: connection refused")}

	_, err := buildRunner(t, ret, cm).Invoke(context.Background(), model.QueryInput{Query: "q"})
	if errx.KindOf(err) != errx.KindGeneration {
		t.Fatalf("kind = %q, err = %v", errx.KindOf(err), err)
	}
	if !strings.Contains(err.Error(), "connection refused") || strings.Contains(err.Error(), "node path:") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

type panickingRetriever struct{}

func (panickingRetriever) Retrieve(context.Context, string, ...retriever.Option) ([]*schema.Document, error) {
	var docs []*schema.Document
	_ = docs[3]
	return docs, nil
}

func TestRunnerHidesPanicStack(t *testing.T) {
	cm := &stubChatModel{reply: schema.AssistantMessage("unused", nil)}

	_, err := buildRunner(t, panickingRetriever{}, cm).Invoke(context.Background(), model.QueryInput{Query: "q"})
	if errx.KindOf(err) != errx.KindInternal {
		t.Fatalf("kind = %q, err = %v", errx.KindOf(err), err)
	}
	reply := model.Failed(err).Text()
	if !strings.Contains(reply, "index out of range") {
		t.Errorf("reply lost the panic value: %q", reply)
	}
	if strings.Contains(reply, "stack:") || strings.Contains(reply, "goroutine") {
		t.Errorf("reply carries the stack trace: %q", reply)
	}
}

func TestPanicSummary(t *testing.T) {
	got := panicSummary("node path: [retriever]: panic error: boom, \nstack: goroutine 1 [running]:\nmain.main()")
	if got != "panic: boom" {
		t.Errorf("panicSummary = %q", got)
	}
}

func TestRunnerRejectsEmptyAnswer(t *testing.T) {
	ret := &stubRetriever{docs: []*schema.Document{{Content: "c"}}}
	cm := &stubChatModel{reply: schema.AssistantMessage("  ", nil)}

	_, err := buildRunner(t, ret, cm).Invoke(context.Background(), model.QueryInput{Query: "q"})
	if errx.KindOf(err) != errx.KindGeneration {
		t.Fatalf("kind = %q, err = %v", errx.KindOf(err), err)
	}
}

func TestBuildGraphRequiresComponents(t *testing.T) {
	_, err := BuildResponseGraph(context.Background(), GraphConfig{})
	if !errors.Is(err, errx.ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
