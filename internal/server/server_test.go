package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-rag-chat/server/internal/agent/chatbot"
	"github.com/Chative-rag-chat/server/internal/agent/graph/conversations"
	"github.com/Chative-rag-chat/server/internal/agent/graph/nodes"
	"github.com/Chative-rag-chat/server/internal/agent/index"
	"github.com/Chative-rag-chat/server/internal/agent/model"
	"github.com/Chative-rag-chat/server/internal/agent/repo"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
	"github.com/Chative-rag-chat/server/internal/session"
)

type keywordEmbedder struct{}

func (keywordEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	vocab := []string{"france", "germany", "japan"}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, len(vocab))
		for j, w := range vocab {
			if strings.Contains(strings.ToLower(text), w) {
				vec[j] = 1
			}
		}
		out[i] = vec
	}
	return out, nil
}

type fixedModel struct{ answer string }

func (m fixedModel) Generate(context.Context, []*schema.Message, ...einomodel.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.answer, nil), nil
}

func (m fixedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, _ := m.Generate(ctx, in, opts...)
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	messages := conversations.NewMessagesManager(repo.NewMemoryHistoryRepository(), model.ConversationConfig{HistoryTurns: 3})
	newBot := func() *chatbot.Chatbot {
		return chatbot.New(keywordEmbedder{}, chatbot.Config{TopK: 3, HistoryTurns: 3},
			chatbot.WithChatModelFactory(func(context.Context, nodes.ChatModelConfig) (einomodel.BaseChatModel, error) {
				return fixedModel{answer: "Paris."}, nil
			}),
		)
	}
	mgr := session.NewManager(messages, newBot, session.ManagerConfig{})
	srv := httptest.NewServer(New(mgr, Config{RequestTimeout: 5 * time.Second, VerboseErrors: true}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	res, err := http.Post(base+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", res.StatusCode)
	}
	var body sessionResponse
	_ = json.NewDecoder(res.Body).Decode(&body)
	return body.SessionID
}

func initForm(t *testing.T, withKey bool) (*bytes.Buffer, string) {
	t.Helper()
	idx, _ := index.NewFlat(3, index.MetricL2)
	_ = idx.Add([]float32{1, 0, 0}, []float32{0, 1, 0}, []float32{0, 0, 1})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("index", "faiss_index.bin")
	if err := index.Write(fw, idx); err != nil {
		t.Fatalf("index.Write: %v", err)
	}
	fw, _ = mw.CreateFormFile("chunks", "texts.json")
	_, _ = fw.Write([]byte(`["Paris is the capital of France.", "Berlin is the capital of Germany.", "Tokyo is the capital of Japan."]`))
	if withKey {
		_ = mw.WriteField("api_key", "test-key")
	}
	_ = mw.Close()
	return &body, mw.FormDataContentType()
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()
	var v T
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestSessionFlow(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv.URL)
	base := srv.URL + "/api/sessions/" + id

	// Asking before initialisation is a conflict.
	res, _ := http.Post(base+"/messages", "application/json", strings.NewReader(`{"query":"France?"}`))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("ask before init status = %d", res.StatusCode)
	}
	if e := decode[errorResponse](t, res); e.Kind != errx.KindNotConfigured {
		t.Errorf("kind = %q", e.Kind)
	}

	body, ct := initForm(t, true)
	res, _ = http.Post(base+"/init", ct, body)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("init status = %d: %+v", res.StatusCode, decode[errorResponse](t, res))
	}
	if s := decode[sessionResponse](t, res); !s.Initialized {
		t.Fatal("session not initialised")
	}

	res, _ = http.Post(base+"/messages", "application/json", strings.NewReader(`{"query":"What is the capital of France?"}`))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ask status = %d", res.StatusCode)
	}
	ask := decode[askResponse](t, res)
	if ask.Answer != "Paris." || !ask.OK || len(ask.Sources) != 3 || ask.Sources[0] != "Paris is the capital of France." {
		t.Fatalf("ask = %+v", ask)
	}

	res, _ = http.Get(base + "/messages")
	hist := decode[historyResponse](t, res)
	if len(hist.Turns) != 1 || hist.Turns[0].Query != "What is the capital of France?" {
		t.Fatalf("history = %+v", hist)
	}

	req, _ := http.NewRequest(http.MethodDelete, base+"/messages", nil)
	res, _ = http.DefaultClient.Do(req)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("clear status = %d", res.StatusCode)
	}
	res, _ = http.Get(base + "/messages")
	if hist := decode[historyResponse](t, res); len(hist.Turns) != 0 {
		t.Fatalf("history after clear = %d turns", len(hist.Turns))
	}

	req, _ = http.NewRequest(http.MethodDelete, base, nil)
	res, _ = http.DefaultClient.Do(req)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", res.StatusCode)
	}
	res, _ = http.Get(base + "/messages")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted session status = %d", res.StatusCode)
	}
	res.Body.Close()
}

func TestInitRequiresAllInputs(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv.URL)

	body, ct := initForm(t, false)
	res, _ := http.Post(srv.URL+"/api/sessions/"+id+"/init", ct, body)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", res.StatusCode)
	}
	e := decode[errorResponse](t, res)
	if e.Error != "Error initializing chatbot: "+session.MissingInputsMessage {
		t.Errorf("error = %q", e.Error)
	}
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t)

	res, _ := http.Get(srv.URL + "/")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK || !strings.HasPrefix(res.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("index status = %d, type = %s", res.StatusCode, res.Header.Get("Content-Type"))
	}

	res, _ = http.Get(srv.URL + "/api/health")
	health := decode[map[string]any](t, res)
	if health["status"] != "ok" {
		t.Fatalf("health = %v", health)
	}
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	res, _ := http.Post(srv.URL+"/api/sessions/nope/messages", "application/json", strings.NewReader(`{"query":"x"}`))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", res.StatusCode)
	}
	res.Body.Close()
}
