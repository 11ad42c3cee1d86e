package retrievers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Chative-rag-chat/server/internal/agent/chunks"
	"github.com/Chative-rag-chat/server/internal/agent/index"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
)

// keywordEmbedder maps each text to a one-hot vector over a fixed vocabulary.
type keywordEmbedder struct {
	vocab []string
	err   error
}

func (k keywordEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, len(k.vocab))
		for j, word := range k.vocab {
			if strings.Contains(strings.ToLower(text), word) {
				vec[j] = 1
			}
		}
		out[i] = vec
	}
	return out, nil
}

var capitals = []string{
	"Paris is the capital of France.",
	"Berlin is the capital of Germany.",
	"Tokyo is the capital of Japan.",
}

func newCapitalsRetriever(t *testing.T, store chunks.Store) *IndexRetriever {
	t.Helper()
	idx, _ := index.NewFlat(3, index.MetricL2)
	if err := idx.Add([]float32{1, 0, 0}, []float32{0, 1, 0}, []float32{0, 0, 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	r, err := NewIndexRetriever(keywordEmbedder{vocab: []string{"france", "germany", "japan"}}, idx, store, 0)
	if err != nil {
		t.Fatalf("NewIndexRetriever: %v", err)
	}
	return r
}

func TestRetrieveNearestFirst(t *testing.T) {
	r := newCapitalsRetriever(t, chunks.NewSliceStore(capitals))

	docs, err := r.Retrieve(context.Background(), "What is the capital of France?", retriever.WithTopK(1))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 1 || docs[0].Content != capitals[0] {
		t.Fatalf("unexpected docs: %+v", docs)
	}
	if docs[0].ID != "0" || docs[0].Score() != 0 {
		t.Errorf("id=%s score=%v", docs[0].ID, docs[0].Score())
	}
}

func TestRetrieveReturnsMinOfKAndN(t *testing.T) {
	r := newCapitalsRetriever(t, chunks.NewSliceStore(capitals))

	docs, err := r.Retrieve(context.Background(), "capital of Germany", retriever.WithTopK(10))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs, want 3", len(docs))
	}
	if docs[0].Content != capitals[1] {
		t.Errorf("nearest = %q", docs[0].Content)
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].Score() < docs[i-1].Score() {
			t.Fatalf("scores not non-decreasing: %v, %v", docs[i-1].Score(), docs[i].Score())
		}
	}

	if got := Texts(docs); len(got) != 3 || got[0] != capitals[1] {
		t.Errorf("Texts = %q", got)
	}
}

func TestRetrieveDefaultsToThree(t *testing.T) {
	idx, _ := index.NewFlat(1, index.MetricL2)
	_ = idx.Add([]float32{1}, []float32{2}, []float32{3}, []float32{4})
	r, _ := NewIndexRetriever(keywordEmbedder{vocab: []string{"x"}}, idx, chunks.NewSliceStore([]string{"a", "b", "c", "d"}), 0)

	docs, err := r.Retrieve(context.Background(), "x")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != DefaultTopK {
		t.Fatalf("got %d docs, want %d", len(docs), DefaultTopK)
	}
}

func TestRetrieveAlignmentError(t *testing.T) {
	r := newCapitalsRetriever(t, chunks.NewSliceStore(capitals[:1]))

	_, err := r.Retrieve(context.Background(), "Japan", retriever.WithTopK(1))
	if errx.KindOf(err) != errx.KindIndexAlignment {
		t.Fatalf("kind = %q, err = %v", errx.KindOf(err), err)
	}
}

func TestRetrieveRejectsBadInput(t *testing.T) {
	r := newCapitalsRetriever(t, chunks.NewSliceStore(capitals))

	if _, err := r.Retrieve(context.Background(), ""); errx.KindOf(err) != errx.KindInvalidInput {
		t.Errorf("empty query: %v", err)
	}
	if _, err := r.Retrieve(context.Background(), "France", retriever.WithTopK(0)); errx.KindOf(err) != errx.KindInvalidInput {
		t.Errorf("top_k 0: %v", err)
	}
}

func TestRetrieveEmbeddingFailures(t *testing.T) {
	idx, _ := index.NewFlat(3, index.MetricL2)
	_ = idx.Add([]float32{1, 0, 0})

	wrongDim, _ := NewIndexRetriever(keywordEmbedder{vocab: []string{"a", "b"}}, idx, chunks.NewSliceStore([]string{"a"}), 1)
	_, err := wrongDim.Retrieve(context.Background(), "a")
	if errx.KindOf(err) != errx.KindEmbedding || !errors.Is(err, index.ErrDimensionMismatch) {
		t.Errorf("dimension mismatch: %v", err)
	}

	failing, _ := NewIndexRetriever(keywordEmbedder{err: errors.New("connection refused")}, idx, chunks.NewSliceStore([]string{"a"}), 1)
	_, err = failing.Retrieve(context.Background(), "a")
	if errx.KindOf(err) != errx.KindEmbedding || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("embedder failure: %v", err)
	}
}

func TestNewIndexRetrieverRequiresComponents(t *testing.T) {
	_, err := NewIndexRetriever(nil, nil, nil, 3)
	if !errors.Is(err, errx.ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
