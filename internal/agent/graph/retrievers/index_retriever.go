package retrievers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Chative-rag-chat/server/internal/agent/chunks"
	"github.com/Chative-rag-chat/server/internal/agent/index"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

const (
	DefaultTopK = 3

	MetaDistance = "distance"
	MetaIndexID  = "index_id"
)

// IndexRetriever embeds the query, searches the vector index and resolves the
// hits against the chunk store. Documents come back nearest first.
type IndexRetriever struct {
	embedder embedding.Embedder
	index    index.Index
	chunks   chunks.Store
	topK     int
}

var _ retriever.Retriever = (*IndexRetriever)(nil)

func NewIndexRetriever(emb embedding.Embedder, idx index.Index, store chunks.Store, topK int) (*IndexRetriever, error) {
	switch {
	case emb == nil:
		return nil, errx.NotConfigured("embedder")
	case idx == nil:
		return nil, errx.NotConfigured("vector index")
	case store == nil:
		return nil, errx.NotConfigured("chunk store")
	}
	if topK < 1 {
		topK = DefaultTopK
	}
	return &IndexRetriever{embedder: emb, index: idx, chunks: store, topK: topK}, nil
}

func (r *IndexRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := r.topK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil {
		topK = *options.TopK
	}
	if query == "" {
		return nil, errx.InvalidInput("query must not be empty")
	}
	if topK < 1 {
		return nil, errx.InvalidInput(fmt.Sprintf("top_k must be at least 1, got %d", topK))
	}

	vectors, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, errx.Embedding(err)
	}
	if len(vectors) != 1 {
		return nil, errx.Embedding(fmt.Errorf("expected 1 embedding, got %d", len(vectors)))
	}

	vec := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		vec[i] = float32(v)
	}
	if len(vec) != r.index.Dimension() {
		return nil, errx.Embedding(fmt.Errorf("%w: query embedding has %d values, index expects %d",
			index.ErrDimensionMismatch, len(vec), r.index.Dimension()))
	}

	distances, ids, err := r.index.Search(ctx, vec, topK)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errx.Retrieval(err)
	}

	docs := make([]*schema.Document, 0, len(ids))
	for i, id := range ids {
		text, err := r.chunks.Get(id)
		if err != nil {
			return nil, err
		}
		doc := &schema.Document{
			ID:      strconv.FormatInt(id, 10),
			Content: text,
			MetaData: map[string]any{
				MetaIndexID:  id,
				MetaDistance: distances[i],
			},
		}
		docs = append(docs, doc.WithScore(float64(distances[i])))
	}

	logx.Debug().
		Int("top_k", topK).
		Int("hits", len(docs)).
		Str("metric", r.index.Metric().String()).
		Msg("Retrieved chunks")

	return docs, nil
}

// Texts extracts document contents, preserving order.
func Texts(docs []*schema.Document) []string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	return texts
}
