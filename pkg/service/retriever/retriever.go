package retriever

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/interfaces"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
	"github.com/secmon-lab/vidqa/pkg/service/vectorindex"
)

// DefaultK is the number of chunks retrieved per question
const DefaultK = 2

// ContextSeparator joins retrieved chunks into a flat context
const ContextSeparator = "\n\n"

// Retriever answers top-k similarity queries for a question. The embedder must be the
// one the queried index was built with.
type Retriever struct {
	embedder interfaces.Embedder
	k        int
}

// New creates a Retriever returning k chunks per question
func New(embedder interfaces.Embedder, k int) (*Retriever, error) {
	if embedder == nil {
		return nil, goerr.New("embedder is required")
	}
	if k <= 0 {
		return nil, goerr.New("k must be positive", goerr.V("k", k))
	}
	return &Retriever{embedder: embedder, k: k}, nil
}

// K returns the configured number of results
func (r *Retriever) K() int {
	return r.k
}

// Retrieve returns the chunks of index most similar to question, best first
func (r *Retriever) Retrieve(ctx context.Context, index *vectorindex.Index, question string) ([]model.Chunk, error) {
	if index.Len() == 0 {
		return nil, goerr.Wrap(model.ErrEmptyIndex, "nothing to retrieve from")
	}

	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed question")
	}
	if len(vectors) != 1 {
		return nil, goerr.New("embedder returned unexpected number of vectors", goerr.V("count", len(vectors)))
	}

	results, err := index.Query(vectors[0], r.k)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query index", goerr.V("k", r.k))
	}

	chunks := make([]model.Chunk, len(results))
	for i, res := range results {
		chunks[i] = res.Chunk
	}
	return chunks, nil
}

// JoinContext flattens chunks into a single context string
func JoinContext(chunks []model.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, ContextSeparator)
}
