package vectorindex

import (
	"cmp"
	"context"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/interfaces"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
	"github.com/viterin/vek/vek32"
)

// Metric is the similarity function used by Query
type Metric int

const (
	// Cosine similarity, the default
	Cosine Metric = iota
	// InnerProduct is the raw dot product, for providers that return normalized vectors
	InnerProduct
)

func (m Metric) String() string {
	switch m {
	case Cosine:
		return "cosine"
	case InnerProduct:
		return "inner_product"
	default:
		return "unknown"
	}
}

// ParseMetric converts a configuration value into a Metric
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", "cosine":
		return Cosine, nil
	case "inner_product", "dot":
		return InnerProduct, nil
	default:
		return 0, goerr.New("unknown similarity metric", goerr.V("metric", s))
	}
}

// ErrReleased is returned by Query after Release
var ErrReleased = goerr.New("vector index has been released")

// Result is one ranked chunk
type Result struct {
	Chunk model.Chunk
	Score float32
}

// Index is an in-memory brute-force similarity index over the chunks of a single
// transcript. It is built per request and must not be shared between requests.
// An Index is not safe for concurrent use.
type Index struct {
	metric   Metric
	dim      int
	chunks   []model.Chunk
	vectors  [][]float32
	norms    []float32
	released bool
}

// Option is a functional option for Index
type Option func(*Index)

// WithMetric sets the similarity metric
func WithMetric(m Metric) Option {
	return func(x *Index) {
		x.metric = m
	}
}

// Build embeds every chunk with embedder and indexes the resulting vectors
func Build(ctx context.Context, chunks []model.Chunk, embedder interfaces.Embedder, opts ...Option) (*Index, error) {
	if len(chunks) == 0 {
		return nil, goerr.Wrap(model.ErrEmptyIndex, "no chunks to index")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed chunks", goerr.V("chunks", len(chunks)))
	}

	return New(chunks, vectors, opts...)
}

// New indexes precomputed vectors. vectors[i] belongs to chunks[i].
func New(chunks []model.Chunk, vectors [][]float32, opts ...Option) (*Index, error) {
	if len(chunks) == 0 {
		return nil, goerr.Wrap(model.ErrEmptyIndex, "no chunks to index")
	}
	if len(chunks) != len(vectors) {
		return nil, goerr.New("chunks and vectors length mismatch",
			goerr.V("chunks", len(chunks)),
			goerr.V("vectors", len(vectors)))
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, goerr.New("embedding vector is empty")
	}

	x := &Index{
		metric:  Cosine,
		dim:     dim,
		chunks:  make([]model.Chunk, len(chunks)),
		vectors: make([][]float32, len(vectors)),
		norms:   make([]float32, len(vectors)),
	}
	for _, opt := range opts {
		opt(x)
	}

	copy(x.chunks, chunks)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, goerr.New("vector dimension mismatch",
				goerr.V("index", i),
				goerr.V("expected", dim),
				goerr.V("actual", len(v)))
		}
		x.vectors[i] = slices.Clone(v)
		x.norms[i] = vek32.Norm(v)
	}

	return x, nil
}

// Len returns the number of indexed chunks, 0 after Release
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.chunks)
}

// Dimension returns the vector dimension of the index
func (x *Index) Dimension() int {
	return x.dim
}

// Metric returns the similarity metric of the index
func (x *Index) Metric() Metric {
	return x.metric
}

// Query returns the min(k, Len()) chunks most similar to vector, by descending score.
// Equal scores keep chunk order.
func (x *Index) Query(vector []float32, k int) ([]Result, error) {
	if x.released {
		return nil, ErrReleased
	}
	if k <= 0 {
		return nil, goerr.New("k must be positive", goerr.V("k", k))
	}
	if len(vector) != x.dim {
		return nil, goerr.New("query vector dimension mismatch",
			goerr.V("expected", x.dim),
			goerr.V("actual", len(vector)))
	}
	if len(x.chunks) == 0 {
		return nil, goerr.Wrap(model.ErrEmptyIndex, "index has no chunks")
	}

	queryNorm := vek32.Norm(vector)
	results := make([]Result, len(x.chunks))
	for i, v := range x.vectors {
		results[i] = Result{
			Chunk: x.chunks[i],
			Score: x.score(vector, queryNorm, v, x.norms[i]),
		}
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Score, a.Score)
	})

	return results[:min(k, len(results))], nil
}

func (x *Index) score(q []float32, qNorm float32, v []float32, vNorm float32) float32 {
	dot := vek32.Dot(q, v)
	if x.metric == InnerProduct {
		return dot
	}
	if qNorm == 0 || vNorm == 0 {
		return 0
	}
	return dot / (qNorm * vNorm)
}

// Release drops every chunk and vector held by the index. It is safe to call more than once.
func (x *Index) Release() {
	if x == nil {
		return
	}
	clear(x.vectors)
	x.chunks = nil
	x.vectors = nil
	x.norms = nil
	x.released = true
}
