package llm

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
)

// GollemEmbedder embeds texts with a gollem LLM client
type GollemEmbedder struct {
	client      gollem.LLMClient
	dimension   int
	batchSize   int
	concurrency int
}

// EmbedderOption is a functional option shared by the embedders of this package
type EmbedderOption func(*embedderOptions)

type embedderOptions struct {
	dimension   int
	batchSize   int
	concurrency int
}

// WithDimension sets the requested vector size
func WithDimension(dim int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dim
	}
}

// WithBatchSize sets how many texts are sent per provider call
func WithBatchSize(n int) EmbedderOption {
	return func(o *embedderOptions) {
		o.batchSize = n
	}
}

// WithConcurrency sets how many batches are in flight at once
func WithConcurrency(n int) EmbedderOption {
	return func(o *embedderOptions) {
		o.concurrency = n
	}
}

func newEmbedderOptions(opts []EmbedderOption) embedderOptions {
	o := embedderOptions{
		batchSize:   defaultBatchSize,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewGollemEmbedder creates an Embedder over client
func NewGollemEmbedder(client gollem.LLMClient, opts ...EmbedderOption) (*GollemEmbedder, error) {
	if client == nil {
		return nil, goerr.New("LLM client is required")
	}

	o := newEmbedderOptions(append([]EmbedderOption{WithDimension(model.DefaultEmbeddingDimension)}, opts...))
	return &GollemEmbedder{
		client:      client,
		dimension:   o.dimension,
		batchSize:   o.batchSize,
		concurrency: o.concurrency,
	}, nil
}

// Embed implements interfaces.Embedder
func (e *GollemEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return batchEmbed(ctx, texts, e.batchSize, e.concurrency, func(ctx context.Context, batch []string) ([][]float32, error) {
		embeddings, err := e.client.GenerateEmbedding(ctx, e.dimension, batch)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to generate embedding")
		}

		out := make([][]float32, len(embeddings))
		for i, v := range embeddings {
			if len(v) == 0 {
				return nil, goerr.New("embedding generation returned empty vector", goerr.V("index", i))
			}
			out[i] = toFloat32(v)
		}
		return out, nil
	})
}

// GollemGenerator generates answers with a gollem LLM client. Temperature and model are
// fixed on the client when it is created.
type GollemGenerator struct {
	client gollem.LLMClient
}

// NewGollemGenerator creates a Generator over client
func NewGollemGenerator(client gollem.LLMClient) (*GollemGenerator, error) {
	if client == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &GollemGenerator{client: client}, nil
}

// Generate implements interfaces.Generator
func (g *GollemGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	session, err := g.client.NewSession(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.Generate(ctx, []gollem.Input{gollem.Text(prompt)})
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content from LLM")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return "", goerr.New("LLM returned no text")
	}

	return ParseOutput(strings.Join(resp.Texts, "")), nil
}
