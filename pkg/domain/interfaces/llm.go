package interfaces

import "context"

// Embedder maps texts to fixed-dimensional vectors, one per input in input order.
// Implementations must be safe for concurrent use and deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a plain-text completion for a single prompt. The sampling
// temperature is fixed when the generator is constructed.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
