package llm

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize   = 64
	defaultConcurrency = 4
)

type embedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// batchEmbed splits texts into batches of batchSize, runs up to concurrency batches at
// once and returns the vectors in input order
func batchEmbed(ctx context.Context, texts []string, batchSize, concurrency int, fn embedFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	out := make([][]float32, len(texts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		eg.Go(func() error {
			vectors, err := fn(ctx, texts[start:end])
			if err != nil {
				return goerr.Wrap(err, "failed to embed batch", goerr.V("offset", start), goerr.V("size", end-start))
			}
			if len(vectors) != end-start {
				return goerr.New("embedding count mismatch",
					goerr.V("offset", start),
					goerr.V("expected", end-start),
					goerr.V("actual", len(vectors)))
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
