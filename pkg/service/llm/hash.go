package llm

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/viterin/vek/vek32"
)

// HashEmbedder is a local, credential-free embedder based on feature hashing of
// lower-cased word tokens. Vectors are L2-normalized. It needs no network access and is
// meant for development and offline use; its similarity is lexical, not semantic.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder producing dim-sized vectors
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{dim: dim}
}

// Embed implements interfaces.Embedder
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		if sum&0x80000000 != 0 {
			v[int(sum%uint32(e.dim))] -= 1
		} else {
			v[int(sum%uint32(e.dim))] += 1
		}
	}

	if norm := vek32.Norm(v); norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}
