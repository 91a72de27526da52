package model

// DefaultEmbeddingDimension is the vector size requested from embedding providers
// that support choosing one
const DefaultEmbeddingDimension = 768

// Chunk is a bounded window of transcript text
type Chunk struct {
	Index int    // position in the chunk sequence, used as the retrieval tie-breaker
	Text  string // window content
}
