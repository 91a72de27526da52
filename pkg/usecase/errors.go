package usecase

// Context keys for error values and log attributes
const (
	RequestIDKey = "request_id"
	QuestionKey  = "question"
	ChunksKey    = "chunks"
)
