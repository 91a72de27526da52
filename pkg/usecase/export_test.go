package usecase

import "github.com/secmon-lab/vidqa/pkg/service/vectorindex"

// SetIndexHook registers a callback receiving each per-request index right after it is built
func SetIndexHook(uc *AnswerUseCase, hook func(*vectorindex.Index)) {
	uc.indexHook = hook
}

// FetchCause is exported for testing
var FetchCause = fetchCause
