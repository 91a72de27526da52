package usecase

import "github.com/secmon-lab/vidqa/pkg/domain/interfaces"

type UseCases struct {
	Answer *AnswerUseCase
}

type Option func(*useCasesConfig)

type useCasesConfig struct {
	answerOpts []AnswerOption
}

// WithAnswerOptions passes options to the AnswerUseCase
func WithAnswerOptions(opts ...AnswerOption) Option {
	return func(c *useCasesConfig) {
		c.answerOpts = append(c.answerOpts, opts...)
	}
}

func New(source interfaces.TranscriptSource, embedder interfaces.Embedder, generator interfaces.Generator, opts ...Option) (*UseCases, error) {
	var cfg useCasesConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	answer, err := NewAnswerUseCase(source, embedder, generator, cfg.answerOpts...)
	if err != nil {
		return nil, err
	}

	return &UseCases{
		Answer: answer,
	}, nil
}
