package config

import "time"

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

// NewTranscriptForTest creates a Transcript config for testing purposes
func NewTranscriptForTest(backend, srtDir string, retryMax int) *Transcript {
	return &Transcript{backend: backend, srtDir: srtDir, retryMax: retryMax}
}

// NewLLMForTest creates an LLM config for testing purposes
func NewLLMForTest(provider, embeddingProvider, openaiAPIKey string, temperature float64, dimension int) *LLM {
	return &LLM{
		provider:             provider,
		embeddingProvider:    embeddingProvider,
		openaiAPIKey:         openaiAPIKey,
		openaiModel:          "gpt-4o-mini",
		openaiEmbeddingModel: "text-embedding-3-small",
		temperature:          temperature,
		dimension:            dimension,
		batchSize:            64,
	}
}

// NewPipelineForTest creates a Pipeline config holding the flag defaults
func NewPipelineForTest(configPath string) *Pipeline {
	return &Pipeline{
		configPath:      configPath,
		chunkSize:       1000,
		chunkOverlap:    200,
		topK:            2,
		languages:       []string{"en", "hi"},
		metric:          "cosine",
		fetchTimeout:    30 * time.Second,
		embedTimeout:    60 * time.Second,
		generateTimeout: 60 * time.Second,
	}
}

// SetChunkSize overrides the chunk size flag value
func (x *Pipeline) SetChunkSize(n int) {
	x.chunkSize = n
}

// ResolveForTest resolves settings with isSet reporting explicitly set flags
func (x *Pipeline) ResolveForTest(isSet func(name string) bool) (*PipelineSettings, error) {
	return x.resolve(isSet)
}
