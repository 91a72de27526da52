package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/secmon-lab/vidqa/pkg/domain/interfaces"
	"github.com/secmon-lab/vidqa/pkg/service/llm"
	"github.com/urfave/cli/v3"
)

// LLM providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash" // embeddings only
)

// LLM holds configuration for the generative model and the embedding model
type LLM struct {
	provider          string
	embeddingProvider string
	temperature       float64
	dimension         int
	batchSize         int

	geminiProject        string
	geminiLocation       string
	geminiModel          string
	geminiEmbeddingModel string

	openaiAPIKey         string
	openaiBaseURL        string
	openaiModel          string
	openaiEmbeddingModel string

	gemini *gemini.Client
}

func (x *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Category:    "LLM",
			Usage:       "Generative model provider [gemini|openai]",
			Value:       ProviderGemini,
			Sources:     cli.EnvVars("VIDQA_LLM_PROVIDER"),
			Destination: &x.provider,
		},
		&cli.StringFlag{
			Name:        "embedding-provider",
			Category:    "LLM",
			Usage:       "Embedding provider [gemini|openai|hash]. Defaults to --llm-provider",
			Sources:     cli.EnvVars("VIDQA_EMBEDDING_PROVIDER"),
			Destination: &x.embeddingProvider,
		},
		&cli.FloatFlag{
			Name:        "temperature",
			Category:    "LLM",
			Usage:       "Sampling temperature of the generative model",
			Value:       0.1,
			Sources:     cli.EnvVars("VIDQA_TEMPERATURE"),
			Destination: &x.temperature,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Category:    "LLM",
			Usage:       "Embedding vector size requested from the provider (0 for the model default with openai)",
			Value:       768,
			Sources:     cli.EnvVars("VIDQA_EMBEDDING_DIMENSION"),
			Destination: &x.dimension,
		},
		&cli.IntFlag{
			Name:        "embedding-batch-size",
			Category:    "LLM",
			Usage:       "Number of texts per embedding request",
			Value:       64,
			Sources:     cli.EnvVars("VIDQA_EMBEDDING_BATCH_SIZE"),
			Destination: &x.batchSize,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Category:    "Gemini",
			Usage:       "Google Cloud project ID for Gemini API",
			Sources:     cli.EnvVars("VIDQA_GEMINI_PROJECT"),
			Destination: &x.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Category:    "Gemini",
			Usage:       "Google Cloud location for Gemini API",
			Value:       "us-central1",
			Sources:     cli.EnvVars("VIDQA_GEMINI_LOCATION"),
			Destination: &x.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Category:    "Gemini",
			Usage:       "Gemini generative model",
			Value:       "gemini-2.0-flash",
			Sources:     cli.EnvVars("VIDQA_GEMINI_MODEL"),
			Destination: &x.geminiModel,
		},
		&cli.StringFlag{
			Name:        "gemini-embedding-model",
			Category:    "Gemini",
			Usage:       "Gemini embedding model",
			Value:       "text-embedding-004",
			Sources:     cli.EnvVars("VIDQA_GEMINI_EMBEDDING_MODEL"),
			Destination: &x.geminiEmbeddingModel,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Category:    "OpenAI",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("VIDQA_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &x.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Category:    "OpenAI",
			Usage:       "Base URL of an OpenAI compatible API",
			Sources:     cli.EnvVars("VIDQA_OPENAI_BASE_URL"),
			Destination: &x.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "openai-model",
			Category:    "OpenAI",
			Usage:       "OpenAI chat model",
			Value:       "gpt-4o-mini",
			Sources:     cli.EnvVars("VIDQA_OPENAI_MODEL"),
			Destination: &x.openaiModel,
		},
		&cli.StringFlag{
			Name:        "openai-embedding-model",
			Category:    "OpenAI",
			Usage:       "OpenAI embedding model",
			Value:       "text-embedding-3-small",
			Sources:     cli.EnvVars("VIDQA_OPENAI_EMBEDDING_MODEL"),
			Destination: &x.openaiEmbeddingModel,
		},
	}
}

func (x LLM) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", x.provider),
		slog.String("embedding_provider", x.embeddingProviderName()),
		slog.Float64("temperature", x.temperature),
		slog.Int("dimension", x.dimension),
		slog.String("gemini_project", x.geminiProject),
		slog.String("gemini_location", x.geminiLocation),
		slog.String("gemini_model", x.geminiModel),
		slog.String("openai_model", x.openaiModel),
		slog.Int("openai_api_key.len", len(x.openaiAPIKey)),
	)
}

func (x *LLM) embeddingProviderName() string {
	if x.embeddingProvider == "" {
		return x.provider
	}
	return x.embeddingProvider
}

// Configure creates the embedder and the generator. Provider clients are created once
// and shared by every request.
func (x *LLM) Configure(ctx context.Context) (interfaces.Embedder, interfaces.Generator, error) {
	if x.temperature < 0 || x.temperature > 2 {
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "temperature must be within [0, 2]",
			goerr.V(FlagKey, "temperature"), goerr.V(ValueKey, x.temperature))
	}

	generator, err := x.configureGenerator(ctx)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := x.configureEmbedder(ctx)
	if err != nil {
		return nil, nil, err
	}

	return embedder, generator, nil
}

func (x *LLM) configureGenerator(ctx context.Context) (interfaces.Generator, error) {
	switch x.provider {
	case ProviderGemini:
		client, err := x.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		return llm.NewGollemGenerator(client)

	case ProviderOpenAI:
		client, err := llm.NewOpenAIClient(x.openaiAPIKey, x.openaiBaseURL)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return llm.NewOpenAIGenerator(client, x.openaiModel, x.temperature)

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unsupported LLM provider",
			goerr.V(FlagKey, "llm-provider"), goerr.V(ValueKey, x.provider))
	}
}

func (x *LLM) configureEmbedder(ctx context.Context) (interfaces.Embedder, error) {
	opts := []llm.EmbedderOption{
		llm.WithDimension(x.dimension),
		llm.WithBatchSize(x.batchSize),
	}

	switch x.embeddingProviderName() {
	case ProviderGemini:
		client, err := x.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		return llm.NewGollemEmbedder(client, opts...)

	case ProviderOpenAI:
		client, err := llm.NewOpenAIClient(x.openaiAPIKey, x.openaiBaseURL)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return llm.NewOpenAIEmbedder(client, x.openaiEmbeddingModel, opts...)

	case ProviderHash:
		return llm.NewHashEmbedder(x.dimension), nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unsupported embedding provider",
			goerr.V(FlagKey, "embedding-provider"), goerr.V(ValueKey, x.embeddingProvider))
	}
}

func (x *LLM) geminiClient(ctx context.Context) (*gemini.Client, error) {
	if x.gemini != nil {
		return x.gemini, nil
	}
	if x.geminiProject == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "Gemini project ID is required",
			goerr.V(FlagKey, "gemini-project"))
	}

	client, err := gemini.New(ctx, x.geminiProject, x.geminiLocation,
		gemini.WithModel(x.geminiModel),
		gemini.WithEmbeddingModel(x.geminiEmbeddingModel),
		gemini.WithTemperature(float32(x.temperature)),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}
	x.gemini = client
	return client, nil
}
