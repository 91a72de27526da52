package llm

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIEmbedder embeds texts with the OpenAI embeddings API or a compatible server
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	dimension   int
	batchSize   int
	concurrency int
}

// NewOpenAIClient creates a client shared by OpenAIEmbedder and OpenAIGenerator.
// baseURL may be empty for the public API.
func NewOpenAIClient(apiKey, baseURL string) (*openai.Client, error) {
	if apiKey == "" {
		return nil, goerr.New("OpenAI API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client, nil
}

// NewOpenAIEmbedder creates an Embedder using modelName. A zero dimension leaves the
// vector size to the model.
func NewOpenAIEmbedder(client *openai.Client, modelName string, opts ...EmbedderOption) (*OpenAIEmbedder, error) {
	if client == nil {
		return nil, goerr.New("OpenAI client is required")
	}
	if modelName == "" {
		return nil, goerr.New("embedding model is required")
	}

	o := newEmbedderOptions(opts)
	return &OpenAIEmbedder{
		client:      client,
		model:       modelName,
		dimension:   o.dimension,
		batchSize:   o.batchSize,
		concurrency: o.concurrency,
	}, nil
}

// Embed implements interfaces.Embedder
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return batchEmbed(ctx, texts, e.batchSize, e.concurrency, func(ctx context.Context, batch []string) ([][]float32, error) {
		params := openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
			Model: openai.EmbeddingModel(e.model),
		}
		if e.dimension > 0 {
			params.Dimensions = openai.Int(int64(e.dimension))
		}

		resp, err := e.client.Embeddings.New(ctx, params)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to call OpenAI embeddings", goerr.V("model", e.model))
		}
		if len(resp.Data) != len(batch) {
			return nil, goerr.New("OpenAI returned unexpected number of embeddings",
				goerr.V("expected", len(batch)),
				goerr.V("actual", len(resp.Data)))
		}

		out := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || int(d.Index) >= len(batch) {
				return nil, goerr.New("OpenAI returned embedding index out of range", goerr.V("index", d.Index))
			}
			out[d.Index] = toFloat32(d.Embedding)
		}
		return out, nil
	})
}

// OpenAIGenerator answers prompts with the OpenAI chat completions API
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float64
}

// NewOpenAIGenerator creates a Generator using modelName at temperature
func NewOpenAIGenerator(client *openai.Client, modelName string, temperature float64) (*OpenAIGenerator, error) {
	if client == nil {
		return nil, goerr.New("OpenAI client is required")
	}
	if modelName == "" {
		return nil, goerr.New("generative model is required")
	}
	return &OpenAIGenerator{
		client:      client,
		model:       modelName,
		temperature: temperature,
	}, nil
}

// Generate implements interfaces.Generator
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to call OpenAI chat completions", goerr.V("model", g.model))
	}
	if len(resp.Choices) == 0 {
		return "", goerr.New("OpenAI returned no choices", goerr.V("model", g.model))
	}

	var sb strings.Builder
	for _, c := range resp.Choices[:1] {
		sb.WriteString(c.Message.Content)
	}
	return ParseOutput(sb.String()), nil
}
