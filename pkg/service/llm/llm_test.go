package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vidqa/pkg/service/llm"
	"github.com/viterin/vek/vek32"
)

var _ gollem.Session = (*mockLLMSession)(nil)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateFn func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	if s.generateFn != nil {
		return s.generateFn(ctx, input, opts...)
	}
	return &gollem.Response{Texts: []string{"test response"}}, nil
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return nil, errors.New("GenerateContent is deprecated, use Generate")
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, errors.New("GenerateStream is deprecated, use Stream")
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	session             *mockLLMSession
	newSessionErr       error
	generateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionErr != nil {
		return nil, c.newSessionErr
	}
	if c.session != nil {
		return c.session, nil
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	if c.generateEmbeddingFn != nil {
		return c.generateEmbeddingFn(ctx, dimension, input)
	}
	out := make([][]float64, len(input))
	for i := range input {
		out[i] = make([]float64, dimension)
	}
	return out, nil
}

func TestGollemEmbedder(t *testing.T) {
	t.Run("requires client", func(t *testing.T) {
		_, err := llm.NewGollemEmbedder(nil)
		gt.Value(t, err).NotNil()
	})

	t.Run("batches keep input order", func(t *testing.T) {
		var mu sync.Mutex
		var batches [][]string
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				mu.Lock()
				batches = append(batches, input)
				mu.Unlock()

				gt.Value(t, dimension).Equal(3)
				out := make([][]float64, len(input))
				for i, s := range input {
					out[i] = []float64{float64(len(s)), 0, 1}
				}
				return out, nil
			},
		}

		embedder, err := llm.NewGollemEmbedder(client, llm.WithDimension(3), llm.WithBatchSize(2), llm.WithConcurrency(2))
		gt.NoError(t, err).Required()

		texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
		vectors, err := embedder.Embed(t.Context(), texts)
		gt.NoError(t, err).Required()
		gt.Array(t, vectors).Length(5)
		for i, v := range vectors {
			gt.Value(t, v).Equal([]float32{float32(i + 1), 0, 1})
		}
		gt.Array(t, batches).Length(3)
	})

	t.Run("provider error is wrapped", func(t *testing.T) {
		providerErr := errors.New("quota exceeded")
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				return nil, providerErr
			},
		}
		embedder, err := llm.NewGollemEmbedder(client)
		gt.NoError(t, err).Required()

		_, err = embedder.Embed(t.Context(), []string{"a"})
		gt.Error(t, err).Is(providerErr)
	})

	t.Run("count mismatch is an error", func(t *testing.T) {
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				return [][]float64{{1}}, nil
			},
		}
		embedder, err := llm.NewGollemEmbedder(client)
		gt.NoError(t, err).Required()

		_, err = embedder.Embed(t.Context(), []string{"a", "b"})
		gt.Value(t, err).NotNil()
	})

	t.Run("empty input makes no call", func(t *testing.T) {
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				t.Error("unexpected call")
				return nil, nil
			},
		}
		embedder, err := llm.NewGollemEmbedder(client)
		gt.NoError(t, err).Required()

		vectors, err := embedder.Embed(t.Context(), nil)
		gt.NoError(t, err)
		gt.Array(t, vectors).Length(0)
	})
}

func TestGollemGenerator(t *testing.T) {
	t.Run("returns parsed text", func(t *testing.T) {
		var gotPrompt string
		client := &mockLLMClient{
			session: &mockLLMSession{
				generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
					gt.Array(t, input).Length(1)
					if txt, ok := input[0].(gollem.Text); ok {
						gotPrompt = string(txt)
					}
					return &gollem.Response{Texts: []string{"  Cats are ", "mammals.\n"}}, nil
				},
			},
		}
		gen, err := llm.NewGollemGenerator(client)
		gt.NoError(t, err).Required()

		answer, err := gen.Generate(t.Context(), "What are cats?")
		gt.NoError(t, err).Required()
		gt.Value(t, answer).Equal("Cats are mammals.")
		gt.Value(t, gotPrompt).Equal("What are cats?")
	})

	t.Run("session error", func(t *testing.T) {
		gen, err := llm.NewGollemGenerator(&mockLLMClient{newSessionErr: errors.New("auth failed")})
		gt.NoError(t, err).Required()

		_, err = gen.Generate(t.Context(), "q")
		gt.Value(t, err).NotNil()
	})

	t.Run("empty response", func(t *testing.T) {
		client := &mockLLMClient{
			session: &mockLLMSession{
				generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
					return &gollem.Response{}, nil
				},
			},
		}
		gen, err := llm.NewGollemGenerator(client)
		gt.NoError(t, err).Required()

		_, err = gen.Generate(t.Context(), "q")
		gt.Value(t, err).NotNil()
	})
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain text", raw: "  Cats are mammals.\n", want: "Cats are mammals."},
		{name: "json answer", raw: `{"answer": "Cats are mammals."}`, want: "Cats are mammals."},
		{name: "fenced json", raw: "```json\n{\"answer\": \"Cats are mammals.\"}\n```", want: "Cats are mammals."},
		{name: "fenced text", raw: "```\nCats are mammals.\n```", want: "Cats are mammals."},
		{name: "json without answer key", raw: `{"foo": 1}`, want: `{"foo": 1}`},
		{name: "braces in prose", raw: "{not json}", want: "{not json}"},
		{
			name: "refusal is untouched",
			raw:  "I don't have enough information from this video's transcript to answer that question.",
			want: "I don't have enough information from this video's transcript to answer that question.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, llm.ParseOutput(tt.raw)).Equal(tt.want)
		})
	}
}

func TestHashEmbedder(t *testing.T) {
	e := llm.NewHashEmbedder(128)

	vectors, err := e.Embed(t.Context(), []string{
		"Cats are mammals.",
		"cats ARE mammals",
		"Rockets need fuel",
	})
	gt.NoError(t, err).Required()
	gt.Array(t, vectors).Length(3)
	gt.Array(t, vectors[0]).Length(128)

	t.Run("deterministic and case insensitive", func(t *testing.T) {
		gt.Value(t, vectors[0]).Equal(vectors[1])
	})

	t.Run("normalized", func(t *testing.T) {
		n := vek32.Norm(vectors[0])
		gt.Bool(t, n > 0.999 && n < 1.001).True()
	})

	t.Run("shared words score higher", func(t *testing.T) {
		q, err := e.Embed(t.Context(), []string{"What are cats?"})
		gt.NoError(t, err).Required()
		gt.Number(t, vek32.Dot(q[0], vectors[0])).Greater(vek32.Dot(q[0], vectors[2]))
	})

	t.Run("empty text is zero vector", func(t *testing.T) {
		v, err := e.Embed(t.Context(), []string{""})
		gt.NoError(t, err).Required()
		gt.Value(t, vek32.Norm(v[0])).Equal(float32(0))
	})
}

func TestOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch {
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			inputs, _ := body["input"].([]any)
			data := make([]map[string]any, len(inputs))
			// reversed order to exercise index placement
			for i := range inputs {
				j := len(inputs) - 1 - i
				data[i] = map[string]any{"object": "embedding", "index": j, "embedding": []float64{float64(j), 1}}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data":   data,
				"model":  body["model"],
				"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
			})
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			gt.Value(t, body["temperature"]).Equal(0.1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "cmpl-1",
				"object":  "chat.completion",
				"created": 1,
				"model":   body["model"],
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": " Cats are mammals. "},
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := llm.NewOpenAIClient("test-key", srv.URL+"/v1/")
	gt.NoError(t, err).Required()

	t.Run("embeddings are placed by index", func(t *testing.T) {
		embedder, err := llm.NewOpenAIEmbedder(client, "text-embedding-3-small")
		gt.NoError(t, err).Required()

		vectors, err := embedder.Embed(t.Context(), []string{"a", "b", "c"})
		gt.NoError(t, err).Required()
		gt.Value(t, vectors).Equal([][]float32{{0, 1}, {1, 1}, {2, 1}})
	})

	t.Run("chat completion", func(t *testing.T) {
		gen, err := llm.NewOpenAIGenerator(client, "gpt-4o-mini", 0.1)
		gt.NoError(t, err).Required()

		answer, err := gen.Generate(t.Context(), "What are cats?")
		gt.NoError(t, err).Required()
		gt.Value(t, answer).Equal("Cats are mammals.")
	})

	t.Run("requires api key", func(t *testing.T) {
		_, err := llm.NewOpenAIClient("", "")
		gt.Value(t, err).NotNil()
	})
}
