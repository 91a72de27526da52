package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vidqa/pkg/cli/config"
	"github.com/secmon-lab/vidqa/pkg/domain/types"
	"github.com/secmon-lab/vidqa/pkg/service/vectorindex"
)

func noneSet(string) bool { return false }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vidqa.toml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0o600)).Required()
	return path
}

func TestPipelineDefaults(t *testing.T) {
	s, err := config.NewPipelineForTest("").ResolveForTest(noneSet)
	gt.NoError(t, err).Required()

	gt.Value(t, s.ChunkSize).Equal(1000)
	gt.Value(t, s.ChunkOverlap).Equal(200)
	gt.Value(t, s.TopK).Equal(2)
	gt.Value(t, s.Languages).Equal(types.NewLanguages("en", "hi"))
	gt.Value(t, s.Metric).Equal(vectorindex.Cosine)
	gt.Value(t, s.FetchTimeout).Equal(30 * time.Second)
	gt.Array(t, s.AnswerOptions()).Length(7)
}

func TestPipelineFile(t *testing.T) {
	path := writeConfig(t, `
[pipeline]
chunk_size = 500
chunk_overlap = 50
top_k = 4
languages = ["hi"]
metric = "inner_product"
generate_timeout = "2m"
`)

	t.Run("file overrides defaults", func(t *testing.T) {
		s, err := config.NewPipelineForTest(path).ResolveForTest(noneSet)
		gt.NoError(t, err).Required()
		gt.Value(t, s.ChunkSize).Equal(500)
		gt.Value(t, s.ChunkOverlap).Equal(50)
		gt.Value(t, s.TopK).Equal(4)
		gt.Value(t, s.Languages).Equal(types.NewLanguages("hi"))
		gt.Value(t, s.Metric).Equal(vectorindex.InnerProduct)
		gt.Value(t, s.GenerateTimeout).Equal(2 * time.Minute)
		gt.Value(t, s.EmbedTimeout).Equal(60 * time.Second)
	})

	t.Run("explicit flag overrides file", func(t *testing.T) {
		cfg := config.NewPipelineForTest(path)
		cfg.SetChunkSize(800)
		s, err := cfg.ResolveForTest(func(name string) bool { return name == "chunk-size" })
		gt.NoError(t, err).Required()
		gt.Value(t, s.ChunkSize).Equal(800)
		gt.Value(t, s.ChunkOverlap).Equal(50)
	})
}

func TestPipelineErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
		err  error
	}{
		{name: "overlap not below size", body: "[pipeline]\nchunk_size = 100\nchunk_overlap = 100\n", err: config.ErrInvalidConfig},
		{name: "zero k", body: "[pipeline]\ntop_k = 0\n", err: config.ErrInvalidConfig},
		{name: "bad language", body: "[pipeline]\nlanguages = [\"English\"]\n", err: config.ErrInvalidConfig},
		{name: "duplicate language", body: "[pipeline]\nlanguages = [\"en\", \"en\"]\n", err: config.ErrInvalidConfig},
		{name: "bad metric", body: "[pipeline]\nmetric = \"l2\"\n", err: config.ErrInvalidConfig},
		{name: "bad duration", body: "[pipeline]\nfetch_timeout = \"soon\"\n", err: config.ErrInvalidConfig},
		{name: "negative duration", body: "[pipeline]\nembed_timeout = \"-1s\"\n", err: config.ErrInvalidConfig},
		{name: "unknown key", body: "[pipeline]\nchunk_sise = 10\n", err: config.ErrInvalidConfig},
		{name: "broken toml", body: "[pipeline\n", err: config.ErrInvalidConfig},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.NewPipelineForTest(writeConfig(t, tc.body)).ResolveForTest(noneSet)
			gt.Error(t, err).Is(tc.err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := config.NewPipelineForTest(filepath.Join(t.TempDir(), "none.toml")).ResolveForTest(noneSet)
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})
}
