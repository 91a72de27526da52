package config

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/types"
	"github.com/secmon-lab/vidqa/pkg/service/retriever"
	"github.com/secmon-lab/vidqa/pkg/service/vectorindex"
	"github.com/secmon-lab/vidqa/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Pipeline holds the answering pipeline parameters. Values come from flags, an optional
// TOML file, then built-in defaults, in that order of precedence.
type Pipeline struct {
	configPath      string
	chunkSize       int
	chunkOverlap    int
	topK            int
	languages       []string
	metric          string
	fetchTimeout    time.Duration
	embedTimeout    time.Duration
	generateTimeout time.Duration
}

// PipelineSettings is the resolved pipeline configuration
type PipelineSettings struct {
	ChunkSize       int
	ChunkOverlap    int
	TopK            int
	Languages       types.Languages
	Metric          vectorindex.Metric
	FetchTimeout    time.Duration
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
}

func (s PipelineSettings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("chunk_size", s.ChunkSize),
		slog.Int("chunk_overlap", s.ChunkOverlap),
		slog.Int("top_k", s.TopK),
		slog.Any("languages", s.Languages.Strings()),
		slog.String("metric", s.Metric.String()),
		slog.Duration("fetch_timeout", s.FetchTimeout),
		slog.Duration("embed_timeout", s.EmbedTimeout),
		slog.Duration("generate_timeout", s.GenerateTimeout),
	)
}

// AnswerOptions converts the settings into use case options
func (s *PipelineSettings) AnswerOptions() []usecase.AnswerOption {
	return []usecase.AnswerOption{
		usecase.WithChunking(s.ChunkSize, s.ChunkOverlap),
		usecase.WithTopK(s.TopK),
		usecase.WithLanguages(s.Languages),
		usecase.WithMetric(s.Metric),
		usecase.WithFetchTimeout(s.FetchTimeout),
		usecase.WithEmbedTimeout(s.EmbedTimeout),
		usecase.WithGenerateTimeout(s.GenerateTimeout),
	}
}

// pipelineFile is the TOML layout:
//
//	[pipeline]
//	chunk_size = 1000
//	chunk_overlap = 200
//	top_k = 2
//	languages = ["en", "hi"]
//	metric = "cosine"
//	fetch_timeout = "30s"
type pipelineFile struct {
	Pipeline struct {
		ChunkSize       *int     `toml:"chunk_size"`
		ChunkOverlap    *int     `toml:"chunk_overlap"`
		TopK            *int     `toml:"top_k"`
		Languages       []string `toml:"languages"`
		Metric          *string  `toml:"metric"`
		FetchTimeout    *string  `toml:"fetch_timeout"`
		EmbedTimeout    *string  `toml:"embed_timeout"`
		GenerateTimeout *string  `toml:"generate_timeout"`
	} `toml:"pipeline"`
}

const (
	flagChunkSize       = "chunk-size"
	flagChunkOverlap    = "chunk-overlap"
	flagTopK            = "top-k"
	flagLanguage        = "language"
	flagMetric          = "metric"
	flagFetchTimeout    = "fetch-timeout"
	flagEmbedTimeout    = "embed-timeout"
	flagGenerateTimeout = "generate-timeout"
)

func (x *Pipeline) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Category:    "Pipeline",
			Usage:       "Path to a TOML file with a [pipeline] table",
			Sources:     cli.EnvVars("VIDQA_CONFIG"),
			Destination: &x.configPath,
		},
		&cli.IntFlag{
			Name:        flagChunkSize,
			Category:    "Pipeline",
			Usage:       "Maximum chunk size in characters",
			Value:       usecase.DefaultChunkSize,
			Sources:     cli.EnvVars("VIDQA_CHUNK_SIZE"),
			Destination: &x.chunkSize,
		},
		&cli.IntFlag{
			Name:        flagChunkOverlap,
			Category:    "Pipeline",
			Usage:       "Characters shared by consecutive chunks",
			Value:       usecase.DefaultChunkOverlap,
			Sources:     cli.EnvVars("VIDQA_CHUNK_OVERLAP"),
			Destination: &x.chunkOverlap,
		},
		&cli.IntFlag{
			Name:        flagTopK,
			Category:    "Pipeline",
			Usage:       "Number of chunks passed to the generative model",
			Value:       retriever.DefaultK,
			Sources:     cli.EnvVars("VIDQA_TOP_K"),
			Destination: &x.topK,
		},
		&cli.StringSliceFlag{
			Name:        flagLanguage,
			Category:    "Pipeline",
			Usage:       "Caption language preference, most preferred first (repeatable)",
			Value:       usecase.DefaultLanguages.Strings(),
			Sources:     cli.EnvVars("VIDQA_LANGUAGES"),
			Destination: &x.languages,
		},
		&cli.StringFlag{
			Name:        flagMetric,
			Category:    "Pipeline",
			Usage:       "Similarity metric [cosine|inner_product]",
			Value:       vectorindex.Cosine.String(),
			Sources:     cli.EnvVars("VIDQA_METRIC"),
			Destination: &x.metric,
		},
		&cli.DurationFlag{
			Name:        flagFetchTimeout,
			Category:    "Pipeline",
			Usage:       "Deadline of the transcript fetch (0 disables)",
			Value:       usecase.DefaultFetchTimeout,
			Sources:     cli.EnvVars("VIDQA_FETCH_TIMEOUT"),
			Destination: &x.fetchTimeout,
		},
		&cli.DurationFlag{
			Name:        flagEmbedTimeout,
			Category:    "Pipeline",
			Usage:       "Deadline of each embedding step (0 disables)",
			Value:       usecase.DefaultEmbedTimeout,
			Sources:     cli.EnvVars("VIDQA_EMBED_TIMEOUT"),
			Destination: &x.embedTimeout,
		},
		&cli.DurationFlag{
			Name:        flagGenerateTimeout,
			Category:    "Pipeline",
			Usage:       "Deadline of the generative model call (0 disables)",
			Value:       usecase.DefaultGenerateTimeout,
			Sources:     cli.EnvVars("VIDQA_GENERATE_TIMEOUT"),
			Destination: &x.generateTimeout,
		},
	}
}

// Configure resolves the settings for c
func (x *Pipeline) Configure(c *cli.Command) (*PipelineSettings, error) {
	return x.resolve(c.IsSet)
}

func (x *Pipeline) resolve(isSet func(name string) bool) (*PipelineSettings, error) {
	var file pipelineFile
	if x.configPath != "" {
		raw, err := os.ReadFile(x.configPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, goerr.Wrap(ErrConfigNotFound, "pipeline config not found", goerr.V(ConfigPathKey, x.configPath))
			}
			return nil, goerr.Wrap(err, "failed to read pipeline config", goerr.V(ConfigPathKey, x.configPath))
		}

		dec := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse pipeline config",
				goerr.V(ConfigPathKey, x.configPath), goerr.V("error", err.Error()))
		}
	}
	f := file.Pipeline

	s := &PipelineSettings{
		ChunkSize:    pick(isSet(flagChunkSize), x.chunkSize, f.ChunkSize),
		ChunkOverlap: pick(isSet(flagChunkOverlap), x.chunkOverlap, f.ChunkOverlap),
		TopK:         pick(isSet(flagTopK), x.topK, f.TopK),
	}

	languages := x.languages
	if !isSet(flagLanguage) && len(f.Languages) > 0 {
		languages = f.Languages
	}
	s.Languages = types.NewLanguages(languages...)

	metric, err := vectorindex.ParseMetric(pick(isSet(flagMetric), x.metric, f.Metric))
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, err.Error(), goerr.V(FlagKey, flagMetric))
	}
	s.Metric = metric

	timeouts := []struct {
		flag string
		dst  *time.Duration
		cur  time.Duration
		file *string
	}{
		{flagFetchTimeout, &s.FetchTimeout, x.fetchTimeout, f.FetchTimeout},
		{flagEmbedTimeout, &s.EmbedTimeout, x.embedTimeout, f.EmbedTimeout},
		{flagGenerateTimeout, &s.GenerateTimeout, x.generateTimeout, f.GenerateTimeout},
	}
	for _, t := range timeouts {
		*t.dst = t.cur
		if isSet(t.flag) || t.file == nil {
			continue
		}
		d, err := time.ParseDuration(*t.file)
		if err != nil {
			return nil, goerr.Wrap(ErrInvalidConfig, "invalid duration",
				goerr.V(FlagKey, t.flag), goerr.V(ValueKey, *t.file))
		}
		*t.dst = d
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the bounds of every parameter
func (s *PipelineSettings) Validate() error {
	if s.ChunkSize <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "chunk size must be positive",
			goerr.V(FlagKey, flagChunkSize), goerr.V(ValueKey, s.ChunkSize))
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return goerr.Wrap(ErrInvalidConfig, "chunk overlap must be in [0, chunk size)",
			goerr.V(FlagKey, flagChunkOverlap), goerr.V(ValueKey, s.ChunkOverlap))
	}
	if s.TopK < 1 {
		return goerr.Wrap(ErrInvalidConfig, "top k must be at least 1",
			goerr.V(FlagKey, flagTopK), goerr.V(ValueKey, s.TopK))
	}
	if err := s.Languages.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidConfig, err.Error(),
			goerr.V(FlagKey, flagLanguage), goerr.V(ValueKey, s.Languages.Strings()))
	}
	for name, d := range map[string]time.Duration{
		flagFetchTimeout:    s.FetchTimeout,
		flagEmbedTimeout:    s.EmbedTimeout,
		flagGenerateTimeout: s.GenerateTimeout,
	} {
		if d < 0 {
			return goerr.Wrap(ErrInvalidConfig, "timeout must not be negative",
				goerr.V(FlagKey, name), goerr.V(ValueKey, d))
		}
	}
	return nil
}

// pick returns the flag value when it was set explicitly, else the file value when
// present, else the flag default
func pick[T any](flagSet bool, flagValue T, fileValue *T) T {
	if !flagSet && fileValue != nil {
		return *fileValue
	}
	return flagValue
}
