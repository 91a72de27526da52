package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/interfaces"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
	"github.com/secmon-lab/vidqa/pkg/domain/types"
	"github.com/secmon-lab/vidqa/pkg/service/chunker"
	"github.com/secmon-lab/vidqa/pkg/service/prompt"
	"github.com/secmon-lab/vidqa/pkg/service/retriever"
	"github.com/secmon-lab/vidqa/pkg/service/vectorindex"
	"github.com/secmon-lab/vidqa/pkg/utils/errutil"
	"github.com/secmon-lab/vidqa/pkg/utils/logging"
)

// Pipeline defaults
const (
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
	DefaultFetchTimeout    = 30 * time.Second
	DefaultEmbedTimeout    = 60 * time.Second
	DefaultGenerateTimeout = 60 * time.Second
)

// DefaultLanguages is the caption language preference used when none is configured
var DefaultLanguages = types.NewLanguages("en", "hi")

// AnswerUseCase answers a question about a video from its transcript. Every call builds
// its own index and releases it before returning; nothing is shared between calls
// except the stateless providers.
type AnswerUseCase struct {
	source    interfaces.TranscriptSource
	embedder  interfaces.Embedder
	generator interfaces.Generator

	splitter  *chunker.Splitter
	retriever *retriever.Retriever

	chunkSize       int
	chunkOverlap    int
	k               int
	languages       types.Languages
	metric          vectorindex.Metric
	fetchTimeout    time.Duration
	embedTimeout    time.Duration
	generateTimeout time.Duration

	indexHook func(*vectorindex.Index)
}

// AnswerOption configures AnswerUseCase
type AnswerOption func(*AnswerUseCase)

// WithChunking sets the chunk size and overlap in characters
func WithChunking(size, overlap int) AnswerOption {
	return func(uc *AnswerUseCase) {
		uc.chunkSize = size
		uc.chunkOverlap = overlap
	}
}

// WithTopK sets the number of chunks passed to the generator
func WithTopK(k int) AnswerOption {
	return func(uc *AnswerUseCase) {
		uc.k = k
	}
}

// WithLanguages sets the caption language preference
func WithLanguages(languages types.Languages) AnswerOption {
	return func(uc *AnswerUseCase) {
		uc.languages = languages
	}
}

// WithMetric sets the similarity metric of the per-request index
func WithMetric(m vectorindex.Metric) AnswerOption {
	return func(uc *AnswerUseCase) {
		uc.metric = m
	}
}

// WithFetchTimeout bounds the transcript fetch. Zero disables the deadline.
func WithFetchTimeout(d time.Duration) AnswerOption {
	return func(uc *AnswerUseCase) {
		uc.fetchTimeout = d
	}
}

// WithEmbedTimeout bounds index building and question embedding, each separately.
// Zero disables the deadline.
func WithEmbedTimeout(d time.Duration) AnswerOption {
	return func(uc *AnswerUseCase) {
		uc.embedTimeout = d
	}
}

// WithGenerateTimeout bounds the generative model call. Zero disables the deadline.
func WithGenerateTimeout(d time.Duration) AnswerOption {
	return func(uc *AnswerUseCase) {
		uc.generateTimeout = d
	}
}

// NewAnswerUseCase creates a new AnswerUseCase
func NewAnswerUseCase(source interfaces.TranscriptSource, embedder interfaces.Embedder, generator interfaces.Generator, opts ...AnswerOption) (*AnswerUseCase, error) {
	if source == nil {
		return nil, goerr.New("transcript source is required")
	}
	if embedder == nil {
		return nil, goerr.New("embedder is required")
	}
	if generator == nil {
		return nil, goerr.New("generator is required")
	}

	uc := &AnswerUseCase{
		source:          source,
		embedder:        embedder,
		generator:       generator,
		chunkSize:       DefaultChunkSize,
		chunkOverlap:    DefaultChunkOverlap,
		k:               retriever.DefaultK,
		languages:       DefaultLanguages,
		metric:          vectorindex.Cosine,
		fetchTimeout:    DefaultFetchTimeout,
		embedTimeout:    DefaultEmbedTimeout,
		generateTimeout: DefaultGenerateTimeout,
	}
	for _, opt := range opts {
		opt(uc)
	}

	if err := uc.languages.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid language preference")
	}

	splitter, err := chunker.New(uc.chunkSize, uc.chunkOverlap)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid chunking parameters")
	}
	uc.splitter = splitter

	r, err := retriever.New(embedder, uc.k)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid retrieval parameters")
	}
	uc.retriever = r

	return uc, nil
}

// Answer runs the pipeline for req. The returned error is non-nil only for client input
// errors (errors.Is(err, model.ErrClientInput)); every other failure is reported as an
// Answer in StateFailed whose Text is safe to show the user.
func (uc *AnswerUseCase) Answer(ctx context.Context, req model.AskRequest) (*model.Answer, error) {
	videoID, err := req.Validate()
	if err != nil {
		return nil, err
	}
	question := strings.TrimSpace(req.Question)

	requestID := uuid.Must(uuid.NewV7()).String()
	logger := logging.From(ctx).With(
		slog.String(RequestIDKey, requestID),
		slog.String(model.VideoIDKey, videoID.String()),
	)
	ctx = logging.With(ctx, logger)

	started := time.Now()
	answer := uc.run(ctx, videoID, question)

	logger.Info("answered question",
		slog.String("state", string(answer.State)),
		slog.String("reason", string(answer.Reason)),
		slog.Bool("refused", answer.Refused),
		slog.Duration("elapsed", time.Since(started)),
	)
	return answer, nil
}

func (uc *AnswerUseCase) run(ctx context.Context, videoID types.VideoID, question string) *model.Answer {
	p := &pipeline{ctx: ctx, logger: logging.From(ctx)}

	p.enter(model.StateFetching)
	transcript, err := uc.fetch(ctx, videoID)
	if err != nil {
		return uc.fetchFailure(p, err)
	}

	p.enter(model.StateChunking)
	chunks, err := uc.splitter.Split(transcript.Text())
	if err != nil {
		return p.fail(model.FailureFetchError, model.FetchErrorMessage(fetchCause(err, uc.languages)), err)
	}
	p.logger.Debug("split transcript",
		slog.String("language", transcript.Language.String()),
		slog.Int(ChunksKey, len(chunks)),
	)

	p.enter(model.StateIndexing)
	index, err := uc.buildIndex(ctx, chunks)
	if err != nil {
		return p.failStage(err)
	}
	defer index.Release()
	if uc.indexHook != nil {
		uc.indexHook(index)
	}

	p.enter(model.StateRetrieving)
	retrieved, err := uc.retrieve(ctx, index, question)
	if err != nil {
		return p.failStage(err)
	}

	p.enter(model.StateGenerating)
	rendered, err := prompt.Render(retriever.JoinContext(retrieved), question)
	if err != nil {
		return p.fail(model.FailureProcessing, model.ProcessingErrorMessage, err)
	}

	text, err := uc.generate(ctx, rendered)
	if err != nil {
		return p.fail(model.FailureProcessing, model.ProcessingErrorMessage, err)
	}

	p.enter(model.StateDone)
	return &model.Answer{
		Text:    text,
		State:   model.StateDone,
		Refused: prompt.IsRefusal(text),
		Context: retrieved,
	}
}

func (uc *AnswerUseCase) fetch(ctx context.Context, videoID types.VideoID) (*model.Transcript, error) {
	ctx, cancel := withTimeout(ctx, uc.fetchTimeout)
	defer cancel()

	transcript, err := uc.source.Fetch(ctx, videoID, uc.languages)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch transcript",
			goerr.V(model.VideoIDKey, videoID),
			goerr.V(model.LanguagesKey, uc.languages.Strings()))
	}
	if transcript == nil {
		return nil, goerr.Wrap(model.ErrEmptyTranscript, "transcript source returned nothing", goerr.V(model.VideoIDKey, videoID))
	}
	return transcript, nil
}

func (uc *AnswerUseCase) buildIndex(ctx context.Context, chunks []model.Chunk) (*vectorindex.Index, error) {
	ctx, cancel := withTimeout(ctx, uc.embedTimeout)
	defer cancel()

	index, err := vectorindex.Build(ctx, chunks, uc.embedder, vectorindex.WithMetric(uc.metric))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build index", goerr.V(ChunksKey, len(chunks)))
	}
	return index, nil
}

func (uc *AnswerUseCase) retrieve(ctx context.Context, index *vectorindex.Index, question string) ([]model.Chunk, error) {
	ctx, cancel := withTimeout(ctx, uc.embedTimeout)
	defer cancel()

	chunks, err := uc.retriever.Retrieve(ctx, index, question)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve context", goerr.V("k", uc.k))
	}
	return chunks, nil
}

func (uc *AnswerUseCase) generate(ctx context.Context, rendered string) (string, error) {
	ctx, cancel := withTimeout(ctx, uc.generateTimeout)
	defer cancel()

	text, err := uc.generator.Generate(ctx, rendered)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate answer")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", goerr.Wrap(model.ErrProcessing, "generator returned an empty answer")
	}
	return text, nil
}

func (uc *AnswerUseCase) fetchFailure(p *pipeline, err error) *model.Answer {
	switch {
	case errors.Is(err, model.ErrTranscriptDisabled):
		return p.fail(model.FailureDisabled, model.DisabledTranscriptMessage, err)
	case isDeadline(err), isCanceled(err):
		return p.fail(model.FailureProcessing, model.ProcessingErrorMessage, err)
	default:
		return p.fail(model.FailureFetchError, model.FetchErrorMessage(fetchCause(err, uc.languages)), err)
	}
}

// fetchCause reduces a fetch-style failure to the short reason shown to the user. Only
// sentinel messages are exposed; wrapped provider detail stays in the logs.
func fetchCause(err error, languages types.Languages) error {
	switch {
	case errors.Is(err, model.ErrNoTranscript):
		return goerr.New(fmt.Sprintf("%s (%s)", model.ErrNoTranscript.Error(), strings.Join(languages.Strings(), ", ")))
	case errors.Is(err, model.ErrVideoNotFound):
		return model.ErrVideoNotFound
	case errors.Is(err, model.ErrEmptyTranscript):
		return model.ErrEmptyTranscript
	case errors.Is(err, model.ErrEmptyIndex):
		return model.ErrEmptyIndex
	default:
		return model.ErrTranscriptTransport
	}
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// isCanceled reports a run abandoned by the caller, such as a client that disconnected
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) && !isDeadline(err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// pipeline tracks the state of one run for logging and failure reporting
type pipeline struct {
	ctx    context.Context
	logger *slog.Logger
	state  model.PipelineState
}

func (p *pipeline) enter(state model.PipelineState) {
	p.state = state
	p.logger.Debug("pipeline state", slog.String("state", string(state)))
}

// failStage classifies an index or retrieval failure. An empty index means the
// transcript was unusable; anything else is a provider failure.
func (p *pipeline) failStage(err error) *model.Answer {
	if errors.Is(err, model.ErrEmptyIndex) {
		return p.fail(model.FailureFetchError, model.FetchErrorMessage(model.ErrEmptyIndex), err)
	}
	return p.fail(model.FailureProcessing, model.ProcessingErrorMessage, err)
}

func (p *pipeline) fail(reason model.FailureReason, text string, err error) *model.Answer {
	err = goerr.Wrap(err, "pipeline failed",
		goerr.V(model.StateKey, p.state),
		goerr.V("reason", reason))

	switch {
	case isCanceled(err):
		p.logger.Warn("request canceled",
			slog.String(model.StateKey, string(p.state)),
			slog.Any("error", err),
		)
	case reason == model.FailureProcessing:
		errutil.Handle(p.ctx, err, "failed to answer question")
	default:
		p.logger.Warn("transcript unusable",
			slog.String(model.StateKey, string(p.state)),
			slog.String("reason", string(reason)),
			slog.Any("error", err),
		)
	}

	return &model.Answer{
		Text:     text,
		State:    model.StateFailed,
		Reason:   reason,
		FailedAt: p.state,
	}
}
