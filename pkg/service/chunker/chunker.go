package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
)

// DefaultSeparators are tried in order: paragraph, line, word, character
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into windows of at most size runes whose neighbours share up to
// overlap runes. A Splitter holds no mutable state and may be shared.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// Option is a functional option for Splitter
type Option func(*Splitter)

// WithSeparators replaces DefaultSeparators. Without a trailing "" separator, a piece that
// contains none of the separators is kept whole even when it exceeds size.
func WithSeparators(separators ...string) Option {
	return func(s *Splitter) {
		s.separators = separators
	}
}

// New creates a Splitter
func New(size, overlap int, opts ...Option) (*Splitter, error) {
	if size <= 0 {
		return nil, goerr.New("chunk size must be positive", goerr.V("size", size))
	}
	if overlap < 0 || overlap >= size {
		return nil, goerr.New("chunk overlap must be in [0, size)", goerr.V("size", size), goerr.V("overlap", overlap))
	}

	s := &Splitter{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.separators) == 0 {
		return nil, goerr.New("at least one separator is required")
	}

	return s, nil
}

// Split returns the chunk sequence for text. Empty or whitespace-only text fails with
// model.ErrEmptyTranscript.
func (s *Splitter) Split(text string) ([]model.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrEmptyTranscript, "nothing to split")
	}

	windows := s.split(text, s.separators)
	chunks := make([]model.Chunk, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, model.Chunk{Index: len(chunks), Text: w})
	}
	if len(chunks) == 0 {
		return nil, goerr.Wrap(model.ErrEmptyTranscript, "splitting produced no chunks", goerr.V("length", len(text)))
	}

	return chunks, nil
}

// split cuts text at the highest-priority separator it contains and recurses into
// pieces that are still too long with the lower-priority separators.
func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			sep = candidate
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var out, small []string
	for _, piece := range splitOn(text, sep) {
		if runeLen(piece) < s.size {
			small = append(small, piece)
			continue
		}

		if len(small) > 0 {
			out = append(out, s.merge(small, sep)...)
			small = nil
		}
		if len(rest) == 0 {
			// indivisible with the configured separators
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				out = append(out, trimmed)
			}
			continue
		}
		out = append(out, s.split(piece, rest)...)
	}
	if len(small) > 0 {
		out = append(out, s.merge(small, sep)...)
	}

	return out
}

// merge joins pieces into windows of at most size runes. When a window is emitted, its
// leading pieces are dropped until the kept tail fits in overlap, so the next window
// starts with the tail of the previous one.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	joinCost := func(n int) int {
		if n > 0 {
			return sepLen
		}
		return 0
	}

	var out, window []string
	total := 0
	emit := func() {
		if doc := strings.TrimSpace(strings.Join(window, sep)); doc != "" {
			out = append(out, doc)
		}
	}

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n+joinCost(len(window)) > s.size && len(window) > 0 {
			emit()
			for total > s.overlap || (total > 0 && total+n+joinCost(len(window)) > s.size) {
				total -= runeLen(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}

		total += n + joinCost(len(window))
		window = append(window, piece)
	}
	emit()

	return out
}

func splitOn(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
