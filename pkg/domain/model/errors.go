package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors shared across the answering pipeline. Stage errors are wrapped
// around these with goerr.Wrap and classified with errors.Is.
var (
	// ErrClientInput is a malformed or incomplete ask request
	ErrClientInput = goerr.New("invalid request")

	// Transcript unavailable family. ErrTranscriptDisabled gets its own user-facing
	// sentence; the others are echoed as the fetch error cause.
	ErrTranscriptDisabled  = goerr.New("transcripts are disabled for this video")
	ErrVideoNotFound       = goerr.New("video is unavailable")
	ErrNoTranscript        = goerr.New("no transcript found for any of the requested languages")
	ErrTranscriptTransport = goerr.New("failed to reach transcript service")

	// Unusable transcript content, surfaced like a fetch error
	ErrEmptyTranscript = goerr.New("transcript is empty")
	ErrEmptyIndex      = goerr.New("vector index is empty")

	ErrTemplateBinding = goerr.New("prompt template binding is missing")

	// ErrProcessing marks embedding and generation provider failures
	ErrProcessing = goerr.New("processing failed")
)

// Context keys for error values
const (
	VideoIDKey   = "video_id"
	LanguagesKey = "languages"
	StateKey     = "state"
)
