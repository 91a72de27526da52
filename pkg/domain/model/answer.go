package model

import "fmt"

// Fixed user-facing sentences
const (
	DisabledTranscriptMessage = "Transcript is disabled for this video."
	ProcessingErrorMessage    = "An error occurred while processing your request. Please check the backend console for details."
	fetchErrorFormat          = "Could not retrieve transcript: %s. Make sure the video ID is correct and has a transcript."
)

// FetchErrorMessage builds the user-facing sentence for an unusable transcript
func FetchErrorMessage(cause error) string {
	return fmt.Sprintf(fetchErrorFormat, cause.Error())
}

// PipelineState is a step of a single answering run
type PipelineState string

const (
	StateFetching   PipelineState = "fetching"
	StateChunking   PipelineState = "chunking"
	StateIndexing   PipelineState = "indexing"
	StateRetrieving PipelineState = "retrieving"
	StateGenerating PipelineState = "generating"
	StateDone       PipelineState = "done"
	StateFailed     PipelineState = "failed"
)

// FailureReason explains a StateFailed run
type FailureReason string

const (
	FailureNone       FailureReason = ""
	FailureDisabled   FailureReason = "disabled"
	FailureFetchError FailureReason = "fetch_error"
	FailureProcessing FailureReason = "processing_error"
)

// Answer is the outcome of one answering run. Text is always safe to show the user.
type Answer struct {
	Text   string
	State  PipelineState
	Reason FailureReason

	// FailedAt is the state the run was in when it failed
	FailedAt PipelineState

	// Refused reports that the model returned the instructed refusal sentence
	Refused bool

	// Context holds the retrieved chunks the answer was generated from
	Context []Chunk
}

// Succeeded reports whether the answer came from the generative model
func (a *Answer) Succeeded() bool {
	return a != nil && a.State == StateDone
}
