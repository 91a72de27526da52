package interfaces

import (
	"context"

	"github.com/secmon-lab/vidqa/pkg/domain/model"
	"github.com/secmon-lab/vidqa/pkg/domain/types"
)

// TranscriptSource fetches the caption track of a video. Implementations pick the first
// language of languages that has a track and fail with errors wrapping
// model.ErrTranscriptDisabled, model.ErrVideoNotFound, model.ErrNoTranscript or
// model.ErrTranscriptTransport.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID types.VideoID, languages types.Languages) (*model.Transcript, error)
}
