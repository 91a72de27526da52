package model

import (
	"strings"
	"time"

	"github.com/secmon-lab/vidqa/pkg/domain/types"
)

// TranscriptFragment is one timed caption line
type TranscriptFragment struct {
	Text     string
	Start    time.Duration
	Duration time.Duration
}

// Transcript is the caption track fetched for a single request. It is never cached.
type Transcript struct {
	VideoID   types.VideoID
	Language  types.Language
	Generated bool // true when the track is auto-generated speech recognition
	Fragments []TranscriptFragment
}

// Text concatenates the fragment texts with single spaces, ignoring timing
func (t *Transcript) Text() string {
	if t == nil {
		return ""
	}
	parts := make([]string, 0, len(t.Fragments))
	for _, f := range t.Fragments {
		if s := strings.TrimSpace(f.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
