package types

import (
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// VideoID identifies a video on the transcript source
type VideoID string

var (
	videoIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	videoURLPattern = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?|shorts|live)/|.*[?&]v=)|youtu\.be/)([A-Za-z0-9_-]{11})`)
)

// ParseVideoID accepts either a bare video ID or a YouTube watch/share/embed URL
// and returns the video ID.
func ParseVideoID(s string) (VideoID, error) {
	s = strings.TrimSpace(s)
	if m := videoURLPattern.FindStringSubmatch(s); len(m) == 2 {
		return VideoID(m[1]), nil
	}

	id := VideoID(s)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the VideoID is valid
func (v VideoID) Validate() error {
	if v == "" {
		return goerr.New("video ID cannot be empty")
	}
	if !videoIDPattern.MatchString(string(v)) {
		return goerr.New("video ID must consist of letters, digits, '-' or '_'", goerr.V("video_id", v))
	}
	return nil
}

// String returns the string representation of VideoID
func (v VideoID) String() string {
	return string(v)
}
