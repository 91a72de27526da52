package model

import (
	"strings"

	"github.com/secmon-lab/vidqa/pkg/domain/types"
)

// AskRequest is a question about one video
type AskRequest struct {
	VideoID  string `json:"video_id"`
	Question string `json:"question"`
}

// Messages returned to callers for client input errors
const (
	InvalidJSONMessage   = "Invalid JSON input"
	MissingFieldsMessage = "Missing video_id or question"
)

// InputError is a client input error whose message is safe to return verbatim.
// errors.Is(err, ErrClientInput) holds for every InputError.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// Is matches ErrClientInput
func (e *InputError) Is(target error) bool { return target == ErrClientInput }

// Validate checks required fields and parses the video ID
func (r AskRequest) Validate() (types.VideoID, error) {
	if strings.TrimSpace(r.VideoID) == "" || strings.TrimSpace(r.Question) == "" {
		return "", &InputError{Msg: MissingFieldsMessage}
	}

	id, err := types.ParseVideoID(r.VideoID)
	if err != nil {
		return "", &InputError{Msg: "Invalid video_id: " + r.VideoID}
	}
	return id, nil
}
