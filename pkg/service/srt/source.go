package srt

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
	"github.com/secmon-lab/vidqa/pkg/domain/types"
	"github.com/secmon-lab/vidqa/pkg/utils/logging"
)

// DisabledSuffix marks a video whose transcripts are disabled: <video_id>.disabled
const DisabledSuffix = ".disabled"

// Source serves transcripts from a directory of SubRip files named
// <video_id>.<language>.srt. It implements interfaces.TranscriptSource.
type Source struct {
	fsys fs.FS
}

// New creates a Source rooted at dir
func New(dir string) (*Source, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open transcript directory", goerr.V("dir", dir))
	}
	if !info.IsDir() {
		return nil, goerr.New("transcript path is not a directory", goerr.V("dir", dir))
	}
	return &Source{fsys: os.DirFS(dir)}, nil
}

// NewFS creates a Source over fsys
func NewFS(fsys fs.FS) *Source {
	return &Source{fsys: fsys}
}

// Fetch returns the transcript of the first language in languages that has a file
func (s *Source) Fetch(ctx context.Context, videoID types.VideoID, languages types.Languages) (*model.Transcript, error) {
	// VideoID validation keeps path separators out of file names
	if err := videoID.Validate(); err != nil {
		return nil, goerr.Wrap(model.ErrVideoNotFound, err.Error(), goerr.V(model.VideoIDKey, videoID))
	}

	if _, err := fs.Stat(s.fsys, videoID.String()+DisabledSuffix); err == nil {
		return nil, goerr.Wrap(model.ErrTranscriptDisabled, "disabled marker exists", goerr.V(model.VideoIDKey, videoID))
	}

	for _, lang := range languages {
		name := videoID.String() + "." + lang.String() + ".srt"
		data, err := fs.ReadFile(s.fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, goerr.Wrap(model.ErrTranscriptTransport, "failed to read transcript file",
				goerr.V("file", name),
				goerr.V("error", err.Error()))
		}

		fragments, err := Parse(string(data))
		if err != nil {
			return nil, goerr.Wrap(model.ErrTranscriptTransport, "failed to parse transcript file",
				goerr.V("file", name),
				goerr.V("error", err.Error()))
		}

		logging.From(ctx).Debug("loaded transcript file", "file", name, "fragments", len(fragments))
		return &model.Transcript{
			VideoID:   videoID,
			Language:  lang,
			Fragments: fragments,
		}, nil
	}

	matches, err := fs.Glob(s.fsys, videoID.String()+".*.srt")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list transcript files")
	}
	if len(matches) == 0 {
		return nil, goerr.Wrap(model.ErrVideoNotFound, "no transcript files for video", goerr.V(model.VideoIDKey, videoID))
	}

	available := make([]string, len(matches))
	for i, m := range matches {
		available[i] = filepath.Base(m)
	}
	return nil, goerr.Wrap(model.ErrNoTranscript, "no transcript file matches",
		goerr.V(model.VideoIDKey, videoID),
		goerr.V(model.LanguagesKey, languages.Strings()),
		goerr.V("available", available))
}
