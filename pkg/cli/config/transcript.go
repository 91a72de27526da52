package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/interfaces"
	"github.com/secmon-lab/vidqa/pkg/service/srt"
	"github.com/secmon-lab/vidqa/pkg/service/youtube"
	"github.com/urfave/cli/v3"
)

// Transcript backends
const (
	BackendYouTube = "youtube"
	BackendSRT     = "srt"
)

// Transcript holds configuration for the transcript source
type Transcript struct {
	backend    string
	srtDir     string
	retryMax   int
	youtubeURL string
}

func (x *Transcript) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "transcript-backend",
			Category:    "Transcript",
			Usage:       "Transcript source [youtube|srt]",
			Value:       BackendYouTube,
			Sources:     cli.EnvVars("VIDQA_TRANSCRIPT_BACKEND"),
			Destination: &x.backend,
		},
		&cli.StringFlag{
			Name:        "srt-dir",
			Category:    "Transcript",
			Usage:       "Directory of <video_id>.<language>.srt files for the srt backend",
			Sources:     cli.EnvVars("VIDQA_SRT_DIR"),
			Destination: &x.srtDir,
		},
		&cli.IntFlag{
			Name:        "youtube-retry-max",
			Category:    "Transcript",
			Usage:       "Retries for rate limited or failed YouTube requests",
			Value:       2,
			Sources:     cli.EnvVars("VIDQA_YOUTUBE_RETRY_MAX"),
			Destination: &x.retryMax,
		},
		&cli.StringFlag{
			Name:        "youtube-base-url",
			Category:    "Transcript",
			Usage:       "Base URL of the YouTube web endpoints",
			Value:       "https://www.youtube.com",
			Sources:     cli.EnvVars("VIDQA_YOUTUBE_BASE_URL"),
			Destination: &x.youtubeURL,
		},
	}
}

func (x Transcript) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", x.backend),
		slog.String("srt_dir", x.srtDir),
		slog.Int("retry_max", x.retryMax),
	)
}

// Configure creates the transcript source
func (x *Transcript) Configure() (interfaces.TranscriptSource, error) {
	switch x.backend {
	case BackendYouTube:
		if x.retryMax < 0 {
			return nil, goerr.Wrap(ErrInvalidConfig, "retry count must not be negative",
				goerr.V(FlagKey, "youtube-retry-max"), goerr.V(ValueKey, x.retryMax))
		}
		opts := []youtube.Option{
			youtube.WithRetry(x.retryMax, time.Second, 10*time.Second),
		}
		if x.youtubeURL != "" {
			opts = append(opts, youtube.WithBaseURL(x.youtubeURL))
		}
		return youtube.New(opts...), nil

	case BackendSRT:
		if x.srtDir == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "srt backend requires a directory", goerr.V(FlagKey, "srt-dir"))
		}
		src, err := srt.New(x.srtDir)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure srt transcript source")
		}
		return src, nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unsupported transcript backend",
			goerr.V(FlagKey, "transcript-backend"), goerr.V(ValueKey, x.backend))
	}
}
