package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
	"github.com/secmon-lab/vidqa/pkg/domain/types"
	"github.com/secmon-lab/vidqa/pkg/utils/logging"
	"github.com/secmon-lab/vidqa/pkg/utils/safe"
)

const (
	defaultBaseURL    = "https://www.youtube.com"
	defaultRetryMax   = 2
	maxWatchPageBytes = 8 << 20
	maxBodyBytes      = 4 << 20
)

var (
	apiKeyPattern = regexp.MustCompile(`"INNERTUBE_API_KEY":\s*"([a-zA-Z0-9_-]+)"`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)

	// the ANDROID client returns caption base URLs that do not require a PO token
	defaultInnertubeClient = innertubeClient{ClientName: "ANDROID", ClientVersion: "20.10.38"}
)

// Client fetches video transcripts from the YouTube caption endpoints. It implements
// interfaces.TranscriptSource and is safe for concurrent use.
type Client struct {
	httpClient     *retryablehttp.Client
	baseURL        string
	acceptLanguage string
	innertube      innertubeClient
}

// Option is a functional option for Client
type Option func(*Client)

// WithBaseURL replaces https://www.youtube.com, mainly for tests
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient = hc
	}
}

// WithRetry sets the retry count and backoff bounds for 429 and 5xx responses
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = max
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// New creates a Client
func New(opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = defaultRetryMax
	rc.Logger = logging.Default()
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		httpClient:     rc,
		baseURL:        defaultBaseURL,
		acceptLanguage: "en-US",
		innertube:      defaultInnertubeClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the transcript of videoID in the first of languages that has a caption
// track. Manually created tracks are preferred over generated ones of the same language.
func (c *Client) Fetch(ctx context.Context, videoID types.VideoID, languages types.Languages) (*model.Transcript, error) {
	if err := videoID.Validate(); err != nil {
		return nil, goerr.Wrap(model.ErrVideoNotFound, err.Error(), goerr.V(model.VideoIDKey, videoID))
	}

	apiKey, err := c.fetchAPIKey(ctx, videoID)
	if err != nil {
		return nil, err
	}

	player, err := c.fetchPlayer(ctx, videoID, apiKey)
	if err != nil {
		return nil, err
	}

	tracks, err := captionTracks(videoID, player)
	if err != nil {
		return nil, err
	}

	track, ok := selectTrack(tracks, languages)
	if !ok {
		available := make([]string, len(tracks))
		for i, t := range tracks {
			available[i] = t.LanguageCode
		}
		return nil, goerr.Wrap(model.ErrNoTranscript, "no caption track matches",
			goerr.V(model.VideoIDKey, videoID),
			goerr.V(model.LanguagesKey, languages.Strings()),
			goerr.V("available", available))
	}

	fragments, err := c.fetchTimedText(ctx, videoID, track)
	if err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("fetched transcript",
		"video_id", videoID,
		"language", track.LanguageCode,
		"generated", track.generated(),
		"fragments", len(fragments),
	)

	return &model.Transcript{
		VideoID:   videoID,
		Language:  types.Language(track.LanguageCode),
		Generated: track.generated(),
		Fragments: fragments,
	}, nil
}

func (c *Client) fetchAPIKey(ctx context.Context, videoID types.VideoID) (string, error) {
	u := c.baseURL + "/watch?v=" + url.QueryEscape(videoID.String())
	body, err := c.do(ctx, http.MethodGet, u, nil, maxWatchPageBytes)
	if err != nil {
		return "", goerr.Wrap(err, "failed to fetch watch page", goerr.V(model.VideoIDKey, videoID))
	}

	if bytes.Contains(body, []byte(`class="g-recaptcha"`)) {
		return "", goerr.Wrap(model.ErrTranscriptTransport, "request was blocked by a captcha", goerr.V(model.VideoIDKey, videoID))
	}

	m := apiKeyPattern.FindSubmatch(body)
	if len(m) != 2 {
		return "", goerr.Wrap(model.ErrTranscriptTransport, "innertube API key not found in watch page", goerr.V(model.VideoIDKey, videoID))
	}
	return string(m[1]), nil
}

func (c *Client) fetchPlayer(ctx context.Context, videoID types.VideoID, apiKey string) (*playerResponse, error) {
	var req playerRequest
	req.Context.Client = c.innertube
	req.VideoID = videoID.String()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal player request")
	}

	u := c.baseURL + "/youtubei/v1/player?key=" + url.QueryEscape(apiKey)
	body, err := c.do(ctx, http.MethodPost, u, payload, maxBodyBytes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch player response", goerr.V(model.VideoIDKey, videoID))
	}

	var resp playerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, goerr.Wrap(model.ErrTranscriptTransport, "failed to parse player response",
			goerr.V(model.VideoIDKey, videoID),
			goerr.V("error", err.Error()))
	}
	return &resp, nil
}

func captionTracks(videoID types.VideoID, player *playerResponse) ([]captionTrack, error) {
	switch status := player.PlayabilityStatus.Status; status {
	case "OK", "":
	case "ERROR":
		return nil, goerr.Wrap(model.ErrVideoNotFound, "video does not exist",
			goerr.V(model.VideoIDKey, videoID),
			goerr.V("reason", player.PlayabilityStatus.Reason))
	default:
		return nil, goerr.Wrap(model.ErrVideoNotFound, "video is unplayable",
			goerr.V(model.VideoIDKey, videoID),
			goerr.V("status", status),
			goerr.V("reason", player.PlayabilityStatus.Reason))
	}

	if player.Captions == nil || player.Captions.Renderer == nil {
		return nil, goerr.Wrap(model.ErrTranscriptDisabled, "player response has no captions", goerr.V(model.VideoIDKey, videoID))
	}
	tracks := player.Captions.Renderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, goerr.Wrap(model.ErrTranscriptDisabled, "player response has no caption tracks", goerr.V(model.VideoIDKey, videoID))
	}
	return tracks, nil
}

// selectTrack walks languages in order and returns the manual track of the first
// language that has one, falling back to its generated track.
func selectTrack(tracks []captionTrack, languages types.Languages) (captionTrack, bool) {
	for _, lang := range languages {
		var generated *captionTrack
		for i := range tracks {
			if tracks[i].LanguageCode != lang.String() {
				continue
			}
			if !tracks[i].generated() {
				return tracks[i], true
			}
			if generated == nil {
				generated = &tracks[i]
			}
		}
		if generated != nil {
			return *generated, true
		}
	}
	return captionTrack{}, false
}

func (c *Client) fetchTimedText(ctx context.Context, videoID types.VideoID, track captionTrack) ([]model.TranscriptFragment, error) {
	u := strings.Replace(track.BaseURL, "&fmt=srv3", "", 1)
	body, err := c.do(ctx, http.MethodGet, u, nil, maxBodyBytes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch caption track",
			goerr.V(model.VideoIDKey, videoID),
			goerr.V("language", track.LanguageCode))
	}
	return parseTimedText(body)
}

func parseTimedText(body []byte) ([]model.TranscriptFragment, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, goerr.Wrap(model.ErrTranscriptTransport, "failed to parse caption track", goerr.V("error", err.Error()))
	}

	fragments := make([]model.TranscriptFragment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.TrimSpace(tagPattern.ReplaceAllString(html.UnescapeString(t.Body), ""))
		if text == "" {
			continue
		}
		fragments = append(fragments, model.TranscriptFragment{
			Text:     text,
			Start:    seconds(t.Start),
			Duration: seconds(t.Dur),
		})
	}
	return fragments, nil
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func (c *Client) do(ctx context.Context, method, u string, payload []byte, limit int64) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept-Language", c.acceptLanguage)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, goerr.Wrap(ctxErr, "transcript request aborted")
		}
		return nil, goerr.Wrap(model.ErrTranscriptTransport, "request failed", goerr.V("error", err.Error()))
	}
	defer safe.Drain(ctx, resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, goerr.Wrap(model.ErrTranscriptTransport, "too many requests", goerr.V("status", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, goerr.Wrap(model.ErrTranscriptTransport, "unexpected status", goerr.V("status", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, goerr.Wrap(err, "transcript request aborted")
		}
		return nil, goerr.Wrap(model.ErrTranscriptTransport, "failed to read response", goerr.V("error", err.Error()))
	}
	return data, nil
}
