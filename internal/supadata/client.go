package supadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client fetches YouTube video metadata and transcripts from the Supadata
// REST API. A missing transcript is a normal outcome, not an error: it
// routes the summarization to the raw-video path with its cost multiplier.
type Client interface {
	GetVideoMetadata(ctx context.Context, videoID string) (*VideoMetadata, error)
	// GetTranscript returns the transcript text and whether one exists.
	GetTranscript(ctx context.Context, videoID string) (string, bool, error)
}

// VideoMetadata is the subset of video attributes the billing path needs.
type VideoMetadata struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration"`
}

type client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	maxAttempts int
	retryDelay  time.Duration
	logger      zerolog.Logger
}

// NewClient creates a Supadata client. maxAttempts bounds the polling loop
// for transcripts the API is still processing (HTTP 202).
func NewClient(baseURL, apiKey string, maxAttempts int, retryDelay time.Duration, logger zerolog.Logger) Client {
	return &client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger.With().Str("service", "SupadataClient").Logger(),
	}
}

func (c *client) GetVideoMetadata(ctx context.Context, videoID string) (*VideoMetadata, error) {
	endpoint := fmt.Sprintf("%s/youtube/video?id=%s", c.baseURL, url.QueryEscape(videoID))
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("video metadata", videoID, resp)
	}

	var meta VideoMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decoding video metadata for %s: %w", videoID, err)
	}
	if meta.ID == "" {
		meta.ID = videoID
	}
	return &meta, nil
}

// GetTranscript polls until the transcript is ready. 200 and 206 both carry
// usable content (206 is a partial transcript); 202 means the API is still
// processing and is retried after a delay; 404 means the video has no
// transcript at all.
func (c *client) GetTranscript(ctx context.Context, videoID string) (string, bool, error) {
	endpoint := fmt.Sprintf("%s/youtube/transcript?videoId=%s&text=true", c.baseURL, url.QueryEscape(videoID))

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.get(ctx, endpoint)
		if err != nil {
			return "", false, err
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusPartialContent:
			var body struct {
				Content string `json:"content"`
			}
			err := json.NewDecoder(resp.Body).Decode(&body)
			_ = resp.Body.Close()
			if err != nil {
				return "", false, fmt.Errorf("decoding transcript for %s: %w", videoID, err)
			}
			if body.Content == "" {
				return "", false, nil
			}
			return body.Content, true, nil

		case http.StatusAccepted:
			_ = resp.Body.Close()
			if attempt == c.maxAttempts {
				c.logger.Warn().Str("video_id", videoID).Msg("Transcript still processing after final attempt")
				return "", false, nil
			}
			c.logger.Info().
				Str("video_id", videoID).
				Int("attempt", attempt).
				Msg("Transcript still processing, retrying")
			select {
			case <-ctx.Done():
				return "", false, ctx.Err()
			case <-time.After(c.retryDelay):
			}

		case http.StatusNotFound:
			_ = resp.Body.Close()
			return "", false, nil

		default:
			err := c.statusError("transcript", videoID, resp)
			_ = resp.Body.Close()
			return "", false, err
		}
	}
	return "", false, nil
}

func (c *client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request to Supadata: %w", err)
	}
	return resp, nil
}

func (c *client) statusError(op, videoID string, resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	c.logger.Error().
		Int("status_code", resp.StatusCode).
		Str("video_id", videoID).
		Str("error_body", string(bodyBytes)).
		Msg("Supadata returned error")
	return fmt.Errorf("supadata %s for %s: status %d", op, videoID, resp.StatusCode)
}
