package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Client is the transport boundary to the generative API. The Engine layers
// retry, fallback and progress handling on top of it.
type Client interface {
	Generate(ctx context.Context, model string, req *Request) (*Response, error)
	GenerateStream(ctx context.Context, model string, req *Request) (StreamReader, error)
}

// StreamReader yields one decoded chunk per Recv call and io.EOF at the end
// of the stream.
type StreamReader interface {
	Recv() (*Response, error)
	Close() error
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a Gemini REST client. The HTTP client carries no
// timeout of its own; callers bound requests through the context so a
// stalled stream is still cut off by the overall deadline.
func NewClient(baseURL, apiKey string, logger zerolog.Logger) Client {
	return &client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{},
		logger:  logger.With().Str("service", "GeminiClient").Logger(),
	}
}

func (c *client) Generate(ctx context.Context, model string, req *Request) (*Response, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	resp, err := c.post(ctx, url, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding generate response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates in response", ErrBlocked)
	}
	return &out, nil
}

func (c *client) GenerateStream(ctx context.Context, model string, req *Request) (StreamReader, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, model, c.apiKey)
	resp, err := c.post(ctx, url, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer func() {
			_ = resp.Body.Close()
		}()
		return nil, c.apiError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &sseStream{body: resp.Body, scanner: sc}, nil
}

func (c *client) post(ctx context.Context, url string, body *Request) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	return resp, nil
}

// apiError reads the provider's error payload and tags it by status code.
func (c *client) apiError(resp *http.Response) error {
	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	apiErr := &APIError{StatusCode: resp.StatusCode, tag: classifyStatus(resp.StatusCode)}
	if readErr == nil {
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if err := json.Unmarshal(bodyBytes, &errorResp); err == nil {
			apiErr.Status = errorResp.Error.Status
			apiErr.Message = errorResp.Error.Message
		}
	}
	c.logger.Warn().
		Int("status_code", resp.StatusCode).
		Str("api_status", apiErr.Status).
		Msg("Gemini API returned error")
	return apiErr
}

// sseStream decodes "data: {...}" server-sent events from the response body.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (s *sseStream) Recv() (*Response, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return nil, io.EOF
		}
		var chunk Response
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("decoding stream chunk: %w", err)
		}
		return &chunk, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, classifyTransport(err)
	}
	return nil, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
