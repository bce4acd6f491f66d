package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ProgressFunc receives the accumulated text of an in-flight stream. An
// error return means the target surface is gone or full; the engine stops
// pushing progress but keeps generating.
type ProgressFunc func(accumulated string) error

// Result is the normalized outcome of one logical generation request.
type Result struct {
	Text         string
	TotalTokens  int
	InputTokens  int
	OutputTokens int
	// Estimated marks token counts derived from character length because
	// the stream closed without usage metadata.
	Estimated bool
}

// EngineConfig holds the retry, throttling and estimation policy.
type EngineConfig struct {
	MaxAttempts         int
	InitialDelay        time.Duration
	BackoffMultiplier   float64
	MaxDelay            time.Duration
	OverallTimeout      time.Duration
	ProgressMinInterval time.Duration
	ProgressMinChars    int
	CharsPerToken       int
}

// Engine wraps a Client with bounded retries, exponential backoff, the
// one-time streaming-to-blocking fallback and throttled progress delivery.
// Every call runs under one wall-clock deadline covering the entire stream
// iteration, not just the initial connection.
type Engine struct {
	client Client
	model  string
	cfg    EngineConfig
	logger zerolog.Logger
}

// NewEngine creates a call engine for one model.
func NewEngine(client Client, model string, cfg EngineConfig, logger zerolog.Logger) *Engine {
	return &Engine{
		client: client,
		model:  model,
		cfg:    cfg,
		logger: logger.With().Str("service", "GeminiEngine").Logger(),
	}
}

// Generate runs the blocking variant with retries.
func (e *Engine) Generate(ctx context.Context, req *Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.OverallTimeout)
	defer cancel()

	resp, err := e.withRetries(ctx, func() (*Response, error) {
		return e.client.Generate(ctx, e.model, req)
	})
	if err != nil {
		return nil, err
	}
	return e.blockingResult(resp), nil
}

// GenerateStream runs the streaming variant with retries. When streaming
// retries are exhausted on a transient error it falls back once to the
// blocking call, since a stalled stream is often an artifact of the
// transport path rather than a full outage.
func (e *Engine) GenerateStream(ctx context.Context, req *Request, onProgress ProgressFunc) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.OverallTimeout)
	defer cancel()

	delay := e.cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		res, err := e.streamOnce(ctx, req, onProgress)
		if err == nil {
			return res, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt == e.cfg.MaxAttempts {
			break
		}
		e.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Transient streaming error, retrying")
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = e.nextDelay(delay)
	}

	e.logger.Warn().Err(lastErr).Msg("Streaming retries exhausted, falling back to blocking call")
	resp, err := e.client.Generate(ctx, e.model, req)
	if err != nil {
		return nil, fmt.Errorf("streaming fallback: %w", err)
	}
	return e.blockingResult(resp), nil
}

// withRetries runs call with exponential backoff on transient errors.
func (e *Engine) withRetries(ctx context.Context, call func() (*Response, error)) (*Response, error) {
	delay := e.cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt == e.cfg.MaxAttempts {
			break
		}
		e.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Transient generation error, retrying")
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = e.nextDelay(delay)
	}
	return nil, lastErr
}

// streamOnce consumes one stream to completion, accumulating text and
// pushing throttled progress updates.
func (e *Engine) streamOnce(ctx context.Context, req *Request, onProgress ProgressFunc) (*Result, error) {
	stream, err := e.client.GenerateStream(ctx, e.model, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = stream.Close()
	}()

	var b strings.Builder
	var usage *UsageMetadata
	progress := newProgressTracker(onProgress, e.cfg.ProgressMinInterval, e.cfg.ProgressMinChars, e.logger)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: stream cut off by deadline", ErrTimeout)
			}
			return nil, err
		}
		b.WriteString(ExtractText(chunk))
		if chunk.UsageMetadata != nil {
			usage = chunk.UsageMetadata
		}
		progress.push(b.String())
	}

	return e.streamingResult(b.String(), usage), nil
}

func (e *Engine) blockingResult(resp *Response) *Result {
	res := &Result{Text: ExtractText(resp)}
	if resp.UsageMetadata != nil {
		res.TotalTokens = resp.UsageMetadata.TotalTokenCount
		res.InputTokens = resp.UsageMetadata.PromptTokenCount
		res.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	return res
}

// streamingResult estimates tokens from character length when the stream
// closed without usage metadata. Real generation cost was incurred, so
// treating it as zero tokens would incorrectly trigger a refund.
func (e *Engine) streamingResult(text string, usage *UsageMetadata) *Result {
	res := &Result{Text: text}
	if usage != nil {
		res.TotalTokens = usage.TotalTokenCount
		res.InputTokens = usage.PromptTokenCount
		res.OutputTokens = usage.CandidatesTokenCount
		return res
	}
	if text == "" {
		return res
	}
	estimated := (len(text) + e.cfg.CharsPerToken - 1) / e.cfg.CharsPerToken
	estimated += estimated / 10 // 10% buffer
	if estimated == 0 {
		estimated = 1
	}
	res.TotalTokens = estimated
	res.OutputTokens = estimated
	res.Estimated = true
	e.logger.Warn().
		Int("estimated_tokens", estimated).
		Int("chars", len(text)).
		Msg("Stream ended without usage metadata, estimated token count")
	return res
}

func (e *Engine) nextDelay(delay time.Duration) time.Duration {
	next := time.Duration(float64(delay) * e.cfg.BackoffMultiplier)
	if next > e.cfg.MaxDelay {
		next = e.cfg.MaxDelay
	}
	return next
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case <-time.After(d):
		return nil
	}
}

// progressTracker throttles progress callbacks by both a minimum interval
// and a minimum character delta. The first callback error disables further
// pushes for the remainder of the stream.
type progressTracker struct {
	fn          ProgressFunc
	minInterval time.Duration
	minChars    int
	lastPush    time.Time
	lastLen     int
	disabled    bool
	logger      zerolog.Logger
}

func newProgressTracker(fn ProgressFunc, minInterval time.Duration, minChars int, logger zerolog.Logger) *progressTracker {
	return &progressTracker{
		fn:          fn,
		minInterval: minInterval,
		minChars:    minChars,
		logger:      logger,
	}
}

func (p *progressTracker) push(accumulated string) {
	if p.fn == nil || p.disabled {
		return
	}
	if time.Since(p.lastPush) < p.minInterval {
		return
	}
	if len(accumulated)-p.lastLen < p.minChars {
		return
	}
	if err := p.fn(accumulated); err != nil {
		p.disabled = true
		p.logger.Warn().Err(err).Msg("Progress callback failed, disabling further updates")
		return
	}
	p.lastPush = time.Now()
	p.lastLen = len(accumulated)
}
