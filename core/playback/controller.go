package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-prompter/core/audio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Controller plays prompt audio for one segment at a time.
//
// Each Play starts a new request with a fresh generation. Starting a request
// or calling Stop cancels the previous request's context, clears the output
// and bumps the generation, so a fetch that resolves late is discarded when it
// compares its generation with the current one.
type Controller struct {
	fetcher Fetcher
	output  AudioOutput
	baseCtx context.Context

	maxAttempts int
	baseDelay   time.Duration

	onFailure func(index int, err error)
	onStarted func(index int)
	onEnded   func(index int)

	failures metric.Int64Counter

	mu         sync.Mutex
	generation uint64
	current    int
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewController(fetcher Fetcher, output AudioOutput, opts ...ControllerOption) *Controller {
	c := &Controller{
		fetcher:     fetcher,
		output:      output,
		baseCtx:     context.Background(),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultRetryDelay,
		onFailure:   func(int, error) {},
		onStarted:   func(int) {},
		onEnded:     func(int) {},
		current:     NoRequest,
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	if c.failures, err = meter.Int64Counter("playback.failures"); err != nil {
		logger.Warn("failed to create playback failures counter", "error", err)
	}

	return c
}

// Play supersedes any active request and starts fetching audio for index. It
// returns immediately.
func (c *Controller) Play(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancel = cancel
	c.current = index
	generation := c.generation

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx, generation, index)
	}()
}

// Stop halts output immediately and abandons the active request.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
}

// Playing returns the segment index of the active request, or NoRequest.
func (c *Controller) Playing() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// Close stops playback and waits for abandoned requests to return.
func (c *Controller) Close() {
	c.Stop()
	c.wg.Wait()
}

func (c *Controller) stopLocked() {
	c.generation++
	c.current = NoRequest
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.output != nil {
		c.output.ClearBuffer()
	}
}

func (c *Controller) run(ctx context.Context, generation uint64, index int) {
	ctx, span := tracer.Start(ctx, "playback.play", trace.WithAttributes(attribute.Int("segment.index", index)))
	defer span.End()

	data, err := c.fetchWithRetry(ctx, index)
	if err == nil {
		data, err = c.prepare(data)
	}
	if err != nil {
		if ctx.Err() != nil {
			span.SetAttributes(attribute.Bool("superseded", true))
			return
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "prompt playback failed")
		if c.failures != nil {
			c.failures.Add(ctx, 1)
		}
		if c.finish(generation) {
			logger.WarnContext(ctx, "prompt playback failed", "segment", index, "error", err)
			c.onFailure(index, err)
		}
		return
	}

	if !c.play(generation, index, data) {
		span.SetAttributes(attribute.Bool("superseded", true))
		logger.DebugContext(ctx, "discarding superseded prompt audio", "segment", index)
	}
}

func (c *Controller) fetchWithRetry(ctx context.Context, index int) ([]byte, error) {
	delay := c.baseDelay

	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var data []byte
		if data, err = c.fetchAttempt(ctx, index, attempt); err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.maxAttempts {
			break
		}

		logger.DebugContext(ctx, "prompt fetch failed, retrying", "segment", index, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("fetching segment %d failed after %d attempts: %w", index, c.maxAttempts, err)
}

func (c *Controller) fetchAttempt(ctx context.Context, index, attempt int) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "playback.fetch", trace.WithAttributes(
		attribute.Int("segment.index", index),
		attribute.Int("attempt", attempt),
	))
	defer span.End()

	data, err := c.fetcher.Fetch(ctx, index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	return data, nil
}

// prepare unwraps WAV audio and converts it to the output sample rate.
func (c *Controller) prepare(data []byte) ([]byte, error) {
	if !audio.IsWAV(data) {
		return data, nil
	}

	wav, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode prompt audio: %w", err)
	}

	target := c.output.EncodingInfo()
	if target.IsZero() {
		return wav.Data, nil
	}
	return audio.Resample(wav.Data, wav.SampleRate, target.SampleRate)
}

// play hands audio to the output if the request is still current. The check
// and the write happen under the same lock as Stop so a stopped request can
// never reach the output.
func (c *Controller) play(generation uint64, index int, data []byte) bool {
	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return false
	}
	err := c.output.SendAudio(data)
	c.mu.Unlock()

	if err != nil {
		logger.Error("failed to send prompt audio", "segment", index, "error", err)
		if c.finish(generation) {
			c.onFailure(index, fmt.Errorf("failed to send prompt audio: %w", err))
		}
		return true
	}

	c.onStarted(index)

	mark := "prompt-" + uuid.NewString()
	if err := c.output.Mark(mark, func(string) {
		if c.finish(generation) {
			c.onEnded(index)
		}
	}); err != nil {
		logger.Warn("failed to mark end of prompt audio", "segment", index, "error", err)
	}
	return true
}

// finish retires the request if it is still current.
func (c *Controller) finish(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return false
	}
	c.current = NoRequest
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return true
}
