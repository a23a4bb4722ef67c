package portaudio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-prompter/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-prompter/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)

var ErrAlreadyCapturing = errors.New("capture already running")

// Client drives a blocking duplex stream. Every iteration reads one buffer of
// microphone audio and writes one buffer of queued playback audio or silence.
type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	mu      sync.Mutex
	queued  []byte
	marks   []playbackMark
	cancel  context.CancelFunc
	stopped chan struct{}
}

type playbackMark struct {
	name     string
	position int
	callback func(string)
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyCapturing
	}

	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.stopped = make(chan struct{})
	go c.loop(ctx, onAudio, c.stopped)
	return nil
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	cancel, stopped := c.cancel, c.stopped
	c.cancel, c.stopped = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-stopped

	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
	return nil
}

func (c *Client) loop(ctx context.Context, onAudio func([]byte), stopped chan struct{}) {
	defer close(stopped)

	frame := make([]byte, c.bufferSize*2)
	for ctx.Err() == nil {
		if err := c.stream.Read(); err != nil {
			logger.Warn("failed to read from portaudio stream", "error", err)
		}
		captured := make([]byte, len(frame))
		for i, sample := range c.in {
			binary.LittleEndian.PutUint16(captured[i*2:], uint16(sample))
		}
		onAudio(captured)

		passed := c.dequeue(frame)
		for i := range c.out {
			c.out[i] = int16(binary.LittleEndian.Uint16(frame[i*2:]))
		}
		if err := c.stream.Write(); err != nil {
			logger.Warn("failed to write to portaudio stream", "error", err)
		}
		for _, mark := range passed {
			mark.callback(mark.name)
		}
	}
}

// dequeue fills frame with queued audio, padding with silence, and returns
// the marks that have now been played.
func (c *Client) dequeue(frame []byte) []playbackMark {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := copy(frame, c.queued)
	c.queued = c.queued[n:]
	clear(frame[n:])

	passed := 0
	for i := range c.marks {
		if c.marks[i].position <= n {
			passed++
			continue
		}
		c.marks[i].position -= n
	}
	toCall := c.marks[:passed:passed]
	c.marks = c.marks[passed:]
	return toCall
}

func (c *Client) SendAudio(audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = append(c.queued, audio...)
	return nil
}

func (c *Client) ClearBuffer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = nil
	c.marks = nil
}

func (c *Client) Mark(mark string, callback func(string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marks = append(c.marks, playbackMark{name: mark, position: len(c.queued), callback: callback})
	return nil
}

func (c *Client) Close() {
	_ = c.StopCapture()
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
