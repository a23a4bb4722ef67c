package playback

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-prompter/core/audio"
)

type outputStub struct {
	mu      sync.Mutex
	sent    [][]byte
	clears  int
	marks   []func(string)
	sentNow chan []byte
}

func newOutputStub() *outputStub {
	return &outputStub{sentNow: make(chan []byte, 8)}
}

func (o *outputStub) SendAudio(data []byte) error {
	o.mu.Lock()
	o.sent = append(o.sent, data)
	o.mu.Unlock()
	o.sentNow <- data
	return nil
}

func (o *outputStub) ClearBuffer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clears++
}

func (o *outputStub) Mark(_ string, callback func(string)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.marks = append(o.marks, callback)
	return nil
}

func (o *outputStub) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

// playOut fires every pending mark as if the device had played the audio.
func (o *outputStub) playOut() {
	o.mu.Lock()
	marks := o.marks
	o.marks = nil
	o.mu.Unlock()

	for _, mark := range marks {
		mark("")
	}
}

func (o *outputStub) sentAudio() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]byte(nil), o.sent...)
}

// blockingFetcher returns audio for an index only once release is closed,
// ignoring cancellation to model a fetch that resolves late.
type blockingFetcher struct {
	mu       sync.Mutex
	releases map[int]chan struct{}
	started  chan int
}

func newBlockingFetcher(indices ...int) *blockingFetcher {
	f := &blockingFetcher{releases: map[int]chan struct{}{}, started: make(chan int, 8)}
	for _, index := range indices {
		f.releases[index] = make(chan struct{})
	}
	return f
}

func (f *blockingFetcher) Fetch(_ context.Context, index int) ([]byte, error) {
	f.mu.Lock()
	release := f.releases[index]
	f.mu.Unlock()

	f.started <- index
	<-release
	return []byte{byte(index), 0}, nil
}

func (f *blockingFetcher) release(index int) {
	close(f.releases[index])
}

func waitForStart(t *testing.T, f *blockingFetcher, want int) {
	t.Helper()
	select {
	case got := <-f.started:
		if got != want {
			t.Fatalf("expected fetch for segment %d, got %d", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fetch of segment %d", want)
	}
}

func TestControllerSupersededFetchNeverPlays(t *testing.T) {
	fetcher := newBlockingFetcher(2, 5)
	output := newOutputStub()
	c := NewController(fetcher, output)
	defer c.Close()

	c.Play(2)
	waitForStart(t, fetcher, 2)
	c.Play(5)
	waitForStart(t, fetcher, 5)

	fetcher.release(5)
	select {
	case data := <-output.sentNow:
		if !bytes.Equal(data, []byte{5, 0}) {
			t.Fatalf("expected segment 5 audio, got %v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for segment 5 audio")
	}

	fetcher.release(2)
	select {
	case data := <-output.sentNow:
		t.Fatalf("expected stale audio to be discarded, got %v", data)
	case <-time.After(50 * time.Millisecond):
	}

	if sent := output.sentAudio(); len(sent) != 1 {
		t.Fatalf("expected exactly one playback, got %d", len(sent))
	}
}

func TestControllerStopDiscardsInFlightFetch(t *testing.T) {
	fetcher := newBlockingFetcher(1)
	output := newOutputStub()
	failures := make(chan int, 1)
	c := NewController(fetcher, output, WithFailureCallback(func(index int, _ error) { failures <- index }))

	c.Play(1)
	waitForStart(t, fetcher, 1)
	c.Stop()
	fetcher.release(1)
	c.Close()

	if sent := output.sentAudio(); len(sent) != 0 {
		t.Fatalf("expected no audio after stop, got %v", sent)
	}
	if c.Playing() != NoRequest {
		t.Fatalf("expected no active request, got %d", c.Playing())
	}
	select {
	case index := <-failures:
		t.Fatalf("expected no failure report after stop, got one for %d", index)
	default:
	}
}

func TestControllerReportsFailureAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	fetchErr := errors.New("status 503")
	fetcher := FetcherFunc(func(context.Context, int) ([]byte, error) {
		calls.Add(1)
		return nil, fetchErr
	})

	failures := make(chan error, 2)
	c := NewController(fetcher, newOutputStub(),
		WithRetry(DefaultMaxAttempts, time.Millisecond),
		WithFailureCallback(func(index int, err error) {
			if index != 4 {
				t.Errorf("expected failure for segment 4, got %d", index)
			}
			failures <- err
		}),
	)
	defer c.Close()

	c.Play(4)

	select {
	case err := <-failures:
		if !errors.Is(err, fetchErr) {
			t.Fatalf("expected failure to wrap fetch error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for failure report")
	}

	time.Sleep(20 * time.Millisecond)
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 3 fetch attempts, got %d", n)
	}
	select {
	case <-failures:
		t.Fatalf("expected a single failure report")
	default:
	}

	c.Play(4)
	select {
	case <-failures:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for second failure report")
	}
	if n := calls.Load(); n != 6 {
		t.Fatalf("expected a new request to retry from scratch, got %d calls", n)
	}
}

func TestControllerRetryRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	fetcher := FetcherFunc(func(context.Context, int) ([]byte, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection reset")
		}
		return []byte{9, 9}, nil
	})

	output := newOutputStub()
	c := NewController(fetcher, output, WithRetry(3, time.Millisecond))
	defer c.Close()

	c.Play(0)
	select {
	case data := <-output.sentNow:
		if !bytes.Equal(data, []byte{9, 9}) {
			t.Fatalf("expected retried audio, got %v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for audio")
	}
}

func TestControllerStopCancelsPendingRetry(t *testing.T) {
	var calls atomic.Int32
	fetcher := FetcherFunc(func(context.Context, int) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("unavailable")
	})

	c := NewController(fetcher, newOutputStub(), WithRetry(3, time.Hour))

	c.Play(3)
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	c.Stop()

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected stop to cancel the pending retry")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestControllerReportsPlaybackEnded(t *testing.T) {
	output := newOutputStub()
	ended := make(chan int, 1)
	c := NewController(FetcherFunc(func(context.Context, int) ([]byte, error) {
		return []byte{1, 0}, nil
	}), output, WithPlaybackEndedCallback(func(index int) { ended <- index }))
	defer c.Close()

	c.Play(6)
	select {
	case <-output.sentNow:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for audio")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		output.mu.Lock()
		n := len(output.marks)
		output.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	output.playOut()

	select {
	case index := <-ended:
		if index != 6 {
			t.Fatalf("expected segment 6 to end, got %d", index)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback ended")
	}
	if c.Playing() != NoRequest {
		t.Fatalf("expected no active request after playback ended, got %d", c.Playing())
	}
}
