package orchestration

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-prompter/core/alignment"
)

const sessionEventQueueCapacity = 32

type queuedEvent struct {
	event    any
	queuedAt time.Time
}

// channelEvent and channelState are tagged with the generation of the
// channel that produced them so events from a replaced channel are dropped.
type channelEvent struct {
	generation uint64
	event      alignment.Event
}

type channelState struct {
	generation uint64
	status     alignment.Status
}

// sessionRuntime is the single event loop of a session. Every asynchronous
// completion that mutates session state is queued here and applied in order.
type sessionRuntime struct {
	queue   chan queuedEvent
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool
}

func newSessionRuntime() *sessionRuntime {
	return &sessionRuntime{
		queue:   make(chan queuedEvent, sessionEventQueueCapacity),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (runtime *sessionRuntime) start(process func(queuedEvent)) (started bool) {
	if runtime.isClosed() {
		return false
	}

	runtime.startOnce.Do(func() {
		started = true
		runtime.started.Store(true)
		go func() {
			defer close(runtime.done)

			for {
				select {
				case <-runtime.closeCh:
					return
				case queued := <-runtime.queue:
					if runtime.isClosed() {
						return
					}
					process(queued)
				}
			}
		}()
	})

	return started
}

func (runtime *sessionRuntime) end() {
	runtime.endOnce.Do(func() {
		close(runtime.closeCh)
	})
}

func (runtime *sessionRuntime) waitUntilEnded() {
	if runtime.started.Load() {
		<-runtime.done
	}
}

// enqueue blocks while the queue is full and gives up once the runtime ends.
func (runtime *sessionRuntime) enqueue(event any) bool {
	if runtime.isClosed() {
		return false
	}

	select {
	case <-runtime.closeCh:
		return false
	case runtime.queue <- queuedEvent{event: event, queuedAt: time.Now()}:
		return true
	}
}

func (runtime *sessionRuntime) isClosed() bool {
	select {
	case <-runtime.closeCh:
		return true
	default:
		return false
	}
}

func (runtime *sessionRuntime) queuedEventCount() int {
	return len(runtime.queue)
}
