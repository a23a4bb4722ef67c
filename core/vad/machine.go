package vad

import (
	"context"
	"sync"
	"time"
)

// Machine debounces raw speech start/end signals into speech_start,
// silence_short and silence_long events.
//
// Every silence interval is tagged with a generation. Timer callbacks compare
// their captured generation with the current one and do nothing on mismatch,
// so a timer that was armed before the latest OnSpeechStart can never emit.
type Machine struct {
	clock        Clock
	shortSilence time.Duration
	longSilence  time.Duration
	onEvent      func(Event)

	mu          sync.Mutex
	running     bool
	state       State
	silent      bool
	silentSince time.Time
	generation  uint64
	shortTimer  Timer
	longTimer   Timer
}

func NewMachine(opts ...MachineOption) (*Machine, error) {
	m := &Machine{
		clock:        systemClock{},
		shortSilence: DefaultShortSilence,
		longSilence:  DefaultLongSilence,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := validateSilences(m.shortSilence, m.longSilence); err != nil {
		return nil, err
	}

	return m, nil
}

// Start puts the machine into Idle and begins accepting signals.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetLocked()
	m.running = true
}

// Stop cancels all pending timers and returns the machine to Idle. Signals
// received after Stop are ignored until the next Start.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetLocked()
	m.running = false
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

func (m *Machine) OnSpeechStart() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || (m.state == Speaking && !m.silent) {
		return
	}

	m.cancelTimersLocked()
	m.silent = false
	m.state = Speaking
	m.emitLocked(Event{Type: EventSpeechStart, At: m.clock.Now()})
}

func (m *Machine) OnSpeechEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || m.state != Speaking || m.silent {
		return
	}

	m.cancelTimersLocked()
	m.silent = true
	m.silentSince = m.clock.Now()

	generation := m.generation
	m.shortTimer = m.clock.AfterFunc(m.shortSilence, func() {
		m.onSilenceElapsed(generation, SilenceShort, EventSilenceShort)
	})
	m.longTimer = m.clock.AfterFunc(m.longSilence, func() {
		m.onSilenceElapsed(generation, SilenceLong, EventSilenceLong)
	})
}

func (m *Machine) onSilenceElapsed(generation uint64, next State, eventType EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || !m.silent || generation != m.generation {
		logger.DebugContext(context.Background(), "discarding stale silence timer", "event", string(eventType))
		return
	}

	now := m.clock.Now()
	m.state = next
	m.emitLocked(Event{Type: eventType, At: now, Silence: now.Sub(m.silentSince)})
}

// cancelTimersLocked stops both silence timers and invalidates any callback
// that already started running.
func (m *Machine) cancelTimersLocked() {
	m.generation++
	if m.shortTimer != nil {
		m.shortTimer.Stop()
		m.shortTimer = nil
	}
	if m.longTimer != nil {
		m.longTimer.Stop()
		m.longTimer = nil
	}
}

func (m *Machine) resetLocked() {
	m.cancelTimersLocked()
	m.state = Idle
	m.silent = false
	m.silentSince = time.Time{}
}

func (m *Machine) emitLocked(event Event) {
	if m.onEvent != nil {
		m.onEvent(event)
	}
}
