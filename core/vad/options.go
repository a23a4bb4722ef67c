package vad

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultShortSilence = 500 * time.Millisecond
	DefaultLongSilence  = 1500 * time.Millisecond

	MinLongSilence = 800 * time.Millisecond
	MaxLongSilence = 3000 * time.Millisecond
)

var ErrInvalidConfig = errors.New("invalid vad config")

type MachineOption func(*Machine)

func WithShortSilence(d time.Duration) MachineOption {
	return func(m *Machine) {
		m.shortSilence = d
	}
}

func WithLongSilence(d time.Duration) MachineOption {
	return func(m *Machine) {
		m.longSilence = d
	}
}

// WithEventHandler sets the callback that receives every emitted event.
// The handler runs while the machine holds its lock so it must not call back
// into the machine.
func WithEventHandler(handler func(Event)) MachineOption {
	return func(m *Machine) {
		m.onEvent = handler
	}
}

func WithClock(clock Clock) MachineOption {
	return func(m *Machine) {
		m.clock = clock
	}
}

func validateSilences(short, long time.Duration) error {
	if short <= 0 {
		return fmt.Errorf("%w: short silence must be positive, got %s", ErrInvalidConfig, short)
	}
	if long < MinLongSilence || long > MaxLongSilence {
		return fmt.Errorf("%w: long silence must be in [%s, %s], got %s", ErrInvalidConfig, MinLongSilence, MaxLongSilence, long)
	}
	if long <= short {
		return fmt.Errorf("%w: long silence %s must exceed short silence %s", ErrInvalidConfig, long, short)
	}
	return nil
}
