package segmentation

import (
	"fmt"
	"strings"
)

// DefaultConjunctions are the coordinating conjunctions a chunk may be cut in
// front of.
var DefaultConjunctions = []string{"ve", "ama", "fakat", "and", "but", "or"}

type Options struct {
	// SentenceMode emits every sentence as a single segment regardless of its
	// length.
	SentenceMode bool
	Conjunctions []string

	MaxWords int
	MinWords int
	Window   int

	conjunctions map[string]struct{}
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		Conjunctions: DefaultConjunctions,
		MaxWords:     MaxWords,
		MinWords:     MinWords,
		Window:       Window,
	}
}

// New returns default options with opts applied.
func New(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithSentenceMode(enabled bool) Option {
	return func(o *Options) {
		o.SentenceMode = enabled
	}
}

func WithConjunctions(conjunctions ...string) Option {
	return func(o *Options) {
		o.Conjunctions = conjunctions
	}
}

// Validate reports whether the word bounds are usable.
func (o Options) Validate() error {
	if o.MaxWords <= 0 {
		return fmt.Errorf("max words must be positive, got %d", o.MaxWords)
	}
	if o.MinWords <= 0 || o.MinWords > o.MaxWords {
		return fmt.Errorf("min words must be in [1, %d], got %d", o.MaxWords, o.MinWords)
	}
	if o.Window < 0 || o.Window >= o.MaxWords {
		return fmt.Errorf("window must be in [0, %d), got %d", o.MaxWords, o.Window)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.MaxWords <= 0 {
		o.MaxWords = MaxWords
	}
	if o.MinWords <= 0 || o.MinWords > o.MaxWords {
		o.MinWords = min(MinWords, o.MaxWords)
	}
	if o.Window < 0 || o.Window >= o.MaxWords {
		o.Window = min(Window, o.MaxWords-1)
	}
	if o.Conjunctions == nil {
		o.Conjunctions = DefaultConjunctions
	}

	o.conjunctions = make(map[string]struct{}, len(o.Conjunctions))
	for _, conjunction := range o.Conjunctions {
		o.conjunctions[strings.ToLower(conjunction)] = struct{}{}
	}
	return o
}
