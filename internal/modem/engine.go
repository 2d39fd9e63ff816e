// Package modem synthesises, transmits and demodulates analog and digital
// modulation schemes over the simulated channel.
package modem

import (
	"github.com/charmbracelet/log"

	"github.com/jeongseonghan/modulation-studio/internal/rng"
)

// Engine runs the analog and digital modulation chains. The random source
// drives both the channel noise and any bits the engine has to draw, so an
// Engine built on a seeded Source reproduces its results exactly. An Engine
// is not safe for concurrent use.
type Engine struct {
	src    *rng.Source
	loop   LoopConfig
	logger *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-run debug lines.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLoopConfig overrides the adaptive receiver settings.
func WithLoopConfig(c LoopConfig) Option {
	return func(e *Engine) {
		e.loop = c
	}
}

// NewEngine creates a new Engine. A nil source selects a non-deterministic one.
func NewEngine(src *rng.Source, opts ...Option) *Engine {
	if src == nil {
		src = rng.New()
	}
	e := &Engine{
		src:    src,
		loop:   DefaultLoopConfig(),
		logger: log.Default().With("component", "modem"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Source returns the engine's random source.
func (e *Engine) Source() *rng.Source {
	return e.src
}
