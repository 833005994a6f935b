package ooo

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/timing/cache"
	"github.com/sarchlab/thumbsim/timing/latency"
)

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithConfig sets the structural configuration.
func WithConfig(config Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithPolicy sets the branch prediction policy.
func WithPolicy(policy Policy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithPredictorConfig sets the table sizes of the bimodal predictor.
func WithPredictorConfig(config PredictorConfig) Option {
	return func(e *Engine) {
		e.predictorConfig = config
	}
}

// WithTimingConfig sets the functional unit latencies.
func WithTimingConfig(config *latency.TimingConfig) Option {
	return func(e *Engine) {
		e.timingConfig = config
	}
}

// WithDCache adds a data cache whose hit or miss latency is added to the
// latency of every load.
func WithDCache(config cache.Config) Option {
	return func(e *Engine) {
		e.dcacheConfig = &config
	}
}

// WithLogger sets the logger used for stage events.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

// WithCommitObserver registers an observer called for every committed
// micro-op.
func WithCommitObserver(observer CommitObserver) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, observer)
	}
}

// WithSyscallHandler sets a custom supervisor call handler.
func WithSyscallHandler(handler emu.SyscallHandler) Option {
	return func(e *Engine) {
		e.syscalls = handler
	}
}

// WithStdout sets the writer of the default supervisor call handler.
func WithStdout(w io.Writer) Option {
	return func(e *Engine) {
		e.stdout = w
	}
}
