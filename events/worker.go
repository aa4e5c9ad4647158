package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Publisher delivers one event to an external sink. Called from the worker
// goroutine only.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// WorkerConfig tunes the async event pump.
type WorkerConfig struct {
	// BufferSize is the channel capacity; events past it are dropped.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	// PublishTimeout bounds one Publish call.
	PublishTimeout time.Duration `yaml:"publish_timeout" json:"publish_timeout"`

	// ShutdownTimeout bounds draining on Close.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultWorkerConfig returns sensible defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BufferSize:      1024,
		PublishTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Worker is an Emitter that hands events to a Publisher from a background
// goroutine. Emit never blocks: when the buffer is full the event is
// dropped and counted.
type Worker struct {
	config    WorkerConfig
	publisher Publisher
	logger    *zap.Logger

	ch      chan Event
	dropped atomic.Int64
	onDrop  func()

	closeOnce sync.Once
	done      chan struct{}
}

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithDropHook installs a callback invoked once per dropped event.
func WithDropHook(fn func()) WorkerOption {
	return func(w *Worker) { w.onDrop = fn }
}

// NewWorker starts the pump goroutine.
func NewWorker(publisher Publisher, config WorkerConfig, logger *zap.Logger, opts ...WorkerOption) *Worker {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultWorkerConfig().BufferSize
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = DefaultWorkerConfig().PublishTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultWorkerConfig().ShutdownTimeout
	}

	w := &Worker{
		config:    config,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "event_worker")),
		ch:        make(chan Event, config.BufferSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.pump()
	return w
}

// Emit implements Emitter. Never blocks.
func (w *Worker) Emit(ev Event) {
	select {
	case w.ch <- ev:
	default:
		n := w.dropped.Add(1)
		if w.onDrop != nil {
			w.onDrop()
		}
		w.logger.Warn("event buffer full, dropping event",
			zap.String("run_id", ev.RunID.String()),
			zap.String("state", string(ev.StateType)),
			zap.Int64("dropped_total", n))
	}
}

// Dropped returns the number of events dropped so far.
func (w *Worker) Dropped() int64 { return w.dropped.Load() }

// Close stops accepting events and drains the buffer, bounded by the
// shutdown timeout.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		close(w.ch)
		select {
		case <-w.done:
		case <-time.After(w.config.ShutdownTimeout):
			w.logger.Warn("event worker shutdown timed out, abandoning buffered events")
		}
	})
	return nil
}

func (w *Worker) pump() {
	defer close(w.done)
	for ev := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), w.config.PublishTimeout)
		if err := w.publisher.Publish(ctx, ev); err != nil {
			w.logger.Warn("event publish failed",
				zap.String("run_id", ev.RunID.String()),
				zap.String("state", string(ev.StateType)),
				zap.Error(err))
		}
		cancel()
	}
}
