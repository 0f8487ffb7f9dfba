package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stackjob/stackjob/job"
	"github.com/stackjob/stackjob/service/messaging"
)

// Handler executes one transition signal.
type Handler interface {
	Handle(ctx context.Context, signal *job.Signal) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, signal *job.Signal) error

func (f HandlerFunc) Handle(ctx context.Context, signal *job.Signal) error {
	return f(ctx, signal)
}

// Config represents processor service configuration.
type Config struct {
	// WorkerCount is the number of workers consuming transition signals
	WorkerCount int
}

// DefaultConfig returns the default processor configuration.
func DefaultConfig() Config {
	return Config{WorkerCount: 5}
}

// Service hosts the workers that drain the signal queue and feed each
// signal to the workflow handler. A transition failure is a handler
// concern; the processor only nacks when the handler reports an error, so
// the queue's retry and dead-letter policy applies.
type Service struct {
	config  Config
	queue   messaging.Queue[job.Signal]
	handler Handler
	logger  zerolog.Logger

	workers    []*worker
	workerWg   sync.WaitGroup
	shutdownCh chan struct{}
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// New creates a processor service.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:     DefaultConfig(),
		logger:     zerolog.Nop(),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if s.queue == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if s.config.WorkerCount <= 0 {
		s.config.WorkerCount = DefaultConfig().WorkerCount
	}
	return s, nil
}

// Start begins consuming transition signals.
func (s *Service) Start(ctx context.Context) error {
	for i := 0; i < s.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		worker := &worker{
			id:       i,
			service:  s,
			ctx:      workerCtx,
			cancelFn: cancel,
		}
		s.workers = append(s.workers, worker)
		s.workerWg.Add(1)
		go worker.run()
	}
	return nil
}

// run processes messages from the queue
func (w *worker) run() {
	defer w.service.workerWg.Done()

	for {
		// Block until we either get a message or the context is cancelled.
		msg, err := w.service.queue.Consume(w.ctx)
		if err != nil {
			// Context was cancelled – graceful shutdown.
			if errors.Is(err, context.Canceled) {
				return
			}
			// Transient error (e.g. queue closed); back off a bit.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if msg == nil {
			// durable queues return nil when nothing is due
			time.Sleep(20 * time.Millisecond)
			continue
		}

		if pErr := w.service.processMessage(w.ctx, msg); pErr != nil {
			w.service.logger.Error().Int("worker", w.id).Err(pErr).Msg("failed to process signal")
		}
	}
}

func (s *Service) processMessage(ctx context.Context, message messaging.Message[job.Signal]) error {
	signal := message.T()
	if signal == nil {
		return message.Ack()
	}
	if err := s.handler.Handle(ctx, signal); err != nil {
		s.logger.Warn().
			Str("job_id", signal.JobID).
			Str("event", string(signal.Event)).
			Err(err).
			Msg("transition failed")
		return message.Nack(err)
	}
	return message.Ack()
}

// Shutdown stops the processor service.
func (s *Service) Shutdown() {
	close(s.shutdownCh)
	for _, worker := range s.workers {
		worker.cancelFn()
	}
	s.workerWg.Wait()
}
