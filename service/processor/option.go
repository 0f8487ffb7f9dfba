package processor

import (
	"github.com/rs/zerolog"
	"github.com/stackjob/stackjob/job"
	"github.com/stackjob/stackjob/service/messaging"
)

// Option customises the processor service.
type Option func(*Service)

// WithMessageQueue sets the message queue implementation
func WithMessageQueue(queue messaging.Queue[job.Signal]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithHandler sets the transition handler the workers feed.
func WithHandler(handler Handler) Option {
	return func(s *Service) {
		s.handler = handler
	}
}

// WithWorkers sets the number of worker goroutines
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.WorkerCount = count
	}
}

// WithLogger sets the processor logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConfig sets the configuration for the service
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}
