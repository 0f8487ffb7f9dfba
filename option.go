package stackjob

import (
	"github.com/rs/zerolog"
	"github.com/stackjob/stackjob/engine"
	"github.com/stackjob/stackjob/job"
	"github.com/stackjob/stackjob/runner"
	"github.com/stackjob/stackjob/service/dao"
	"github.com/stackjob/stackjob/service/event"
	"github.com/stackjob/stackjob/service/messaging"
	"github.com/stackjob/stackjob/source"
)

// Option customises a Service.
type Option func(s *Service)

// WithConfig sets the service configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithRunnerClient sets a pre-built runner client, bypassing the Runner
// section of the configuration.
func WithRunnerClient(client *runner.Client) Option {
	return func(s *Service) { s.client = client }
}

// WithTokenProvider sets the bearer token source for the runner client.
func WithTokenProvider(provider runner.TokenProvider) Option {
	return func(s *Service) { s.tokenProvider = provider }
}

// WithCredentialResolver sets the credential reference resolver passed to
// the runner client.
func WithCredentialResolver(resolver runner.CredentialResolver) Option {
	return func(s *Service) { s.credentials = resolver }
}

// WithQueue sets the transition signal queue.
func WithQueue(queue messaging.Queue[job.Signal]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithJobStore sets the job persistence service.
func WithJobStore(jobs dao.Service[string, job.Job]) Option {
	return func(s *Service) { s.jobs = jobs }
}

// WithEventService sets the transition notification service.
func WithEventService(events *event.Service) Option {
	return func(s *Service) { s.events = events }
}

// WithRepositoryOpener sets the source-control collaborator.
func WithRepositoryOpener(opener source.Opener) Option {
	return func(s *Service) { s.opener = opener }
}

// WithValueDecryptor sets the input variable decryption hook.
func WithValueDecryptor(decrypt engine.ValueDecryptor) Option {
	return func(s *Service) { s.decrypt = decrypt }
}

// WithLogger sets the service logger, bypassing the Logging section of the
// configuration.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
		s.loggerSet = true
	}
}

// WithWorkers sets the number of signal queue workers.
func WithWorkers(count int) Option {
	return func(s *Service) { s.workers = count }
}

// WithPodified keeps every job inline in the process that started it.
func WithPodified(podified bool) Option {
	return func(s *Service) { s.podified = &podified }
}
