package stackjob

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/afs"

	"github.com/stackjob/stackjob/engine"
	"github.com/stackjob/stackjob/internal/idgen"
	"github.com/stackjob/stackjob/job"
	"github.com/stackjob/stackjob/logging"
	"github.com/stackjob/stackjob/runner"
	"github.com/stackjob/stackjob/service/dao"
	jfs "github.com/stackjob/stackjob/service/dao/job/fs"
	jmemory "github.com/stackjob/stackjob/service/dao/job/memory"
	"github.com/stackjob/stackjob/service/event"
	"github.com/stackjob/stackjob/service/messaging"
	mfs "github.com/stackjob/stackjob/service/messaging/fs"
	mmemory "github.com/stackjob/stackjob/service/messaging/memory"
	"github.com/stackjob/stackjob/service/processor"
	"github.com/stackjob/stackjob/source"
)

// Service is the entry point of the module: it wires the runner client, job
// store, signal queue, workflow engine and worker pool together and exposes
// the job lifecycle API.
type Service struct {
	config    *Config
	logger    zerolog.Logger
	loggerSet bool

	client        *runner.Client
	tokenProvider runner.TokenProvider
	credentials   runner.CredentialResolver

	jobs    dao.Service[string, job.Job]
	queue   messaging.Queue[job.Signal]
	events  *event.Service
	opener  source.Opener
	decrypt engine.ValueDecryptor

	engine    *engine.Engine
	processor *processor.Service

	workers  int
	podified *bool
}

// New creates a service. With no options everything defaults to in-memory
// backends and the environment-derived runner configuration.
func New(options ...Option) (*Service, error) {
	s := &Service{}
	for _, option := range options {
		option(s)
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) init() error {
	if s.config == nil {
		s.config = FromEnv()
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if !s.loggerSet {
		logger, err := logging.New(s.config.Logging)
		if err != nil {
			return err
		}
		s.logger = logger
	}
	s.ensureBaseSetup()

	podified := s.config.Podified
	if s.podified != nil {
		podified = *s.podified
	}
	workflow, err := engine.New(
		engine.WithJobStore(s.jobs),
		engine.WithClient(s.client),
		engine.WithQueue(s.queue),
		engine.WithRepositoryOpener(s.opener),
		engine.WithEventService(s.events),
		engine.WithLogger(s.logger),
		engine.WithValueDecryptor(s.decrypt),
		engine.WithConfig(engine.Config{
			Podified:     podified,
			PollInterval: s.config.Runner.CheckInterval,
			Timeout:      s.config.Runner.MaxTime,
		}),
	)
	if err != nil {
		return err
	}
	s.engine = workflow

	workerCount := s.workers
	if workerCount == 0 {
		workerCount = s.config.Processor.WorkerCount
	}
	s.processor, err = processor.New(
		processor.WithHandler(workflow),
		processor.WithMessageQueue(s.queue),
		processor.WithWorkers(workerCount),
		processor.WithLogger(s.logger),
	)
	return err
}

func (s *Service) ensureBaseSetup() {
	if s.client == nil {
		if s.tokenProvider == nil {
			if token := s.config.Runner.Token; token != "" {
				s.tokenProvider = runner.StaticToken(token)
			} else {
				s.tokenProvider = runner.NewSignedToken(
					s.config.Runner.HMACKeyURL, "", s.config.Runner.Identity)
			}
		}
		clientOptions := []runner.ClientOption{runner.WithClientLogger(s.logger)}
		if s.credentials != nil {
			clientOptions = append(clientOptions, runner.WithCredentialResolver(s.credentials))
		}
		s.client = runner.NewClient(s.config.Runner.URL, s.tokenProvider, clientOptions...)
	}
	if s.queue == nil {
		if basePath := s.config.Queue.BasePath; basePath != "" {
			config := mfs.DefaultConfig()
			config.BasePath = basePath
			if queue, err := mfs.NewQueue[job.Signal](afs.New(), config); err == nil {
				s.queue = queue
			} else {
				s.logger.Warn().Err(err).Msg("failed to open durable queue, falling back to memory")
			}
		}
		if s.queue == nil {
			s.queue = mmemory.NewQueue[job.Signal](mmemory.DefaultConfig())
		}
	}
	if s.jobs == nil {
		if basePath := s.config.Store.BasePath; basePath != "" {
			if store, err := jfs.New(afs.New(), basePath); err == nil {
				s.jobs = store
			} else {
				s.logger.Warn().Err(err).Msg("failed to open durable job store, falling back to memory")
			}
		}
		if s.jobs == nil {
			s.jobs = jmemory.New()
		}
	}
	if s.events == nil {
		s.events = event.New()
	}
	if s.opener == nil {
		s.opener = source.GetterOpener{}
	}
}

// Start launches the signal queue workers.
func (s *Service) Start(ctx context.Context) error {
	return s.processor.Start(ctx)
}

// Shutdown stops the workers, draining in-flight transitions.
func (s *Service) Shutdown() {
	s.processor.Shutdown()
}

// Runner returns the underlying runner client.
func (s *Service) Runner() *runner.Client { return s.client }

// Events returns the transition notification service.
func (s *Service) Events() *event.Service { return s.events }

// CreateJob validates the options, persists a new job and dispatches its
// first transition. Option defects surface here, before any remote call.
// The returned job is a snapshot; use Job to observe progress.
func (s *Service) CreateJob(ctx context.Context, options job.Options) (*job.Job, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if options.StackName == "" && options.Action == job.ActionProvision {
		options.StackName = idgen.StackName()
	}
	if options.PollInterval <= 0 {
		options.PollInterval = s.config.Runner.CheckInterval
	}
	if options.Timeout <= 0 {
		options.Timeout = s.config.Runner.MaxTime
	}

	created := job.New(idgen.New(), options)
	if err := s.jobs.Save(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	s.logger.Info().
		Str("job_id", created.ID).
		Str("action", string(options.Action)).
		Msg("job created")

	signal := &job.Signal{JobID: created.ID, Event: job.EventInitializing, Role: options.Role}
	if err := s.queue.Publish(ctx, signal); err != nil {
		return nil, fmt.Errorf("failed to dispatch job %s: %w", created.ID, err)
	}
	return created, nil
}

// Job returns the current snapshot of a job.
func (s *Service) Job(ctx context.Context, id string) (*job.Job, error) {
	return s.jobs.Load(ctx, id)
}

// CancelJob requests cancellation of a job. The in-flight remote stack, if
// any, is told to stop before the job is marked terminal.
func (s *Service) CancelJob(ctx context.Context, id, message string) error {
	current, err := s.jobs.Load(ctx, id)
	if err != nil {
		return err
	}
	if current.State.Terminal() {
		return fmt.Errorf("job %s already %s", id, current.State)
	}
	return s.queue.Publish(ctx, &job.Signal{
		JobID:   id,
		Event:   job.EventCancel,
		Message: message,
		Role:    current.Options.Role,
	})
}

// AbortJob force-terminates a job with an error outcome.
func (s *Service) AbortJob(ctx context.Context, id, message string) error {
	current, err := s.jobs.Load(ctx, id)
	if err != nil {
		return err
	}
	if current.State.Terminal() {
		return fmt.Errorf("job %s already %s", id, current.State)
	}
	return s.queue.Publish(ctx, &job.Signal{
		JobID:   id,
		Event:   job.EventAbort,
		Message: message,
		Role:    current.Options.Role,
	})
}

// WaitForJob polls the store until the job reaches a terminal state or the
// context expires.
func (s *Service) WaitForJob(ctx context.Context, id string, pollInterval time.Duration) (*job.Job, error) {
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	for {
		current, err := s.jobs.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.State.Terminal() {
			return current, nil
		}
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
