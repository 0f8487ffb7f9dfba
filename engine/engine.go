package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/stackjob/stackjob/internal/clock"
	"github.com/stackjob/stackjob/job"
	"github.com/stackjob/stackjob/runner"
	"github.com/stackjob/stackjob/service/dao"
	"github.com/stackjob/stackjob/service/event"
	"github.com/stackjob/stackjob/service/messaging"
	"github.com/stackjob/stackjob/source"
	"github.com/stackjob/stackjob/tracing"
)

// Config represents engine configuration.
type Config struct {
	// Podified selects inline transition execution: the job stays in the
	// process that started it because its state includes a locally
	// checked-out template tree.
	Podified bool

	// PollInterval is the default delay between stack-job status checks.
	PollInterval time.Duration

	// Timeout is the default per-job maximum stack-job wait time.
	Timeout time.Duration

	// Role tags queued signals for worker routing.
	Role string
}

// DefaultConfig mirrors the runner service defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 10 * time.Second,
		Timeout:      120 * time.Second,
		Role:         "stack_operations",
	}
}

// ValueDecryptor translates opaque stored variable values into plain text
// before they are sent to the runner. The default is the identity function;
// credential storage lives outside this module.
type ValueDecryptor func(value string) string

// Engine drives the persisted job state machine end to end: it validates
// inputs, prepares the template, launches the runner, polls the stack job
// until completion or timeout and cleans up. Each transition is a discrete
// unit of work so a job survives process restarts between transitions.
type Engine struct {
	jobs    dao.Service[string, job.Job]
	client  *runner.Client
	opener  source.Opener
	queue   messaging.Queue[job.Signal]
	events  *event.Service
	logger  zerolog.Logger
	decrypt ValueDecryptor
	config  Config
	router  *Router
}

// Option customises an Engine.
type Option func(*Engine)

// WithJobStore sets the job persistence service.
func WithJobStore(jobs dao.Service[string, job.Job]) Option {
	return func(e *Engine) { e.jobs = jobs }
}

// WithClient sets the runner client.
func WithClient(client *runner.Client) Option {
	return func(e *Engine) { e.client = client }
}

// WithQueue sets the transition signal queue.
func WithQueue(queue messaging.Queue[job.Signal]) Option {
	return func(e *Engine) { e.queue = queue }
}

// WithRepositoryOpener sets the source-control collaborator.
func WithRepositoryOpener(opener source.Opener) Option {
	return func(e *Engine) { e.opener = opener }
}

// WithEventService sets the transition notification service.
func WithEventService(events *event.Service) Option {
	return func(e *Engine) { e.events = events }
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithValueDecryptor sets the input variable decryption hook.
func WithValueDecryptor(decrypt ValueDecryptor) Option {
	return func(e *Engine) { e.decrypt = decrypt }
}

// WithConfig sets the engine configuration.
func WithConfig(config Config) Option {
	return func(e *Engine) { e.config = config }
}

// New creates an engine. A job store, runner client and queue are required.
func New(options ...Option) (*Engine, error) {
	e := &Engine{
		config: DefaultConfig(),
		opener: source.GetterOpener{},
		events: event.New(),
		logger: zerolog.Nop(),
	}
	for _, option := range options {
		option(e)
	}
	if e.jobs == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if e.client == nil {
		return nil, fmt.Errorf("runner client is required")
	}
	if e.queue == nil {
		return nil, fmt.Errorf("signal queue is required")
	}
	if e.config.PollInterval <= 0 {
		e.config.PollInterval = DefaultConfig().PollInterval
	}
	e.router = &Router{podified: e.config.Podified, queue: e.queue, engine: e, logger: e.logger}
	return e, nil
}

// Router returns the transition router.
func (e *Engine) Router() *Router { return e.router }

// Events returns the transition notification service.
func (e *Engine) Events() *event.Service { return e.events }

// Handle executes one transition signal against its job. It is the single
// entry point for both inline dispatch and queue workers. Unexpected
// handler failures surface as an abort transition rather than an error so
// that no code path leaves a job in a non-terminal state; only state
// ordering defects (StateTransitionError) and store failures propagate.
func (e *Engine) Handle(ctx context.Context, signal *job.Signal) (err error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("engine.%s", signal.Event), "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"job.id": signal.JobID, "job.event": string(signal.Event)})

	current, err := e.jobs.Load(ctx, signal.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", signal.JobID, err)
	}

	switch signal.Event {
	case job.EventInitializing:
		return e.initializing(ctx, current)
	case job.EventStart:
		return e.start(ctx, current)
	case job.EventPreExecute:
		return e.preExecute(ctx, current)
	case job.EventExecute:
		return e.execute(ctx, current)
	case job.EventPollRunner:
		return e.pollRunner(ctx, current)
	case job.EventPostExecute:
		return e.postExecute(ctx, current)
	case job.EventFinish:
		return e.finish(ctx, current, signal.Message, signal.Status)
	case job.EventAbort:
		return e.abortJob(ctx, current, signal.Message)
	case job.EventCancel:
		return e.cancelJob(ctx, current, signal.Message)
	case job.EventError:
		return e.errorJob(ctx, current, signal.Message)
	default:
		return &job.StateTransitionError{Event: signal.Event, State: current.State}
	}
}

// transition applies the event, persists the job and notifies listeners.
func (e *Engine) transition(ctx context.Context, current *job.Job, evt job.Event) error {
	from := current.State
	next, err := current.Apply(evt)
	if err != nil {
		return err
	}
	if err := e.jobs.Save(ctx, current); err != nil {
		return fmt.Errorf("failed to save job %s: %w", current.ID, err)
	}
	e.events.Publish(event.Transition{JobID: current.ID, Event: evt, From: from, To: next})
	e.logger.Debug().
		Str("job_id", current.ID).
		Str("event", string(evt)).
		Str("from", string(from)).
		Str("to", string(next)).
		Msg("job transition")
	return nil
}

func (e *Engine) initializing(ctx context.Context, current *job.Job) error {
	if err := e.transition(ctx, current, job.EventInitializing); err != nil {
		return err
	}
	return e.router.Route(ctx, &job.Signal{JobID: current.ID, Event: job.EventStart, Role: current.Options.Role})
}

func (e *Engine) start(ctx context.Context, current *job.Job) error {
	if err := e.transition(ctx, current, job.EventStart); err != nil {
		return err
	}
	return e.router.Route(ctx, &job.Signal{JobID: current.ID, Event: job.EventPreExecute, Role: current.Options.Role})
}

// preExecute validates the option combination and prepares the template
// tree, checking out the source-control reference when one is configured.
func (e *Engine) preExecute(ctx context.Context, current *job.Job) error {
	if err := e.transition(ctx, current, job.EventPreExecute); err != nil {
		return err
	}
	if err := current.Options.Validate(); err != nil {
		return e.abortJob(ctx, current, err.Error())
	}
	if err := e.prepareRepository(ctx, current); err != nil {
		return e.abortJob(ctx, current, err.Error())
	}
	return e.router.Route(ctx, &job.Signal{JobID: current.ID, Event: job.EventExecute, Role: current.Options.Role})
}

// prepareRepository checks the configured repository out into a fresh
// temporary directory and rewrites the template path to point inside it.
func (e *Engine) prepareRepository(ctx context.Context, current *job.Job) error {
	options := &current.Options
	if options.RepositoryURL == "" {
		return nil
	}
	checkoutDir, err := os.MkdirTemp("", "stackjob-checkout-")
	if err != nil {
		return fmt.Errorf("failed to create checkout directory: %w", err)
	}
	options.CheckoutDir = checkoutDir
	if err := e.jobs.Save(ctx, current); err != nil {
		return err
	}

	repository, err := e.opener.Open(options.RepositoryURL, options.RepositoryRef)
	if err != nil {
		return err
	}
	e.logger.Info().Str("job_id", current.ID).Str("dir", checkoutDir).Msg("checking out repository")
	if err := repository.Checkout(ctx, checkoutDir); err != nil {
		var unreachable *source.UnreachableError
		if errors.As(err, &unreachable) {
			return fmt.Errorf("failed to connect with [%v], job aborted", unreachable)
		}
		return err
	}
	options.TemplatePath = filepath.Join(checkoutDir, options.TemplateRelPath)
	return e.jobs.Save(ctx, current)
}

// execute launches the runner operation for the job's action kind and
// persists the returned stack job handle. Remote failures become an abort
// transition, never an error escaping the workflow boundary.
func (e *Engine) execute(ctx context.Context, current *job.Job) error {
	if err := e.transition(ctx, current, job.EventExecute); err != nil {
		return err
	}

	handle, err := e.launch(ctx, current)
	if err != nil {
		return e.abortJob(ctx, current, fmt.Sprintf("failed to run %s: %v", current.Options.Action, err))
	}
	if handle == nil {
		return e.abortJob(ctx, current, fmt.Sprintf("failed to run %s", current.Options.Action))
	}

	ref := handle.Ref()
	current.Options.StackID = ref.StackID
	current.Options.StackJobID = ref.StackJobID
	current.Context.StackJob = &ref
	current.MarkStarted()
	if err := e.jobs.Save(ctx, current); err != nil {
		return err
	}
	return e.routePoll(ctx, current)
}

func (e *Engine) launch(ctx context.Context, current *job.Job) (*runner.StackJob, error) {
	options := &current.Options
	stackOptions := &runner.StackOptions{
		Name:        options.StackName,
		InputVars:   e.decryptVars(options.MergedInputVars()),
		Constraints: options.Constraints,
		Tags:        options.Tags,
		Credentials: options.Credentials,
		EnvVars:     options.EnvVars,
	}
	switch options.Action {
	case job.ActionProvision:
		return e.client.CreateStack(ctx, options.TemplatePath, stackOptions)
	case job.ActionReconfigure:
		return e.client.UpdateStack(ctx, options.StackID, options.TemplatePath, stackOptions)
	case job.ActionRetirement:
		return e.client.DeleteStack(ctx, options.StackID, options.TemplatePath, stackOptions)
	default:
		return nil, fmt.Errorf("invalid action kind %q", options.Action)
	}
}

func (e *Engine) decryptVars(vars map[string]interface{}) map[string]interface{} {
	if e.decrypt == nil || len(vars) == 0 {
		return vars
	}
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		if text, ok := v.(string); ok {
			out[k] = e.decrypt(text)
		} else {
			out[k] = v
		}
	}
	return out
}

// pollRunner checks the stack job once (queued mode) or loops until
// completion (podified mode). The podified loop is iterative so that a job
// polling for hours never grows the call stack.
func (e *Engine) pollRunner(ctx context.Context, current *job.Job) error {
	if err := e.transition(ctx, current, job.EventPollRunner); err != nil {
		return err
	}
	handle := e.stackJob(current)
	if handle == nil {
		return e.abortJob(ctx, current, "no stack job to poll")
	}
	if e.config.Podified {
		return e.pollInline(ctx, current, handle)
	}
	return e.pollOnce(ctx, current, handle)
}

func (e *Engine) pollInline(ctx context.Context, current *job.Job, handle *runner.StackJob) error {
	for {
		running, err := handle.Running(ctx)
		if err != nil {
			return e.abortJob(ctx, current, fmt.Sprintf("failed to fetch stack job status: %v", err))
		}
		if !running {
			break
		}
		if current.TimeoutExceeded() {
			return e.handleTimeout(ctx, current, handle)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.pollInterval(current)):
		}
	}
	return e.processResult(ctx, current, handle)
}

func (e *Engine) pollOnce(ctx context.Context, current *job.Job, handle *runner.StackJob) error {
	running, err := handle.Running(ctx)
	if err != nil {
		return e.abortJob(ctx, current, fmt.Sprintf("failed to fetch stack job status: %v", err))
	}
	if running {
		if current.TimeoutExceeded() {
			return e.handleTimeout(ctx, current, handle)
		}
		return e.routePoll(ctx, current)
	}
	return e.processResult(ctx, current, handle)
}

// processResult captures the final stack job outcome into the job context
// and advances to post-execute.
func (e *Engine) processResult(ctx context.Context, current *job.Job, handle *runner.StackJob) error {
	response, err := handle.Response(ctx)
	if err != nil {
		return e.abortJob(ctx, current, fmt.Sprintf("failed to fetch stack job result: %v", err))
	}
	current.Context.LastStatus = response.Status
	current.Context.LastMessage = response.Message
	current.Context.LastErrorMessage = response.ErrorMessage

	if response.Status.Success() {
		current.SetStatus(fmt.Sprintf("stack %s completed with no errors", current.Options.Action), job.StatusOK)
	} else {
		current.SetStatus(fmt.Sprintf("stack %s failed", current.Options.Action), job.StatusError)
		e.logger.Warn().
			Str("job_id", current.ID).
			Str("status", string(response.Status)).
			Str("error_message", response.ErrorMessage).
			Msg("stack job failed")
	}
	if err := e.jobs.Save(ctx, current); err != nil {
		return err
	}
	return e.router.Route(ctx, &job.Signal{JobID: current.ID, Event: job.EventPostExecute, Role: current.Options.Role})
}

// handleTimeout force-stops the remote stack job and aborts. The stop
// happens here, exactly once; the abort transition does not touch the
// handle again.
func (e *Engine) handleTimeout(ctx context.Context, current *job.Job, handle *runner.StackJob) error {
	if _, err := handle.Stop(ctx); err != nil {
		e.logger.Warn().Str("job_id", current.ID).Err(err).Msg("failed to stop timed out stack job")
	}
	return e.terminate(ctx, current, job.EventAbort,
		fmt.Sprintf("stack %s has been running longer than timeout", current.Options.Action), job.StatusError)
}

// postExecute removes the temporary checkout and reports the captured
// outcome.
func (e *Engine) postExecute(ctx context.Context, current *job.Job) error {
	if err := e.transition(ctx, current, job.EventPostExecute); err != nil {
		return err
	}
	e.cleanupCheckout(current)
	return e.router.Route(ctx, &job.Signal{
		JobID:   current.ID,
		Event:   job.EventFinish,
		Message: current.Message,
		Status:  current.Status,
		Role:    current.Options.Role,
	})
}

func (e *Engine) cleanupCheckout(current *job.Job) {
	dir := current.Options.CheckoutDir
	if dir == "" {
		return
	}
	e.logger.Info().Str("job_id", current.ID).Str("dir", dir).Msg("cleaning up repository checkout")
	if err := source.RemoveDir(dir); err != nil {
		e.logger.Warn().Str("job_id", current.ID).Err(err).Msg("failed to remove checkout directory")
	}
}

func (e *Engine) finish(ctx context.Context, current *job.Job, message string, status job.Status) error {
	if message != "" {
		current.SetStatus(message, status)
	}
	return e.transition(ctx, current, job.EventFinish)
}

// abortJob stops any in-flight remote stack best-effort and moves the job
// to the aborting terminal state.
func (e *Engine) abortJob(ctx context.Context, current *job.Job, message string) error {
	e.stopRemote(ctx, current)
	if message == "" {
		message = "job aborted"
	}
	return e.terminate(ctx, current, job.EventAbort, message, job.StatusError)
}

// cancelJob stops any in-flight remote stack best-effort and moves the job
// to the canceling terminal state.
func (e *Engine) cancelJob(ctx context.Context, current *job.Job, message string) error {
	e.stopRemote(ctx, current)
	if message == "" {
		message = "job canceled"
	}
	return e.terminate(ctx, current, job.EventCancel, message, job.StatusError)
}

// errorJob logs and leaves the state untouched.
func (e *Engine) errorJob(ctx context.Context, current *job.Job, message string) error {
	e.logger.Error().Str("job_id", current.ID).Str("message", message).Msg("job error")
	return e.transition(ctx, current, job.EventError)
}

func (e *Engine) terminate(ctx context.Context, current *job.Job, evt job.Event, message string, status job.Status) error {
	current.SetStatus(message, status)
	if err := e.transition(ctx, current, evt); err != nil {
		return err
	}
	e.cleanupCheckout(current)
	e.logger.Info().
		Str("job_id", current.ID).
		Str("state", string(current.State)).
		Str("message", message).
		Msg("job terminated")
	return nil
}

// stopRemote tells the remote stack job to stop, best-effort: failure to
// stop never blocks local termination.
func (e *Engine) stopRemote(ctx context.Context, current *job.Job) {
	handle := e.stackJob(current)
	if handle == nil {
		return
	}
	if _, err := handle.Stop(ctx); err != nil && !errors.Is(err, runner.ErrNotRunning) {
		e.logger.Warn().Str("job_id", current.ID).Err(err).Msg("failed to stop remote stack job")
	}
}

// stackJob reconstructs the persisted handle, if the runner accepted a
// launch for this job.
func (e *Engine) stackJob(current *job.Job) *runner.StackJob {
	ref := current.Context.StackJob
	if ref == nil {
		if current.Options.StackID == "" {
			return nil
		}
		return runner.NewStackJob(e.client, current.Options.StackID, current.Options.StackJobID)
	}
	return runner.NewStackJobFromRef(e.client, *ref)
}

func (e *Engine) pollInterval(current *job.Job) time.Duration {
	if current.Options.PollInterval > 0 {
		return current.Options.PollInterval
	}
	return e.config.PollInterval
}

func (e *Engine) routePoll(ctx context.Context, current *job.Job) error {
	signal := &job.Signal{JobID: current.ID, Event: job.EventPollRunner, Role: current.Options.Role}
	if e.config.Podified {
		return e.router.Route(ctx, signal)
	}
	deliverOn := clock.Now().Add(e.pollInterval(current))
	signal.DeliverOn = &deliverOn
	return e.router.Enqueue(ctx, signal)
}
