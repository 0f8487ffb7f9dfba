package job

import (
	"errors"
	"time"

	"github.com/stackjob/stackjob/internal/clock"
	"github.com/stackjob/stackjob/runner"
)

// ActionKind selects which runner operation the job drives.
type ActionKind string

const (
	ActionProvision   ActionKind = "provision"
	ActionReconfigure ActionKind = "reconfigure"
	ActionRetirement  ActionKind = "retirement"
)

// Status is the terminal outcome of a job as reported to callers.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Options is the typed configuration of one job. The template is addressed
// either directly by TemplatePath or by a RepositoryURL plus
// TemplateRelPath pair checked out during pre-execute. StackID is absent
// until the runner accepts the launch call; once set it stays fixed for the
// life of the job.
type Options struct {
	Action ActionKind `json:"action"`

	TemplatePath    string `json:"templatePath,omitempty"`
	RepositoryURL   string `json:"repositoryURL,omitempty"`
	RepositoryRef   string `json:"repositoryRef,omitempty"`
	TemplateRelPath string `json:"templateRelPath,omitempty"`

	StackName   string                             `json:"stackName,omitempty"`
	InputVars   map[string]interface{}             `json:"inputVars,omitempty"`
	ExtraVars   map[string]interface{}             `json:"extraVars,omitempty"`
	Constraints map[string]*runner.TypeConstraint  `json:"constraints,omitempty"`
	EnvVars     map[string]string                  `json:"envVars,omitempty"`
	Credentials []string                           `json:"credentials,omitempty"`
	Tags        map[string]string                  `json:"tags,omitempty"`

	PollInterval time.Duration `json:"pollInterval,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty"`

	StackID    string `json:"stackId,omitempty"`
	StackJobID string `json:"stackJobId,omitempty"`

	CheckoutDir string `json:"checkoutDir,omitempty"`

	Role     string `json:"role,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// Validate checks the required option combination before any remote call.
func (o *Options) Validate() error {
	switch o.Action {
	case ActionProvision, ActionReconfigure, ActionRetirement:
	default:
		return errors.New("job: unknown action kind")
	}
	if o.TemplatePath == "" && (o.RepositoryURL == "" || o.TemplateRelPath == "") {
		return errors.New("job: must set templatePath or a repositoryURL, templateRelPath pair")
	}
	if o.Action != ActionProvision && o.StackID == "" {
		return errors.New("job: stackId is required for reconfigure and retirement")
	}
	return nil
}

// MergedInputVars returns input vars with extra vars folded in; extra vars
// are merged before normalization and win on key conflicts.
func (o *Options) MergedInputVars() map[string]interface{} {
	if len(o.ExtraVars) == 0 {
		return o.InputVars
	}
	merged := make(map[string]interface{}, len(o.InputVars)+len(o.ExtraVars))
	for k, v := range o.InputVars {
		merged[k] = v
	}
	for k, v := range o.ExtraVars {
		merged[k] = v
	}
	return merged
}

// Context carries the job's volatile execution context: the persisted stack
// job handle and the last seen runner result.
type Context struct {
	StackJob         *runner.StackJobRef `json:"stackJob,omitempty"`
	LastStatus       runner.Status       `json:"lastStatus,omitempty"`
	LastMessage      string              `json:"lastMessage,omitempty"`
	LastErrorMessage string              `json:"lastErrorMessage,omitempty"`
}

// Job is the persisted unit of work driving one provisioning,
// reconfiguration or retirement run. Only workflow transition handlers
// mutate it.
type Job struct {
	ID      string  `json:"id"`
	State   State   `json:"state"`
	Options Options `json:"options"`
	Context Context `json:"context"`

	Message string `json:"message,omitempty"`
	Status  Status `json:"status,omitempty"`

	StartedOn *time.Time `json:"startedOn,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// New creates a job in the initialize state.
func New(id string, options Options) *Job {
	now := clock.Now()
	return &Job{
		ID:        id,
		State:     StateInitialize,
		Options:   options,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply transitions the job per the central transition table. On a
// disallowed event the state is left untouched and a *StateTransitionError
// is returned.
func (j *Job) Apply(event Event) (State, error) {
	next, err := Next(j.State, event)
	if err != nil {
		return "", err
	}
	j.State = next
	j.UpdatedAt = clock.Now()
	return next, nil
}

// SetStatus records the caller-visible outcome message and status.
func (j *Job) SetStatus(message string, status Status) {
	j.Message = message
	j.Status = status
	j.UpdatedAt = clock.Now()
}

// MarkStarted stamps the execution start used for timeout accounting.
func (j *Job) MarkStarted() {
	now := clock.Now()
	j.StartedOn = &now
}

// TimeoutExceeded reports whether the configured per-job timeout elapsed
// since the execute transition.
func (j *Job) TimeoutExceeded() bool {
	if j.StartedOn == nil || j.Options.Timeout <= 0 {
		return false
	}
	return clock.Since(*j.StartedOn) > j.Options.Timeout
}

// Clone returns a deep copy so callers can mutate without affecting the
// stored instance.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	clone.Options.InputVars = copyMap(j.Options.InputVars)
	clone.Options.ExtraVars = copyMap(j.Options.ExtraVars)
	clone.Options.EnvVars = copyStringMap(j.Options.EnvVars)
	clone.Options.Tags = copyStringMap(j.Options.Tags)
	if j.Options.Credentials != nil {
		clone.Options.Credentials = append([]string(nil), j.Options.Credentials...)
	}
	if j.Options.Constraints != nil {
		constraints := make(map[string]*runner.TypeConstraint, len(j.Options.Constraints))
		for k, v := range j.Options.Constraints {
			c := *v
			constraints[k] = &c
		}
		clone.Options.Constraints = constraints
	}
	if j.Context.StackJob != nil {
		ref := *j.Context.StackJob
		clone.Context.StackJob = &ref
	}
	if j.StartedOn != nil {
		t := *j.StartedOn
		clone.StartedOn = &t
	}
	return &clone
}

// CopyFrom overwrites this job with other's content; used by stores that
// merge saves into an existing instance.
func (j *Job) CopyFrom(other *Job) {
	if other == nil || other == j {
		return
	}
	*j = *other.Clone()
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
