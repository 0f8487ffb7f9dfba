package runner

// Status is the stack-job status reported by the runner service.
type Status string

const (
	StatusInProgress         Status = "IN_PROGRESS"
	StatusSuccess            Status = "SUCCESS"
	StatusSuccessWithChanges Status = "SUCCESS_WITH_CHANGES"
	StatusFailed             Status = "FAILED"
	StatusFailedTimedOut     Status = "FAILED_TIMED_OUT"
	StatusCancelled          Status = "CANCELLED"
)

// Complete reports whether the status is terminal. Unrecognized values count
// as still running so that an unknown status never marks a job done.
func (s Status) Complete() bool {
	switch s {
	case StatusSuccess, StatusSuccessWithChanges, StatusFailed, StatusFailedTimedOut, StatusCancelled:
		return true
	}
	return false
}

// Success reports whether the stack job finished without errors.
func (s Status) Success() bool {
	switch s {
	case StatusSuccess, StatusSuccessWithChanges:
		return true
	}
	return false
}

// Response holds the decoded body of a runner stack API call.
type Response struct {
	StackID           string                 `json:"stack_id"`
	StackJobID        string                 `json:"stack_job_id"`
	StackJobIsLatest  bool                   `json:"stack_job_is_latest"`
	StackName         string                 `json:"stack_name"`
	Status            Status                 `json:"status"`
	Action            string                 `json:"action"`
	Message           string                 `json:"message"`
	ErrorMessage      string                 `json:"error_message"`
	Details           map[string]interface{} `json:"details,omitempty"`
	CreatedAt         string                 `json:"created_at"`
	StackJobStartTime string                 `json:"stack_job_start_time"`
	StackJobEndTime   string                 `json:"stack_job_end_time"`
}

// TemplateSchema is the declared variable schema of a template, as parsed by
// the runner's template/variables endpoint.
type TemplateSchema struct {
	InputVars        []*TypeConstraint      `json:"template_input_params"`
	OutputVars       []*TemplateOutputParam `json:"template_output_params"`
	TerraformVersion string                 `json:"terraform_version"`
}

// TemplateOutputParam describes one declared template output.
type TemplateOutputParam struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Sensitive   bool   `json:"sensitive,omitempty"`
}

// ConstraintsByName indexes the schema's input variables by name, the form
// the parameter normalizer consumes.
func (s *TemplateSchema) ConstraintsByName() map[string]*TypeConstraint {
	out := make(map[string]*TypeConstraint, len(s.InputVars))
	for _, c := range s.InputVars {
		out[c.Name] = c
	}
	return out
}
