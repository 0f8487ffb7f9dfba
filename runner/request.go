package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/stackjob/stackjob/internal/idgen"
	"github.com/viant/afs"
)

// Action identifies a runner API operation; the value doubles as the
// endpoint path.
type Action string

const (
	ActionCreate            Action = "api/stack/create"
	ActionApply             Action = "api/stack/apply"
	ActionDelete            Action = "api/stack/delete"
	ActionCancel            Action = "api/stack/cancel"
	ActionRetrieve          Action = "api/stack/retrieve"
	ActionTemplateVariables Action = "api/template/variables"

	healthEndpoint = "live"
)

// TenantID is the fixed tenant identifier attached to stack requests.
const TenantID = "00000000-0000-0000-0000-000000000000"

// ErrMissingArgument flags a request rejected before any network call.
var ErrMissingArgument = errors.New("runner: missing required argument")

// CloudProvider carries per-credential connection parameters for one cloud
// provider entry of a stack request.
type CloudProvider struct {
	ConnectionParameters []*Param `json:"connection_parameters"`
}

// request accumulates the body of one runner API call.
type request struct {
	action         Action
	name           string
	stackID        string
	stackJobID     string
	tenantID       string
	templatePath   string
	tags           map[string]string
	envVars        map[string]string
	inputVars      map[string]interface{}
	constraints    map[string]*TypeConstraint
	cloudProviders []*CloudProvider
}

func (r *request) validate() error {
	switch r.action {
	case ActionCreate, ActionTemplateVariables:
		if r.templatePath == "" {
			return fmt.Errorf("%w: template path is required for %s", ErrMissingArgument, r.action)
		}
	case ActionApply, ActionDelete:
		if r.stackID == "" || r.templatePath == "" {
			return fmt.Errorf("%w: stack id and template path are required for %s", ErrMissingArgument, r.action)
		}
	case ActionCancel, ActionRetrieve:
		if r.stackID == "" {
			return fmt.Errorf("%w: stack id is required for %s", ErrMissingArgument, r.action)
		}
	default:
		return fmt.Errorf("invalid runner action %q", r.action)
	}
	return nil
}

// build validates the request and produces its JSON body, normalizing input
// variables and encoding the template directory.
func (r *request) build(ctx context.Context, fs afs.Service) (map[string]interface{}, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	body := map[string]interface{}{}
	if r.name != "" {
		body["name"] = r.name
	}
	if r.stackID != "" {
		body["stack_id"] = r.stackID
	}
	if r.stackJobID != "" {
		body["stack_job_id"] = r.stackJobID
	}
	if r.tenantID != "" {
		body["tenant_id"] = r.tenantID
	}
	if len(r.tags) > 0 {
		body["tags"] = r.tags
	}
	if len(r.envVars) > 0 {
		body["env_vars"] = r.envVars
	}
	if len(r.cloudProviders) > 0 {
		body["cloud_providers"] = r.cloudProviders
	}
	if r.templatePath != "" {
		encoded, err := EncodeTemplate(ctx, fs, r.templatePath)
		if err != nil {
			return nil, err
		}
		body["templateZipFile"] = encoded
	}
	if r.inputVars != nil {
		params, err := NormalizeParameters(r.inputVars, r.constraints)
		if err != nil {
			return nil, err
		}
		body["parameters"] = params
	}

	switch r.action {
	case ActionCreate:
		if _, ok := body["name"]; !ok {
			body["name"] = idgen.StackName()
		}
		fallthrough
	case ActionApply, ActionDelete:
		if _, ok := body["cloud_providers"]; !ok {
			body["cloud_providers"] = []*CloudProvider{}
		}
		if _, ok := body["parameters"]; !ok {
			body["parameters"] = []*Param{}
		}
	}
	return body, nil
}
