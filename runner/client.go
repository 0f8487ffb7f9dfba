package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stackjob/stackjob/tracing"
	"github.com/viant/afs"
)

// CallError reports a rejected or malformed response from the runner
// service; the raw body is preserved for diagnostics.
type CallError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("runner call %s failed (status %d): %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *CallError) Unwrap() error { return e.Err }

// CredentialResolver translates a credential reference into the connection
// parameters for one cloud_providers entry. Credential storage and
// decryption live outside this module.
type CredentialResolver interface {
	ConnectionParameters(ctx context.Context, ref string) ([]*Param, error)
}

// StackOptions carries the optional fields of a create/apply/delete call.
type StackOptions struct {
	Name        string
	InputVars   map[string]interface{}
	Constraints map[string]*TypeConstraint
	Tags        map[string]string
	Credentials []string
	EnvVars     map[string]string
}

// Client is a stateless HTTP façade over the runner service. Construct it
// once at process start and share it; all methods are safe for concurrent
// use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	token       TokenProvider
	fs          afs.Service
	credentials CredentialResolver
	logger      zerolog.Logger

	availableOnce sync.Once
	available     bool
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithCredentialResolver sets the credential reference resolver.
func WithCredentialResolver(resolver CredentialResolver) ClientOption {
	return func(c *Client) { c.credentials = resolver }
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithFS overrides the file service used to read template directories.
func WithFS(fs afs.Service) ClientOption {
	return func(c *Client) { c.fs = fs }
}

// NewClient creates a runner client for the given base URL. Every call
// carries a bearer token from the supplied provider.
func NewClient(baseURL string, token TokenProvider, options ...ClientOption) *Client {
	client := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: http.DefaultClient,
		fs:         afs.New(),
		logger:     zerolog.Nop(),
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// CreateStack provisions a new stack from the template directory and returns
// the handle of the accepted stack job.
func (c *Client) CreateStack(ctx context.Context, templatePath string, options *StackOptions) (*StackJob, error) {
	options = ensureOptions(options)
	req := &request{
		action:       ActionCreate,
		name:         options.Name,
		templatePath: templatePath,
		tenantID:     TenantID,
		tags:         options.Tags,
		envVars:      options.EnvVars,
		inputVars:    options.InputVars,
		constraints:  options.Constraints,
	}
	return c.launch(ctx, req, options.Credentials)
}

// UpdateStack re-applies the template against an existing stack. Both the
// stack id and the template path are required.
func (c *Client) UpdateStack(ctx context.Context, stackID, templatePath string, options *StackOptions) (*StackJob, error) {
	options = ensureOptions(options)
	req := &request{
		action:       ActionApply,
		stackID:      stackID,
		templatePath: templatePath,
		tenantID:     TenantID,
		envVars:      options.EnvVars,
		inputVars:    options.InputVars,
		constraints:  options.Constraints,
	}
	return c.launch(ctx, req, options.Credentials)
}

// DeleteStack destroys the resources of an existing stack. Both the stack id
// and the template path are required.
func (c *Client) DeleteStack(ctx context.Context, stackID, templatePath string, options *StackOptions) (*StackJob, error) {
	options = ensureOptions(options)
	req := &request{
		action:       ActionDelete,
		stackID:      stackID,
		templatePath: templatePath,
		tenantID:     TenantID,
		envVars:      options.EnvVars,
		inputVars:    options.InputVars,
		constraints:  options.Constraints,
	}
	return c.launch(ctx, req, options.Credentials)
}

// CancelStack stops the running stack job.
func (c *Client) CancelStack(ctx context.Context, stackID string) (*Response, error) {
	return c.post(ctx, &request{action: ActionCancel, stackID: stackID})
}

// RetrieveStack fetches the current state of a stack; stackJobID is optional
// and selects a specific job of the stack.
func (c *Client) RetrieveStack(ctx context.Context, stackID, stackJobID string) (*Response, error) {
	return c.post(ctx, &request{action: ActionRetrieve, stackID: stackID, stackJobID: stackJobID})
}

// TemplateVariables parses the template's declared input/output variable
// schema without requiring stack identity.
func (c *Client) TemplateVariables(ctx context.Context, templatePath string) (*TemplateSchema, error) {
	body, err := (&request{action: ActionTemplateVariables, templatePath: templatePath}).build(ctx, c.fs)
	if err != nil {
		return nil, err
	}
	data, err := c.roundTrip(ctx, string(ActionTemplateVariables), body)
	if err != nil {
		return nil, err
	}
	schema := &TemplateSchema{}
	if err := json.Unmarshal(data, schema); err != nil {
		return nil, &CallError{Endpoint: string(ActionTemplateVariables), StatusCode: http.StatusOK, Body: string(data), Err: err}
	}
	return schema, nil
}

// Available probes the runner health endpoint. It never fails: any network
// or parse error reports false. The result is computed once and cached for
// the process lifetime.
func (c *Client) Available(ctx context.Context) bool {
	c.availableOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+healthEndpoint, nil)
		if err != nil {
			return
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return
		}
		var health struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return
		}
		c.available = health.Status == "UP"
	})
	return c.available
}

func (c *Client) launch(ctx context.Context, req *request, credentialRefs []string) (*StackJob, error) {
	providers, err := c.cloudProviders(ctx, credentialRefs)
	if err != nil {
		return nil, err
	}
	req.cloudProviders = providers

	response, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logger.Info().
		Str("endpoint", string(req.action)).
		Str("stack_id", response.StackID).
		Str("stack_job_id", response.StackJobID).
		Msg("runner accepted stack job")
	return NewStackJob(c, response.StackID, response.StackJobID), nil
}

func (c *Client) cloudProviders(ctx context.Context, refs []string) ([]*CloudProvider, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	if c.credentials == nil {
		c.logger.Warn().Int("count", len(refs)).Msg("credential references supplied without a resolver, skipping")
		return nil, nil
	}
	providers := make([]*CloudProvider, 0, len(refs))
	for _, ref := range refs {
		params, err := c.credentials.ConnectionParameters(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve credential %q: %w", ref, err)
		}
		providers = append(providers, &CloudProvider{ConnectionParameters: params})
	}
	return providers, nil
}

func (c *Client) post(ctx context.Context, req *request) (*Response, error) {
	body, err := req.build(ctx, c.fs)
	if err != nil {
		return nil, err
	}
	data, err := c.roundTrip(ctx, string(req.action), body)
	if err != nil {
		return nil, err
	}
	response := &Response{}
	if err := json.Unmarshal(data, response); err != nil {
		return nil, &CallError{Endpoint: string(req.action), StatusCode: http.StatusOK, Body: string(data), Err: err}
	}
	return response, nil
}

func (c *Client) roundTrip(ctx context.Context, endpoint string, body map[string]interface{}) (data []byte, err error) {
	ctx, span := tracing.StartSpan(ctx, "runner."+endpoint, "CLIENT")
	defer func() { tracing.EndSpan(span, err) }()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	token, err := c.token.Token(ctx)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err = io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &CallError{Endpoint: endpoint, StatusCode: httpResp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func ensureOptions(options *StackOptions) *StackOptions {
	if options == nil {
		return &StackOptions{}
	}
	return options
}
