package runner

import (
	"context"
	"errors"
)

// ErrNotRunning is returned by Stop when the stack job already finished.
var ErrNotRunning = errors.New("runner: no job running to stop")

// stackAPI is the slice of Client the handle needs; it keeps the handle
// testable without a live service.
type stackAPI interface {
	RetrieveStack(ctx context.Context, stackID, stackJobID string) (*Response, error)
	CancelStack(ctx context.Context, stackID string) (*Response, error)
}

// StackJob is a lightweight handle for one in-flight or completed remote
// stack job. It is not authoritative state: Running re-queries the runner on
// demand and only caches the last response. The handle serializes to a
// StackJobRef so the owning job survives process restarts.
type StackJob struct {
	api        stackAPI
	stackID    string
	stackJobID string
	response   *Response
}

// StackJobRef is the persistable identity of a StackJob.
type StackJobRef struct {
	StackID    string `json:"stack_id"`
	StackJobID string `json:"stack_job_id,omitempty"`
}

// NewStackJob wraps a (stackID, stackJobID) pair.
func NewStackJob(api stackAPI, stackID, stackJobID string) *StackJob {
	return &StackJob{api: api, stackID: stackID, stackJobID: stackJobID}
}

// NewStackJobFromRef reconstructs a handle persisted by a previous poll
// cycle, possibly in a different process.
func NewStackJobFromRef(api stackAPI, ref StackJobRef) *StackJob {
	return NewStackJob(api, ref.StackID, ref.StackJobID)
}

func (s *StackJob) StackID() string    { return s.stackID }
func (s *StackJob) StackJobID() string { return s.stackJobID }

// Ref returns the persistable identity of the handle.
func (s *StackJob) Ref() StackJobRef {
	return StackJobRef{StackID: s.stackID, StackJobID: s.stackJobID}
}

// Running reports whether the remote stack job is still in progress. Once a
// terminal status has been observed it returns false permanently without
// re-querying.
func (s *StackJob) Running(ctx context.Context) (bool, error) {
	if s.response != nil && s.response.Status.Complete() {
		return false, nil
	}
	response, err := s.Refresh(ctx)
	if err != nil {
		return false, err
	}
	return !response.Status.Complete(), nil
}

// Stop cancels the running stack job. It fails with ErrNotRunning when the
// job already reached a terminal status.
func (s *StackJob) Stop(ctx context.Context) (*Response, error) {
	running, err := s.Running(ctx)
	if err != nil {
		return nil, err
	}
	if !running {
		return nil, ErrNotRunning
	}
	return s.api.CancelStack(ctx, s.stackID)
}

// Response returns the last fetched result, refreshing once when nothing has
// been fetched yet.
func (s *StackJob) Response(ctx context.Context) (*Response, error) {
	if s.response == nil {
		return s.Refresh(ctx)
	}
	return s.response, nil
}

// Refresh re-queries the runner and replaces the cached response.
func (s *StackJob) Refresh(ctx context.Context) (*Response, error) {
	response, err := s.api.RetrieveStack(ctx, s.stackID, s.stackJobID)
	if err != nil {
		return nil, err
	}
	s.response = response
	return response, nil
}
