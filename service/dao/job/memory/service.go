package memory

import (
	"context"
	"sync"

	"github.com/stackjob/stackjob/job"
	"github.com/stackjob/stackjob/service/dao"
)

// Service is an in-memory, thread-safe job store. Saves merge into the
// stored instance and loads hand back the live pointer guarded by copy
// semantics on save, mirroring the persistence contract of the durable
// store.
type Service struct {
	jobs map[string]*job.Job
	mux  sync.RWMutex
}

var _ dao.Service[string, job.Job] = (*Service)(nil)

func New() *Service {
	return &Service{jobs: map[string]*job.Job{}}
}

func (s *Service) Save(_ context.Context, j *job.Job) error {
	if j == nil {
		return dao.ErrNilEntity
	}
	if j.ID == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if existing, ok := s.jobs[j.ID]; ok && existing != nil {
		existing.CopyFrom(j)
	} else {
		s.jobs[j.ID] = j.Clone()
	}
	return nil
}

func (s *Service) Load(_ context.Context, id string) (*job.Job, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mux.RLock()
	stored, ok := s.jobs[id]
	s.mux.RUnlock()

	if !ok {
		return nil, dao.ErrNotFound
	}
	return stored.Clone(), nil
}

func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*job.Job, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	state, filtered := dao.StateFilter(parameters)
	out := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if filtered && string(j.State) != state && j.State != state {
			continue
		}
		out = append(out, j.Clone())
	}
	return out, nil
}
