package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/stackjob/stackjob/job"
	"github.com/stackjob/stackjob/service/dao"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// Service persists jobs as JSON documents under a base location, one file
// per job id. Any afs-supported scheme works (local fs, memory, cloud
// storage), which is what makes job state survive process restarts.
type Service struct {
	fs       afs.Service
	basePath string
}

var _ dao.Service[string, job.Job] = (*Service)(nil)

// New creates a file-backed job store rooted at basePath.
func New(fs afs.Service, basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	s := &Service{fs: fs, basePath: basePath}
	ctx := context.Background()
	if exists, _ := fs.Exists(ctx, basePath); !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create job store directory %s: %w", basePath, err)
		}
	}
	return s, nil
}

func (s *Service) Save(ctx context.Context, j *job.Job) error {
	if j == nil {
		return dao.ErrNilEntity
	}
	if j.ID == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", j.ID, err)
	}
	return s.fs.Upload(ctx, s.location(j.ID), file.DefaultFileOsMode, bytes.NewReader(data))
}

func (s *Service) Load(ctx context.Context, id string) (*job.Job, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	location := s.location(id)
	if exists, _ := s.fs.Exists(ctx, location); !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}
	stored := &job.Job{}
	if err := json.Unmarshal(data, stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	return stored, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	location := s.location(id)
	if exists, _ := s.fs.Exists(ctx, location); !exists {
		return dao.ErrNotFound
	}
	return s.fs.Delete(ctx, location)
}

func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*job.Job, error) {
	objects, err := s.fs.List(ctx, s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list job store: %w", err)
	}
	state, filtered := dao.StateFilter(parameters)
	var out []*job.Job
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.DownloadWithURL(ctx, object.URL())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", object.URL(), err)
		}
		stored := &job.Job{}
		if err := json.Unmarshal(data, stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", object.URL(), err)
		}
		if filtered && string(stored.State) != state && stored.State != state {
			continue
		}
		out = append(out, stored)
	}
	return out, nil
}

func (s *Service) location(id string) string {
	return path.Join(s.basePath, id+".json")
}
