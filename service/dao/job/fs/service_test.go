package fs

import (
	"context"
	"testing"

	"github.com/stackjob/stackjob/job"
	"github.com/stackjob/stackjob/runner"
	"github.com/stackjob/stackjob/service/dao"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := New(afs.New(), t.TempDir())
	require.NoError(t, err)
	return service
}

func TestServiceRoundTrip(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	stored := job.New("job-1", job.Options{
		Action:       job.ActionProvision,
		TemplatePath: "templates/vpc",
		InputVars:    map[string]interface{}{"region": "us-east-1"},
	})
	stored.Context.StackJob = &runner.StackJobRef{StackID: "st-1", StackJobID: "sj-1"}
	require.NoError(t, service.Save(ctx, stored))

	loaded, err := service.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, loaded.ID)
	assert.Equal(t, job.StateInitialize, loaded.State)
	assert.Equal(t, "us-east-1", loaded.Options.InputVars["region"])
	require.NotNil(t, loaded.Context.StackJob)
	assert.Equal(t, "st-1", loaded.Context.StackJob.StackID)
}

func TestServiceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := New(afs.New(), dir)
	require.NoError(t, err)
	stored := job.New("job-1", job.Options{Action: job.ActionProvision, TemplatePath: "t"})
	_, err = stored.Apply(job.EventInitializing)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, stored))

	second, err := New(afs.New(), dir)
	require.NoError(t, err)
	loaded, err := second.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StateWaitingToStart, loaded.State)
}

func TestServiceErrors(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Load(ctx, "absent")
	require.ErrorIs(t, err, dao.ErrNotFound)
	require.ErrorIs(t, service.Delete(ctx, "absent"), dao.ErrNotFound)
	require.ErrorIs(t, service.Save(ctx, nil), dao.ErrNilEntity)

	_, err = New(afs.New(), "")
	require.Error(t, err)
}

func TestServiceListByState(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	first := job.New("job-1", job.Options{Action: job.ActionProvision, TemplatePath: "t"})
	require.NoError(t, service.Save(ctx, first))

	second := job.New("job-2", job.Options{Action: job.ActionProvision, TemplatePath: "t"})
	_, err := second.Apply(job.EventInitializing)
	require.NoError(t, err)
	require.NoError(t, service.Save(ctx, second))

	all, err := service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	waiting, err := service.List(ctx, dao.NewParameter("state", "waiting_to_start"))
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, "job-2", waiting[0].ID)

	require.NoError(t, service.Delete(ctx, "job-2"))
	all, err = service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
