package memory

import (
	"context"
	"testing"

	"github.com/stackjob/stackjob/job"
	"github.com/stackjob/stackjob/service/dao"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceSaveLoad(t *testing.T) {
	service := New()
	ctx := context.Background()

	stored := job.New("job-1", job.Options{Action: job.ActionProvision, TemplatePath: "templates/vpc"})
	require.NoError(t, service.Save(ctx, stored))

	loaded, err := service.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, loaded.ID)
	assert.Equal(t, job.StateInitialize, loaded.State)

	// the load is a snapshot, mutations do not leak into the store
	loaded.State = job.StateRunning
	reloaded, err := service.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StateInitialize, reloaded.State)
}

func TestServiceSaveMerges(t *testing.T) {
	service := New()
	ctx := context.Background()

	stored := job.New("job-1", job.Options{Action: job.ActionProvision, TemplatePath: "templates/vpc"})
	require.NoError(t, service.Save(ctx, stored))

	updated := stored.Clone()
	_, err := updated.Apply(job.EventInitializing)
	require.NoError(t, err)
	require.NoError(t, service.Save(ctx, updated))

	loaded, err := service.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StateWaitingToStart, loaded.State)
}

func TestServiceErrors(t *testing.T) {
	service := New()
	ctx := context.Background()

	_, err := service.Load(ctx, "absent")
	require.ErrorIs(t, err, dao.ErrNotFound)

	_, err = service.Load(ctx, "")
	require.ErrorIs(t, err, dao.ErrInvalidID)

	require.ErrorIs(t, service.Save(ctx, nil), dao.ErrNilEntity)
	require.ErrorIs(t, service.Save(ctx, &job.Job{}), dao.ErrInvalidID)
	require.ErrorIs(t, service.Delete(ctx, "absent"), dao.ErrNotFound)
}

func TestServiceListByState(t *testing.T) {
	service := New()
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

	waiting, err := service.List(ctx, dao.NewParameter("state", job.StateWaitingToStart))
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, "job-2", waiting[0].ID)

	require.NoError(t, service.Delete(ctx, "job-1"))
	all, err = service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
