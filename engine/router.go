package engine

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stackjob/stackjob/job"
	"github.com/stackjob/stackjob/service/messaging"
)

// Router decides how a transition signal travels to its handler. In
// podified mode the transition runs inline in the current process, because
// the job carries local state (the checked out template tree) that a
// different worker would not have. Otherwise the signal goes through the
// queue and any worker may pick it up.
type Router struct {
	podified bool
	queue    messaging.Queue[job.Signal]
	engine   *Engine
	logger   zerolog.Logger
}

// Route delivers a signal inline (podified) or through the queue.
func (r *Router) Route(ctx context.Context, signal *job.Signal) error {
	if r.podified {
		return r.engine.Handle(ctx, signal)
	}
	return r.Enqueue(ctx, signal)
}

// Enqueue always publishes through the queue, regardless of mode. Delayed
// poll signals take this path since suspension requires a durable carrier.
func (r *Router) Enqueue(ctx context.Context, signal *job.Signal) error {
	r.logger.Debug().
		Str("job_id", signal.JobID).
		Str("event", string(signal.Event)).
		Msg("queueing signal")
	return r.queue.Publish(ctx, signal)
}
