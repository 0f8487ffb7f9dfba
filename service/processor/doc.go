// Package processor hosts the workers that drain the transition signal
// queue.  Every worker consumes one signal at a time and hands it to the
// workflow engine, acking on success and nacking on failure so the queue's
// retry policy decides what happens next.
package processor
