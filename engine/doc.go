// Package engine implements the job workflow: a queue-driven state machine
// that validates options, prepares the template source, launches the remote
// runner, polls the resulting stack job and records the outcome. Every
// transition loads the job, applies one event from the central transition
// table and persists it, so the workflow resumes cleanly after a restart.
package engine
