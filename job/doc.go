// Package job defines the persisted unit of work, its finite state machine
// and the queued transition signal. State transitions are validated against
// a single central table; handlers in the engine package perform the side
// effects.
package job
