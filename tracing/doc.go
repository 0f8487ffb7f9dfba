// Package tracing provides a thin OpenTelemetry wrapper used to instrument
// runner calls and job transitions.  It is kept in a separate package so that
// applications which do not require tracing can exclude it from their build.
package tracing
