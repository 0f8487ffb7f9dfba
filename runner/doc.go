// Package runner is the HTTP façade over the external stack runner service.
// It encodes template directories into transportable zip payloads, converts
// loosely-typed input variables into the runner's typed parameter list and
// exposes the stack lifecycle operations (create, apply, delete, cancel,
// retrieve, template variables) plus a cached health probe.
package runner
