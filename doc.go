// Package stackjob drives Terraform/OpenTofu provisioning through a remote
// runner service as asynchronous, resumable jobs.
//
// The module splits into pluggable service layers:
//
//   - runner    – HTTP client for the runner service plus stack job handles
//   - engine    – the queue-driven job state machine
//   - processor – workers draining the transition signal queue
//   - source    – repository checkout for templates held in source control
//
// End-users typically interact via the high-level Service façade exposed by
// the root package:
//
//	srv, _ := stackjob.New()
//	_ = srv.Start(ctx)
//	created, _ := srv.CreateJob(ctx, job.Options{
//		Action:       job.ActionProvision,
//		TemplatePath: "templates/vpc",
//	})
//	done, _ := srv.WaitForJob(ctx, created.ID, time.Second)
//
// For more details see the README and individual sub-packages.
package stackjob
