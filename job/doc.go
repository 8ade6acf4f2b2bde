// Package job implements a cooperative, time-budgeted job runner.
//
// A Manager owns prioritized, resumable jobs and runs them for a bounded time
// slice per host tick:
//
//	manager, _ := job.New(job.WithConfig(job.Config{LoadingFramerate: 30}))
//	manager.Push(myJob)
//	for running {
//		manager.Update()
//		// host frame work
//		manager.End()
//	}
//
// Each End call keeps stepping the highest-priority runnable job while the
// frame budget has time left, and always performs at least MinStepsPerTick
// steps when a runnable job exists. Jobs reporting a priority <= 0 are parked.
package job
