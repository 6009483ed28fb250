// Package threadpool provides bounded execution of jobs for the server.
//
// Three implementations share the IThreadPool interface:
//
//   - naive: one goroutine per job. Simple, but the number of concurrent jobs is unbounded.
//
//   - shared-queue: a fixed number of workers receive jobs from one lock-free queue
//     (util.LockFreeMPSC). A worker whose job panics is replaced, so a faulty request can
//     never shrink the pool.
//
//   - work-stealing: jobs are handed to a sourcegraph/conc pool that runs at most size of
//     them at a time on goroutines balanced by the Go scheduler.
//
// In every implementation Spawn returns immediately, job panics are caught, logged and
// counted in the kvs_threadpool_panics_total metric, and Close waits for all spawned jobs.
//
// Usage Example:
//
//	pool, err := threadpool.New(threadpool.KindSharedQueue, runtime.NumCPU())
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	pool.Spawn(func() { handle(conn) })
package threadpool
