package threadpool

import (
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sourcegraph/conc/panics"
)

var Logger = logger.GetLogger("threadpool")

var panicsTotal = metrics.NewCounter("kvs_threadpool_panics_total")

// ErrInvalidSize is returned when a pool is created without any threads
var ErrInvalidSize = errors.New("thread pool size must be at least 1")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IThreadPool runs jobs on a bounded set of goroutines.
type IThreadPool interface {
	// Spawn schedules a job. It never blocks the caller and never fails:
	// a job that panics is logged and does not affect the pool or the other jobs.
	// Jobs spawned after Close may be dropped.
	Spawn(job func())
	// Close stops accepting jobs and waits until every spawned job has finished.
	Close()
}

// Kind names a thread pool implementation
type Kind string

const (
	KindNaive        Kind = "naive"
	KindSharedQueue  Kind = "shared-queue"
	KindWorkStealing Kind = "work-stealing"
)

// ParseKind converts a pool name (e.g. from the command line) to a Kind
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case KindNaive, KindSharedQueue, KindWorkStealing:
		return Kind(name), nil
	default:
		return "", fmt.Errorf("unknown thread pool %q (expected %s, %s or %s)", name, KindNaive, KindSharedQueue, KindWorkStealing)
	}
}

// New creates a thread pool of the given kind with size threads
func New(kind Kind, size int) (IThreadPool, error) {
	switch kind {
	case KindNaive:
		return NewNaiveThreadPool(size)
	case KindSharedQueue:
		return NewSharedQueueThreadPool(size)
	case KindWorkStealing:
		return NewWorkStealingThreadPool(size)
	default:
		return nil, fmt.Errorf("unknown thread pool %q", kind)
	}
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// runJob runs a job and reports whether it panicked.
// The panic is logged with its stack trace and counted.
func runJob(job func()) (panicked bool) {
	var pc panics.Catcher
	pc.Try(job)
	if r := pc.Recovered(); r != nil {
		panicsTotal.Inc()
		Logger.Errorf("job panicked: %v\n%s", r.Value, r.Stack)
		return true
	}
	return false
}
