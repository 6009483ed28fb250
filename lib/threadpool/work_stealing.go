package threadpool

import (
	"github.com/ValentinKolb/kvs/lib/util"
	"github.com/sourcegraph/conc/pool"
)

// workStealingThreadPool hands jobs to a conc pool limited to size goroutines.
// The goroutines are scheduled by the Go runtime, whose scheduler balances runnable
// goroutines between processors by work stealing. A dispatcher goroutine moves jobs
// from an unbounded queue into the pool so Spawn never blocks while all goroutines are busy.
type workStealingThreadPool struct {
	queue      *util.LockFreeMPSC[func()]
	pool       *pool.Pool
	dispatched chan struct{}
}

// NewWorkStealingThreadPool creates a pool running at most size jobs at a time
func NewWorkStealingThreadPool(size int) (IThreadPool, error) {
	if size < 1 {
		return nil, ErrInvalidSize
	}

	p := &workStealingThreadPool{
		queue:      util.NewLockFreeMPSC[func()](),
		pool:       pool.New().WithMaxGoroutines(size),
		dispatched: make(chan struct{}),
	}
	go p.dispatch()
	return p, nil
}

// dispatch blocks in pool.Go while all goroutines are busy
func (p *workStealingThreadPool) dispatch() {
	defer close(p.dispatched)
	for job := range p.queue.Recv() {
		job := *job
		p.pool.Go(func() {
			runJob(job)
		})
	}
}

func (p *workStealingThreadPool) Spawn(job func()) {
	if !p.queue.Push(&job) {
		Logger.Warningf("job spawned on a closed thread pool was dropped")
	}
}

func (p *workStealingThreadPool) Close() {
	p.queue.Close()
	<-p.dispatched
	p.pool.Wait()
}
