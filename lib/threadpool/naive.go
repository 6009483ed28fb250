package threadpool

import (
	"sync"
)

// naiveThreadPool starts a new goroutine for every job.
// The size is validated but otherwise unused, the Go runtime does the scheduling.
type naiveThreadPool struct {
	wg sync.WaitGroup
}

// NewNaiveThreadPool creates a pool that runs every job on its own goroutine
func NewNaiveThreadPool(size int) (IThreadPool, error) {
	if size < 1 {
		return nil, ErrInvalidSize
	}
	return &naiveThreadPool{}, nil
}

func (p *naiveThreadPool) Spawn(job func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		runJob(job)
	}()
}

func (p *naiveThreadPool) Close() {
	p.wg.Wait()
}
