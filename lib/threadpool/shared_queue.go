package threadpool

import (
	"sync"

	"github.com/ValentinKolb/kvs/lib/util"
)

// sharedQueueThreadPool runs a fixed number of workers that all receive from one job queue.
// A worker whose job panics exits and a fresh worker takes its place, so the number of
// workers stays constant.
type sharedQueueThreadPool struct {
	queue *util.LockFreeMPSC[func()]
	wg    sync.WaitGroup
}

// NewSharedQueueThreadPool creates a pool with size workers sharing one unbounded queue
func NewSharedQueueThreadPool(size int) (IThreadPool, error) {
	if size < 1 {
		return nil, ErrInvalidSize
	}

	p := &sharedQueueThreadPool{
		queue: util.NewLockFreeMPSC[func()](),
	}
	for i := 0; i < size; i++ {
		p.startWorker()
	}
	return p, nil
}

func (p *sharedQueueThreadPool) startWorker() {
	p.wg.Add(1)
	go p.work()
}

func (p *sharedQueueThreadPool) work() {
	defer p.wg.Done()
	for job := range p.queue.Recv() {
		if runJob(*job) {
			// replace this worker, Add happens before Done so Close can not miss it
			Logger.Warningf("replacing worker after a panicking job")
			p.startWorker()
			return
		}
	}
}

func (p *sharedQueueThreadPool) Spawn(job func()) {
	if !p.queue.Push(&job) {
		Logger.Warningf("job spawned on a closed thread pool was dropped")
	}
}

func (p *sharedQueueThreadPool) Close() {
	p.queue.Close()
	p.wg.Wait()
}
