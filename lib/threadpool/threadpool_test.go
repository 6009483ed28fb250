package threadpool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var kinds = []Kind{KindNaive, KindSharedQueue, KindWorkStealing}

func TestRunsEveryJobOnce(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			pool, err := New(kind, 4)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			var runs [100]atomic.Int32
			for i := 0; i < len(runs); i++ {
				i := i
				pool.Spawn(func() {
					runs[i].Add(1)
				})
			}
			pool.Close()

			for i := range runs {
				if n := runs[i].Load(); n != 1 {
					t.Errorf("Job %d ran %d times", i, n)
				}
			}
		})
	}
}

func TestPanickingJob(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			pool, err := New(kind, 4)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			var completed atomic.Int32
			for i := 0; i < 100; i++ {
				if i == 42 {
					pool.Spawn(func() {
						panic("job failed")
					})
					continue
				}
				pool.Spawn(func() {
					completed.Add(1)
				})
			}
			pool.Close()

			if n := completed.Load(); n != 99 {
				t.Errorf("Expected 99 completed jobs, got %d", n)
			}
		})
	}
}

// every worker panics once, the pool must still run the following jobs
func TestSharedQueueReplacesWorkers(t *testing.T) {
	size := 4
	pool, err := NewSharedQueueThreadPool(size)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 0; i < size*3; i++ {
		pool.Spawn(func() {
			panic("job failed")
		})
	}

	var completed atomic.Int32
	for i := 0; i < 50; i++ {
		pool.Spawn(func() {
			completed.Add(1)
		})
	}
	pool.Close()

	if n := completed.Load(); n != 50 {
		t.Errorf("Expected 50 completed jobs, got %d", n)
	}
}

func TestInvalidSize(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			if _, err := New(kind, 0); !errors.Is(err, ErrInvalidSize) {
				t.Errorf("Expected ErrInvalidSize, got %v", err)
			}
		})
	}
}

// Spawn must return while every thread is busy
func TestSpawnDoesNotBlock(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			pool, err := New(kind, 1)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			release := make(chan struct{})
			var wg sync.WaitGroup
			wg.Add(10)

			done := make(chan struct{})
			go func() {
				for i := 0; i < 10; i++ {
					pool.Spawn(func() {
						defer wg.Done()
						<-release
					})
				}
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatalf("Spawn blocked while the pool was busy")
			}

			close(release)
			wg.Wait()
			pool.Close()
		})
	}
}

func TestBoundedConcurrency(t *testing.T) {
	for _, kind := range []Kind{KindSharedQueue, KindWorkStealing} {
		t.Run(string(kind), func(t *testing.T) {
			size := 3
			pool, err := New(kind, size)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			var running, maxRunning atomic.Int32
			for i := 0; i < 50; i++ {
				pool.Spawn(func() {
					n := running.Add(1)
					for {
						m := maxRunning.Load()
						if n <= m || maxRunning.CompareAndSwap(m, n) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					running.Add(-1)
				})
			}
			pool.Close()

			if m := maxRunning.Load(); m > int32(size) {
				t.Errorf("Expected at most %d concurrent jobs, got %d", size, m)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, kind := range kinds {
		if parsed, err := ParseKind(string(kind)); err != nil || parsed != kind {
			t.Errorf("ParseKind(%q) = %q, %v", kind, parsed, err)
		}
	}
	if _, err := ParseKind("rayon"); err == nil {
		t.Errorf("Expected an error for an unknown pool")
	}
}
