package util

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestBasicOperations tests basic push and receive functionality
func TestBasicOperations(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		if !q.Push(&i) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case val := <-q.Recv():
			if *val != i {
				t.Errorf("Expected %d, got %v", i, *val)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	select {
	case val := <-q.Recv():
		t.Errorf("Queue should be empty, but got %v", *val)
	case <-time.After(10 * time.Millisecond):
	}

	if q.Push(nil) {
		t.Errorf("Pushing nil should be rejected")
	}
}

// TestConcurrentProducers verifies that no item is lost or duplicated with many producers
func TestConcurrentProducers(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	const numProducers = 10
	const itemsPerProducer = 1000
	totalItems := numProducers * itemsPerProducer

	received := make(map[int]bool, totalItems)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for len(received) < totalItems {
			select {
			case val := <-q.Recv():
				if received[*val] {
					t.Errorf("Duplicate item received: %d", *val)
				}
				received[*val] = true
			case <-time.After(5 * time.Second):
				t.Errorf("Timeout waiting for items, received %d of %d", len(received), totalItems)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(producerID int) {
			defer wg.Done()
			base := producerID * itemsPerProducer
			for i := 0; i < itemsPerProducer; i++ {
				val := base + i
				if !q.Push(&val) {
					t.Errorf("Producer %d failed to push item %d", producerID, i)
				}
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}
	wg.Wait()
	<-done
}

// TestMultipleReceivers verifies that every item is delivered to exactly one of several receivers
func TestMultipleReceivers(t *testing.T) {
	q := NewLockFreeMPSC[int]()

	const receivers = 4
	const items = 5000

	var count atomic.Int64
	var sum atomic.Int64
	var wg sync.WaitGroup
	wg.Add(receivers)
	for r := 0; r < receivers; r++ {
		go func() {
			defer wg.Done()
			for val := range q.Recv() {
				count.Add(1)
				sum.Add(int64(*val))
			}
		}()
	}

	for i := 1; i <= items; i++ {
		q.Push(&i)
	}
	q.Close()
	wg.Wait()

	if count.Load() != items {
		t.Errorf("Expected %d items, got %d", items, count.Load())
	}
	if want := int64(items * (items + 1) / 2); sum.Load() != want {
		t.Errorf("Expected sum %d, got %d", want, sum.Load())
	}
}

// TestCloseQueue verifies closing behavior
func TestCloseQueue(t *testing.T) {
	q := NewLockFreeMPSC[int]()

	for i := 0; i < 5; i++ {
		q.Push(&i)
	}
	q.Close()

	if !q.IsClosed() {
		t.Error("Queue should report closed")
	}

	val := 100
	if q.Push(&val) {
		t.Error("Should not be able to push after queue is closed")
	}

	// items pushed before close are still delivered
	for i := 0; i < 5; i++ {
		select {
		case val := <-q.Recv():
			if *val != i {
				t.Errorf("Expected %d, got %v", i, *val)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for item %d after close", i)
		}
	}

	if _, ok := <-q.Recv(); ok {
		t.Error("Channel should be closed but is still open")
	}
}

// TestOrderingUnderLoad tests that a single producer's items arrive in order
func TestOrderingUnderLoad(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	const itemCount = 10000
	go func() {
		for i := 0; i < itemCount; i++ {
			q.Push(&i)
		}
	}()

	prev := -1
	for i := 0; i < itemCount; i++ {
		select {
		case val := <-q.Recv():
			if *val < prev {
				t.Fatalf("Item %d arrived after %d", *val, prev)
			}
			prev = *val
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}
}

// TestNoLostWakeup pushes single items with pauses so the drain goroutine goes to sleep between them
func TestNoLostWakeup(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	for i := 0; i < 200; i++ {
		q.Push(&i)
		select {
		case <-q.Recv():
		case <-time.After(time.Second):
			t.Fatalf("Item %d was never delivered", i)
		}
		if i%20 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

// TestPushRacingClose closes the queue while producers are pushing, every accepted item must still arrive
func TestPushRacingClose(t *testing.T) {
	const (
		rounds    = 200
		producers = 4
	)

	for round := 0; round < rounds; round++ {
		q := NewLockFreeMPSC[int]()
		var accepted atomic.Int64
		var wg sync.WaitGroup

		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if q.Push(&i) {
						accepted.Add(1)
					}
				}
			}()
		}

		go func() {
			runtime.Gosched()
			q.Close()
		}()

		received := int64(0)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for range q.Recv() {
				received++
			}
		}()

		wg.Wait()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("Round %d: receive channel was never closed", round)
		}

		if received != accepted.Load() {
			t.Fatalf("Round %d: %d items were accepted but %d received", round, accepted.Load(), received)
		}
	}
}

// BenchmarkMultiProducer benchmarks the queue with multiple producers
func BenchmarkMultiProducer(b *testing.B) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q.Push(&i)
			i++
		}
	})
}
