package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T interface{}] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is an unbounded queue with lock-free producers.
// Values are pushed onto a linked list of nodes with atomic operations and a single
// internal goroutine moves them, in push order, onto the channel returned by Recv().
//
// Any number of goroutines may receive from Recv() at the same time; each value is
// delivered to exactly one receiver. The thread pools use this to let N workers share
// one job queue while Push never blocks the producer.
type LockFreeMPSC[T interface{}] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	out      chan *T
	consumer sync.WaitGroup
	closed   atomic.Bool
	pushing  atomic.Int64 // producers between the closed check and linking their node

	// mu guards the sleep/wake handshake between Push and the drain goroutine
	mu   sync.Mutex
	cond *sync.Cond
}

// NewLockFreeMPSC creates a new queue and starts its drain goroutine
func NewLockFreeMPSC[T interface{}]() *LockFreeMPSC[T] {
	// sentinel node, head always points to the last consumed node
	sentinel := &node[T]{}

	q := &LockFreeMPSC[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.drain()

	return q
}

// Push adds an item to the queue.
// Returns true if the item was added, or false if the item is nil or the queue is closed.
//
// Thread-safety: This method is thread-safe and never blocks on receivers.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil {
		return false
	}

	// registered before the closed check, drain does not exit while a push is in flight
	q.pushing.Add(1)
	defer func() {
		q.pushing.Add(-1)
		q.wake()
	}()

	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()

		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// the tail CAS may fail if another producer already helped, which is fine
				q.tail.CompareAndSwap(tailNode, newNode)
				return true
			}
		} else {
			// another producer appended but has not moved the tail yet, help it
			q.tail.CompareAndSwap(tailNode, next)
		}

		// spin a little at low contention, then yield to the scheduler
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// wake signals the drain goroutine. The signal is sent while holding mu so it can not
// slip in between the emptiness check and cond.Wait() in drain.
func (q *LockFreeMPSC[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// drain moves items from the linked list to the output channel until the queue is closed and empty
func (q *LockFreeMPSC[T]) drain() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			value := next.value
			q.head.Store(next)
			q.out <- value

			// the node is now the sentinel, drop the reference for the gc
			next.value = nil
		}

		if !hasItems {
			// the emptiness check must come last, a finished push may have linked a node
			if q.closed.Load() && q.pushing.Load() == 0 && q.head.Load().next.Load() == nil {
				return
			}

			q.mu.Lock()
			if q.head.Load().next.Load() == nil && (!q.closed.Load() || q.pushing.Load() > 0) {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the receive-only channel the queued items are delivered on.
// The channel is closed once the queue is closed and every pushed item was received.
func (q *LockFreeMPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close closes the queue, preventing further writes.
// Items already in the queue are still delivered.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// IsClosed returns true if the queue is closed.
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns an approximate count of the queued items.
// This is O(n) and should only be used for debugging.
func (q *LockFreeMPSC[T]) Len() int {
	count := 0
	current := q.head.Load()
	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}
	return count
}
