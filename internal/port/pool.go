package port

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool is a per-process pool of reply ports, used by any caller making a
// request/response call: acquire a reply port, embed its name in the
// request, block reading the reply, then return the port to the pool.
// The pool grows on demand but never shrinks below its high water mark.
//
// Growth is guarded by a plain mutex in the uncontended case. Once more
// goroutines are trying to grow the pool than there are schedulable Ps,
// further growers queue on a weighted semaphore instead of busy-waiting
// on the mutex — the pool "degrades to a semaphore on contention" the
// spec calls for.
type Pool struct {
	mu       sync.Mutex
	free     []*Port
	highWater int
	capacity  int

	growers int64
	sem     *semaphore.Weighted
	semOnce sync.Once

	counter uint64
}

// NewPool creates an empty reply-port pool. capacity is the queue depth
// of each reply port (a reply is always a single envelope, so a small
// capacity is plenty; 4 matches the teacher's default burst sizing).
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = 4
	}
	return &Pool{capacity: capacity}
}

func (p *Pool) semaphoreOnContention() *semaphore.Weighted {
	p.semOnce.Do(func() {
		n := int64(runtime.GOMAXPROCS(0))
		if n < 1 {
			n = 1
		}
		p.sem = semaphore.NewWeighted(n)
	})
	return p.sem
}

// Acquire returns a reply port from the pool, creating one if the pool
// is empty. The returned port must be passed to Release when the caller
// is done reading its reply.
func (p *Pool) Acquire(ctx context.Context) (*Port, error) {
	n := atomic.AddInt64(&p.growers, 1)
	defer atomic.AddInt64(&p.growers, -1)

	contended := n > int64(runtime.GOMAXPROCS(0))
	if contended {
		sem := p.semaphoreOnContention()
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer sem.Release(1)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) > 0 {
		last := len(p.free) - 1
		rp := p.free[last]
		p.free = p.free[:last]
		return rp, nil
	}
	p.counter++
	name := fmt.Sprintf("reply-%d", p.counter)
	rp := New(name, p.capacity)
	p.highWater++
	return rp, nil
}

// Release returns rp to the pool for reuse. The pool never shrinks below
// its high water mark, so Release always succeeds by appending rp back
// to the free list (a released port is drained first so a stale reply
// can't leak into the next caller).
func (p *Pool) Release(rp *Port) {
	if rp == nil {
		return
	}
	drain(rp)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, rp)
}

func drain(rp *Port) {
	for {
		select {
		case <-rp.ch:
		default:
			return
		}
	}
}

// HighWater reports the largest number of reply ports ever live
// simultaneously, for metrics/diagnostics.
func (p *Pool) HighWater() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.highWater
}
