// Package ticket limits parallelism with a ticketing system: Acquire
// blocks until fewer than N tickets are outstanding, Release returns
// one. An atomic fast path serves while tickets are available; only
// contention falls back to a sync.Cond. executor uses one TicketPool
// for its global concurrency cap and, optionally, one per
// simultaneous-jobs family.
package ticket

import (
	"math"
	"sync"
	"sync/atomic"
)

// TicketPool hands out up to n concurrent tickets.
type TicketPool struct {
	n       uint64
	active  atomic.Uint64
	waiting atomic.Uint64
	xfer    atomic.Uint64
	cond    sync.Cond
}

// NewTicketPool creates a pool allowing n concurrent tickets. n < 1 means
// unlimited-in-practice (math.MaxUint64).
func NewTicketPool(n uint64) (p *TicketPool) {
	if n < 1 {
		n = math.MaxUint64
	}
	p = &TicketPool{n: n}
	p.cond.L = &sync.Mutex{}
	return
}

// Acquire blocks until a ticket is available and returns a function that
// releases it; call the returned function exactly once.
func (p *TicketPool) Acquire() (release func()) {
	release = p.Release

	// atomic fast path
	for {
		if active := p.active.Load(); active == p.n {
			break
		} else if p.active.CompareAndSwap(active, active+1) {
			return
		}
	}

	// slow path behind the condition variable
	p.cond.L.Lock()
	defer p.cond.L.Unlock()
	var isWaiting bool
	for {
		for {
			if active := p.active.Load(); active == p.n {
				break
			} else if p.active.CompareAndSwap(active, active+1) {
				if isWaiting {
					p.waiting.Add(math.MaxUint64) // -1
				}
				return
			}
		}
		if p.xfer.Load() > 0 {
			p.xfer.Add(math.MaxUint64) // -1
			if isWaiting {
				p.waiting.Add(math.MaxUint64)
			}
			return
		}
		if !isWaiting {
			isWaiting = true
			p.waiting.Add(1)
		}
		p.cond.Wait()
	}
}

// Release returns a ticket obtained from Acquire.
func (p *TicketPool) Release() {
	for {
		if active := p.active.Load(); active == p.n {
			break
		} else if p.active.CompareAndSwap(active, active-1) {
			return
		}
	}
	p.cond.L.Lock()
	defer p.cond.L.Unlock()
	if p.waiting.Load() == 0 {
		p.active.Add(math.MaxUint64) // -1
		return
	}
	p.xfer.Add(1)
	p.cond.Signal()
}

// Status reports the pool's current occupancy.
func (p *TicketPool) Status() (capacity, active, waiting uint64) {
	return p.n, p.active.Load(), p.waiting.Load()
}

// TryAcquire obtains a ticket only if one is immediately available
// without blocking, used for the non-blocking simultaneous_jobs gate
// check in the executor's ready-queue scan.
func (p *TicketPool) TryAcquire() (release func(), ok bool) {
	for {
		active := p.active.Load()
		if active == p.n {
			return nil, false
		}
		if p.active.CompareAndSwap(active, active+1) {
			return p.Release, true
		}
	}
}
