// Package dispatch runs data-parallel compute passes over index ranges.
//
// A Pool models one compute dispatch at a time: Run1D splits [0,n) into
// chunks, hands them to persistent workers, and returns only when every
// chunk has finished. That return is the barrier boundary between passes;
// the caller sequences passes, the pool never overlaps them. Within a pass
// items must be independent except for atomic operations.
package dispatch

import (
	"runtime"
	"sync"
)

// serialThreshold is the minimum item count to use the worker pool.
// Below this, single-threaded is faster due to channel overhead.
const serialThreshold = 256

// Kernel processes a single item index within a pass.
type Kernel func(i int)

type chunk struct {
	start, end int
	kernel     Kernel
}

// Pool is a fixed set of persistent workers executing one pass at a time.
type Pool struct {
	numWorkers int

	workChan chan chunk    // sends work to workers
	doneChan chan struct{} // workers signal chunk completion
	stopChan chan struct{} // signals workers to exit
	wg       sync.WaitGroup
	running  bool
}

// NewPool creates a pool with one worker per logical CPU.
// workers <= 0 means runtime.GOMAXPROCS(0).
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{numWorkers: workers}
}

// Workers returns the worker count.
func (p *Pool) Workers() int {
	return p.numWorkers
}

func (p *Pool) start() {
	if p.running {
		return
	}
	p.workChan = make(chan chunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop signals all workers to exit and waits for them.
func (p *Pool) Stop() {
	if !p.running {
		return
	}
	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case c, ok := <-p.workChan:
			if !ok {
				return
			}
			for i := c.start; i < c.end; i++ {
				c.kernel(i)
			}
			p.doneChan <- struct{}{}
		}
	}
}

// Run1D executes kernel for every index in [0,n) and returns when all
// indices have been processed. Small n runs inline on the caller.
func (p *Pool) Run1D(n int, kernel Kernel) {
	if n <= 0 {
		return
	}
	if n < serialThreshold {
		for i := 0; i < n; i++ {
			kernel(i)
		}
		return
	}

	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		p.workChan <- chunk{start: start, end: end, kernel: kernel}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
