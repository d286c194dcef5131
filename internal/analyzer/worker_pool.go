package analyzer

import (
	"runtime"
	"sync"
)

// WorkerPool runs block-row scans on a fixed set of goroutines.
// It is shared by every live session, so callers wait on their own batch with
// RunAll rather than on the pool as a whole.
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	once     sync.Once

	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Workers returns the number of goroutines in the pool
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Start initializes and starts all workers in the pool
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

// worker processes jobs from the job queue
func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		job()
		wp.wg.Done()
	}
}

// Submit adds a job to the worker pool queue. After Close the job runs on the
// caller's goroutine instead.
func (wp *WorkerPool) Submit(job func()) {
	wp.mu.RLock()
	if wp.stopped {
		wp.mu.RUnlock()
		job()
		return
	}
	wp.wg.Add(1)
	wp.jobQueue <- job
	wp.mu.RUnlock()
}

// RunAll submits jobs and blocks until every one of them has finished
func (wp *WorkerPool) RunAll(jobs []func()) {
	var batch sync.WaitGroup
	batch.Add(len(jobs))
	for _, job := range jobs {
		job := job
		wp.Submit(func() {
			defer batch.Done()
			job()
		})
	}
	batch.Wait()
}

// Wait waits for all submitted jobs to complete
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Close shuts down the worker pool. It is safe to call more than once.
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
}
