package work

import (
	"fmt"
	"strings"
	"sync"
)

// WorkerPool runs named jobs on a fixed number of workers fed by a bounded queue.
type WorkerPool struct {
	mu          sync.RWMutex
	handlers    map[string]Handler
	jobs        chan JobParams
	workers     []*worker
	concurrency int
	started     bool
}

func NewWorkerPool(concurrency, queueSize int) *WorkerPool {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	wp := &WorkerPool{
		handlers:    make(map[string]Handler),
		jobs:        make(chan JobParams, queueSize),
		concurrency: concurrency,
	}

	for i := 0; i < concurrency; i++ {
		wp.workers = append(wp.workers, newWorker(wp))
	}

	return wp
}

// registerHandler binds a name to a job handler for all workers in pool
func (wp *WorkerPool) registerHandler(name string, handler Handler) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if _, ok := wp.handlers[name]; ok {
		return ErrDuplicateHandler
	}
	wp.handlers[name] = handler

	return nil
}

func (wp *WorkerPool) handler(name string) (Handler, bool) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	handler, ok := wp.handlers[name]
	return handler, ok
}

// enqueue adds a job to the queue without blocking.
func (wp *WorkerPool) enqueue(job JobParams) error {
	if strings.TrimSpace(job.Name) == "" || strings.TrimSpace(job.Handler) == "" {
		return fmt.Errorf("both a name & handler is required for a job")
	}

	if _, ok := wp.handler(job.Handler); !ok {
		return fmt.Errorf("%w: %v", ErrUnknownHandler, job.Handler)
	}

	select {
	case wp.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// start starts all workers in pool i.e the workers can start processing jobs
func (wp *WorkerPool) start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return
	}
	wp.started = true

	for _, worker := range wp.workers {
		worker.start()
	}
}

// stop stops all workers in pool i.e jobs will stop being processed
func (wp *WorkerPool) stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.started {
		return
	}

	wg := sync.WaitGroup{}
	for _, w := range wp.workers {
		wg.Add(1)
		go func(w *worker) {
			w.stop()
			wg.Done()
		}(w)
	}
	wg.Wait()
	wp.started = false
}
