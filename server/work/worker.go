package work

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Daskott/luna/colors"
	"github.com/Daskott/luna/server/logger"
	"github.com/google/uuid"
)

var (
	ErrDuplicateHandler = errors.New("handler with provided name already mapped")
	ErrUnknownHandler   = errors.New("no handler mapped for job")
	ErrQueueFull        = errors.New("job queue is full")

	logg = logger.NewLogger()
)

type JobParams struct {
	Name    string
	Handler string
	Args    map[string]interface{}
}

type Handler func(map[string]interface{}) error

type worker struct {
	id       string
	pool     *WorkerPool
	stopChan chan struct{}
}

func newWorker(pool *WorkerPool) *worker {
	return &worker{
		id:       makeIdentifier(),
		pool:     pool,
		stopChan: make(chan struct{}),
	}
}

// start starts the worker loop that pulls jobs from the pool's queue & process them
func (w *worker) start() {
	go w.loop()
}

func (w *worker) stop() {
	w.stopChan <- struct{}{}
}

func (w *worker) loop() {
	w.logInfof("starting")
	for {
		select {
		case <-w.stopChan:
			w.logInfof("stopping")
			return
		case job := <-w.pool.jobs:
			w.processJob(job)
		}
	}
}

// processJob runs a single job. A failing or panicking handler is logged & dropped.
func (w *worker) processJob(job JobParams) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.logError(fmt.Sprintf("job %v panicked: %v", job.Name, r))
		}
	}()

	handler, ok := w.pool.handler(job.Handler)
	if !ok {
		w.logError(fmt.Errorf("%w: %v", ErrUnknownHandler, job.Handler))
		return
	}

	if err := handler(job.Args); err != nil {
		w.logError(fmt.Errorf("job %v failed: %w", job.Name, err))
		return
	}

	w.logInfof("job %v completed in %v", job.Name, time.Since(start))
}

func (w *worker) logInfof(template string, args ...interface{}) {
	prefix := colors.Yellow(fmt.Sprintf("[worker %v] ", w.id))
	logg.Infof(prefix+template, args...)
}

func (w *worker) logError(args ...interface{}) {
	prefix := colors.Red(fmt.Sprintf("[worker %v] ", w.id))
	logg.Error(append([]interface{}{prefix}, args...)...)
}

func makeIdentifier() string {
	return strings.Split(uuid.NewString(), "-")[0]
}
