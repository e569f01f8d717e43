package parallel

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/logging"
)

// inboxSize bounds the number of units queued on a single worker. The
// orchestrator sends one unit per worker per merge, so dispatch never waits.
const inboxSize = 16

type job struct {
	ctx   context.Context
	unit  WorkUnit
	reply chan WorkResult
}

type worker struct {
	id    int
	inbox chan job
	quit  chan struct{}
	done  chan struct{}
}

// Pool is a fixed-size set of goroutine workers.
type Pool struct {
	task   Task
	logger logging.Logger

	mu      sync.RWMutex
	workers []*worker
	errs    ErrorCollector
}

// NewPool creates an empty pool that runs task on every unit. Call
// Initialize before dispatching.
func NewPool(task Task, logger logging.Logger) *Pool {
	if task == nil {
		task = PassThrough{}
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Pool{task: task, logger: logger}
}

// Initialize terminates any running workers and spawns size new ones.
func (p *Pool) Initialize(size int) error {
	if size <= 0 {
		return apperrors.NewConfigError("worker pool size must be positive, got %d", size)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.errs.Reset()
	p.workers = make([]*worker, size)
	for i := range p.workers {
		w := &worker{
			id:    i,
			inbox: make(chan job, inboxSize),
			quit:  make(chan struct{}),
			done:  make(chan struct{}),
		}
		p.workers[i] = w
		go p.run(w)
	}
	p.logger.Debug("worker pool initialized", logging.Int("workers", size))
	return nil
}

// Shutdown terminates all workers. Units still queued are answered with an
// error. The pool can be re-initialized afterwards.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Pool) stopLocked() {
	for _, w := range p.workers {
		close(w.quit)
	}
	for _, w := range p.workers {
		<-w.done
	}
	p.workers = nil
}

// Size returns the number of live workers.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// Err returns the first pool-level failure (a task panic) since the last
// Initialize. A non-nil value means the pool should be re-initialized.
func (p *Pool) Err() error { return p.errs.Err() }

// Dispatch sends unit to the worker with the given id and returns a future
// that receives exactly one result. It does not wait for the unit to be
// processed. Dispatching to a worker that is not running resolves the future
// immediately with an error.
func (p *Pool) Dispatch(ctx context.Context, workerID int, unit WorkUnit) <-chan WorkResult {
	reply := make(chan WorkResult, 1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if workerID < 0 || workerID >= len(p.workers) {
		reply <- WorkResult{Index: unit.Index, Err: fmt.Errorf("worker %d is not running", workerID)}
		return reply
	}
	select {
	case p.workers[workerID].inbox <- job{ctx: ctx, unit: unit, reply: reply}:
	case <-ctx.Done():
		reply <- WorkResult{Index: unit.Index, Err: ctx.Err()}
	}
	return reply
}

func (p *Pool) run(w *worker) {
	defer close(w.done)
	for {
		select {
		case j := <-w.inbox:
			j.reply <- p.process(w, j)
		case <-w.quit:
			for {
				select {
				case j := <-w.inbox:
					j.reply <- WorkResult{Index: j.unit.Index, Err: fmt.Errorf("worker %d shut down", w.id)}
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) process(w *worker, j job) (res WorkResult) {
	res.Index = j.unit.Index
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker %d panicked: %v", w.id, r)
			p.errs.SetError(err)
			p.logger.Error("worker error", err, logging.Int("worker", w.id), logging.Int("index", j.unit.Index))
			res = WorkResult{Index: j.unit.Index, Err: err}
		}
	}()

	if err := j.ctx.Err(); err != nil {
		return WorkResult{Index: j.unit.Index, Err: err}
	}
	buf, err := p.task.Process(j.ctx, j.unit)
	if err != nil {
		return WorkResult{Index: j.unit.Index, Err: err}
	}
	res.Buffer = buf
	return res
}
