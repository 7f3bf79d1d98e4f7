package simulation

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Executor runs fn over disjoint contiguous ranges covering [0, n) and returns
// once every range is done. Each call is a barrier.
type Executor interface {
	Run(n int, fn func(from, to int))
	// Workers is the number of goroutines that may run ranges concurrently.
	Workers() int
	Close()
}

// defaultWorkers leaves one core to the calling goroutine.
func defaultWorkers() int {
	if n := runtime.NumCPU() - 1; n > 0 {
		return n
	}
	return 1
}

func newExecutor(opts Options) Executor {
	switch opts.Strategy {
	case StrategySerial:
		return SerialExecutor{}
	case StrategyTasks:
		return NewTaskExecutor(opts.Workers, opts.BatchSize)
	default:
		return NewPoolExecutor(opts.Workers, opts.MinJobSize)
	}
}

// orDefault returns v, or def when v is not positive.
func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SerialExecutor runs everything on the calling goroutine.
type SerialExecutor struct{}

func (SerialExecutor) Run(n int, fn func(from, to int)) {
	if n > 0 {
		fn(0, n)
	}
}

func (SerialExecutor) Workers() int { return 1 }

func (SerialExecutor) Close() {}

type poolJob struct {
	fn       func(from, to int)
	from, to int
	wg       *sync.WaitGroup
}

// PoolExecutor keeps a fixed set of worker goroutines alive for the whole run.
// The calling goroutine processes the first chunk itself.
type PoolExecutor struct {
	workers    int
	minJobSize int
	jobs       chan poolJob
	done       sync.WaitGroup
	closeOnce  sync.Once
}

// NewPoolExecutor starts the workers. Non-positive arguments select the
// defaults: NumCPU-1 workers and chunks of at least 50 agents.
func NewPoolExecutor(workers, minJobSize int) *PoolExecutor {
	workers = orDefault(workers, defaultWorkers())
	minJobSize = orDefault(minJobSize, defaultMinJobSize)
	p := &PoolExecutor{
		workers:    workers,
		minJobSize: minJobSize,
		jobs:       make(chan poolJob, workers),
	}
	p.done.Add(workers)
	for w := 0; w < workers; w++ {
		go p.loop()
	}
	return p
}

func (p *PoolExecutor) loop() {
	defer p.done.Done()
	for job := range p.jobs {
		job.fn(job.from, job.to)
		job.wg.Done()
	}
}

// chunks returns how many ranges n agents are split into.
func (p *PoolExecutor) chunks(n int) int {
	if n < 2*p.minJobSize {
		return 1
	}
	c := n / p.minJobSize
	if limit := p.workers + 1; c > limit {
		c = limit
	}
	return c
}

func (p *PoolExecutor) Run(n int, fn func(from, to int)) {
	if n <= 0 {
		return
	}
	chunks := p.chunks(n)
	if chunks == 1 {
		fn(0, n)
		return
	}
	size := (n + chunks - 1) / chunks

	var wg sync.WaitGroup
	for start := size; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		wg.Add(1)
		p.jobs <- poolJob{fn: fn, from: start, to: end, wg: &wg}
	}
	fn(0, min(size, n))
	wg.Wait()
}

func (p *PoolExecutor) Workers() int { return p.workers + 1 }

// Close stops the workers. Run must not be called afterwards.
func (p *PoolExecutor) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
		p.done.Wait()
	})
}

// TaskExecutor schedules fixed-size batches as errgroup tasks, at most
// workers of them at a time.
type TaskExecutor struct {
	workers   int
	batchSize int
}

// NewTaskExecutor uses the same defaults as NewPoolExecutor for non-positive
// workers, and batches of 64 agents for a non-positive batchSize.
func NewTaskExecutor(workers, batchSize int) *TaskExecutor {
	workers = orDefault(workers, defaultWorkers())
	batchSize = orDefault(batchSize, defaultBatchSize)
	return &TaskExecutor{workers: workers, batchSize: batchSize}
}

func (t *TaskExecutor) Run(n int, fn func(from, to int)) {
	if n <= 0 {
		return
	}
	if n <= t.batchSize {
		fn(0, n)
		return
	}
	var g errgroup.Group
	g.SetLimit(t.workers)
	for start := 0; start < n; start += t.batchSize {
		from, to := start, min(start+t.batchSize, n)
		g.Go(func() error {
			fn(from, to)
			return nil
		})
	}
	_ = g.Wait() // tasks never fail
}

func (t *TaskExecutor) Workers() int { return t.workers }

func (t *TaskExecutor) Close() {}
