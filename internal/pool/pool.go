// Package pool manages the worker fleet and the per-worker dispatch loops.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/pagesnap/internal/browser"
	"github.com/JakeFAU/pagesnap/internal/capture"
	"github.com/JakeFAU/pagesnap/internal/metrics"
	"github.com/JakeFAU/pagesnap/internal/queue"
	"github.com/JakeFAU/pagesnap/internal/worker"
)

// BrowserEndpoint describes one remote browser the pool binds a worker to.
type BrowserEndpoint struct {
	Endpoint string
	SlowMo   time.Duration
}

// Config controls dispatch behavior.
type Config struct {
	Browsers            []BrowserEndpoint
	MaxRetries          int
	QueuePollInterval   time.Duration
	RejectDuplicateURLs bool
}

// Status is the aggregate snapshot served to status queries.
type Status struct {
	Queue          capture.QueueSnapshot
	HealthyWorkers int
	TotalWorkers   int
	Running        bool
	Workers        []worker.Info
}

// Pool owns the task queue and all workers. One dispatch loop runs per
// healthy worker; each worker is strictly single-flight.
type Pool struct {
	cfg     Config
	queue   *queue.Queue
	workers []*worker.Worker
	running atomic.Bool
	started atomic.Bool
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// New builds one worker per configured browser endpoint and connects them
// in parallel. Initialization fails only when zero workers come up;
// workers that could not connect stay in the error state and are never
// dispatched to.
func New(ctx context.Context, cfg Config, gateway browser.Gateway, capturer worker.Capturer, clock capture.Clock, logger *zap.Logger) (*Pool, error) {
	if len(cfg.Browsers) == 0 {
		return nil, errors.New("no browser endpoints configured")
	}

	workers := make([]*worker.Worker, 0, len(cfg.Browsers))
	for i, b := range cfg.Browsers {
		id := fmt.Sprintf("worker-%d", i+1)
		workers = append(workers, worker.New(id, b.Endpoint, b.SlowMo, gateway, capturer, clock, logger))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		g.Go(func() error {
			if err := w.Connect(gctx); err != nil {
				logger.Warn("worker failed to connect", zap.String("worker_id", w.ID()), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	p := &Pool{
		cfg:     cfg,
		queue:   queue.New(),
		workers: workers,
		logger:  logger,
	}
	healthy := p.HealthyWorkerCount()
	if healthy == 0 {
		return nil, errors.New("no workers could connect to a browser")
	}
	logger.Info("worker pool initialized",
		zap.Int("healthy_workers", healthy),
		zap.Int("total_workers", len(workers)),
	)
	metrics.SetHealthyWorkers(healthy)
	return p, nil
}

// Start spawns one dispatch loop per currently-healthy worker. Idempotent
// against repeated calls.
func (p *Pool) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.running.Store(true)
	for _, w := range p.workers {
		if !w.Healthy() {
			continue
		}
		p.wg.Add(1)
		go p.dispatch(w)
	}
	p.logger.Info("worker pool started")
}

// dispatch pulls tasks for one worker until the pool stops or the worker
// becomes unhealthy. An unhealthy worker is not restarted within process
// lifetime.
func (p *Pool) dispatch(w *worker.Worker) {
	defer p.wg.Done()
	log := p.logger.With(zap.String("worker_id", w.ID()))
	for p.running.Load() && w.Healthy() {
		task, ok := p.queue.Dequeue()
		if !ok {
			time.Sleep(p.cfg.QueuePollInterval)
			continue
		}

		result := w.Process(context.Background(), task)
		metrics.ObserveCapture(string(result.Status), time.Duration(result.ProcessingTimeMs)*time.Millisecond)

		if result.Status != capture.StatusSuccess && task.RetryCount < p.cfg.MaxRetries {
			p.queue.Requeue(task)
			metrics.ObserveRetry()
			log.Warn("capture failed, requeued",
				zap.String("task_id", task.ID),
				zap.String("url", task.URL),
				zap.String("status", string(result.Status)),
				zap.Int("retry_count", task.RetryCount+1),
			)
		} else {
			p.queue.MarkComplete(task.ID)
			if result.Status == capture.StatusSuccess {
				log.Info("capture completed",
					zap.String("task_id", task.ID),
					zap.String("url", task.URL),
					zap.Int64("duration_ms", result.ProcessingTimeMs),
				)
			} else {
				log.Warn("capture terminal failure",
					zap.String("task_id", task.ID),
					zap.String("url", task.URL),
					zap.String("status", string(result.Status)),
					zap.Int("attempts", task.RetryCount+1),
				)
			}
		}
		p.observeState()

		if !w.Healthy() {
			log.Warn("worker unhealthy, stopping its dispatch loop")
			break
		}
	}
	p.observeState()
}

// Enqueue admits a validated task into the queue, enforcing the optional
// duplicate-URL policy.
func (p *Pool) Enqueue(task capture.Task) error {
	if p.cfg.RejectDuplicateURLs {
		if !p.queue.EnqueueUnique(task) {
			return fmt.Errorf("URL already in queue: %s", task.URL)
		}
	} else {
		p.queue.Enqueue(task)
	}
	p.observeState()
	return nil
}

// Running reports whether dispatch loops are allowed to keep pulling.
func (p *Pool) Running() bool {
	return p.running.Load()
}

// HealthyWorkerCount counts workers currently idle or busy.
func (p *Pool) HealthyWorkerCount() int {
	n := 0
	for _, w := range p.workers {
		if w.Healthy() {
			n++
		}
	}
	return n
}

// Status aggregates the queue snapshot and every worker's info. Worker
// info is copied by value so callers cannot mutate internal state. Each
// worker's info, the queue snapshot and the healthy count are read one
// after another under their own locks, so the parts are not taken at a
// single instant and may disagree while dispatch loops are running.
func (p *Pool) Status() Status {
	infos := make([]worker.Info, 0, len(p.workers))
	for _, w := range p.workers {
		infos = append(infos, w.Info())
	}
	return Status{
		Queue:          p.queue.Snapshot(),
		HealthyWorkers: p.HealthyWorkerCount(),
		TotalWorkers:   len(p.workers),
		Running:        p.running.Load(),
		Workers:        infos,
	}
}

// Shutdown stops dispatch, waits for in-flight captures to finish, then
// disconnects all workers in parallel. Safe to call once.
func (p *Pool) Shutdown() {
	p.running.Store(false)
	p.wg.Wait()

	var g errgroup.Group
	for _, w := range p.workers {
		g.Go(func() error {
			w.Disconnect()
			return nil
		})
	}
	_ = g.Wait()
	p.logger.Info("worker pool shut down")
}

func (p *Pool) observeState() {
	snap := p.queue.Snapshot()
	metrics.SetQueueTasks(snap.Pending, snap.Processing, snap.Completed)
	metrics.SetHealthyWorkers(p.HealthyWorkerCount())
}
