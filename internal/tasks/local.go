package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/payment-orchestrator/pkg/logger"
	"github.com/frahmantamala/payment-orchestrator/pkg/metrics"
)

var ErrQueueFull = errors.New("task queue full")

var ErrDispatcherClosed = errors.New("task dispatcher closed")

type Worker struct {
	ID         int
	WorkerPool chan chan Task
	JobChannel chan Task
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Task, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Task),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Task)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case task := <-w.JobChannel:
				w.Logger.Debug("worker processing task", "worker_id", w.ID, "task_id", task.ID, "task_type", task.Type)
				processFunc(task)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type LocalConfig struct {
	MaxWorkers     int
	JobQueueSize   int
	WorkerPoolSize int
	MaxAttempts    int
	RetryBackoff   time.Duration
}

// LocalDispatcher runs tasks on an in-process worker pool. Delayed tasks wait on timers.
type LocalDispatcher struct {
	router  *Router
	retrier Retrier
	logger  *slog.Logger

	jobQueue   chan Task
	workerPool chan chan Task
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

func NewLocalDispatcher(config LocalConfig, router *Router, logger *slog.Logger) *LocalDispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	workerPoolSize := config.WorkerPoolSize
	if workerPoolSize <= 0 {
		workerPoolSize = maxWorkers
	}

	d := &LocalDispatcher{
		router:  router,
		retrier: Retrier{MaxAttempts: config.MaxAttempts, Backoff: config.RetryBackoff},
		logger:  logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan Task, jobQueueSize),
		workerPool: make(chan chan Task, workerPoolSize),
		ctx:        ctx,
		cancel:     cancel,
		timers:     make(map[string]*time.Timer),
	}

	d.start()

	return d
}

func (d *LocalDispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			worker := NewWorker(i, d.workerPool, d.logger)
			worker.Start(d.ctx, &d.wg, d.process)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("task worker pool started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue))
	})
}

func (d *LocalDispatcher) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case task := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- task:
				case <-d.ctx.Done():
					d.logger.Info("dispatcher shutting down")
					return
				}
			case <-d.ctx.Done():
				d.logger.Info("dispatcher shutting down")
				return
			}
		case <-d.ctx.Done():
			d.logger.Info("dispatcher shutting down")
			return
		}
	}
}

func (d *LocalDispatcher) Enqueue(ctx context.Context, task Task) error {
	err := d.enqueue(ctx, task)
	metrics.TasksEnqueued.WithLabelValues(string(task.Type), metrics.Result(err)).Inc()
	return err
}

func (d *LocalDispatcher) enqueue(ctx context.Context, task Task) error {
	if d.ctx.Err() != nil {
		return ErrDispatcherClosed
	}

	delay := time.Until(task.Due(time.Now()))
	if delay > 0 {
		d.schedule(task, delay)
		logger.From(ctx).Debug("task scheduled", "task_id", task.ID, "task_type", task.Type, "delay", delay)
		return nil
	}

	select {
	case d.jobQueue <- task:
		return nil
	default:
		logger.From(ctx).Warn("task queue full, rejecting task",
			"task_id", task.ID,
			"task_type", task.Type,
			"queue_capacity", cap(d.jobQueue))
		return ErrQueueFull
	}
}

func (d *LocalDispatcher) schedule(task Task, delay time.Duration) {
	task.Delay = 0
	task.NotBefore = time.Time{}

	d.timersMu.Lock()
	defer d.timersMu.Unlock()

	d.timers[task.ID] = time.AfterFunc(delay, func() {
		d.timersMu.Lock()
		delete(d.timers, task.ID)
		d.timersMu.Unlock()

		if err := d.enqueue(d.ctx, task); err != nil {
			d.logger.Error("failed to enqueue delayed task", "task_id", task.ID, "task_type", task.Type, "error", err)
		}
	})
}

func (d *LocalDispatcher) process(task Task) {
	err := d.router.Handle(d.ctx, task)
	metrics.TasksHandled.WithLabelValues(string(task.Type), metrics.Result(err)).Inc()
	if err == nil {
		return
	}

	next, ok := d.retrier.Next(task)
	if !ok || IsPermanent(err) {
		d.logger.Error("task failed, giving up",
			"task_id", task.ID,
			"task_type", task.Type,
			"attempts", task.Attempt+1,
			"error", err)
		return
	}
	if err := d.enqueue(d.ctx, next); err != nil {
		d.logger.Error("failed to re-enqueue task", "task_id", task.ID, "error", err)
	}
}

// Pending reports how many delayed tasks are waiting on timers.
func (d *LocalDispatcher) Pending() int {
	d.timersMu.Lock()
	defer d.timersMu.Unlock()
	return len(d.timers)
}

func (d *LocalDispatcher) Shutdown() {
	d.logger.Info("shutting down task dispatcher")

	d.timersMu.Lock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
	d.timersMu.Unlock()

	d.cancel()
	d.wg.Wait()
	d.logger.Info("task dispatcher shutdown complete")
}
