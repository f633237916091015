package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
)

// Deliverer sends one claimed cascade job to its target.
type Deliverer interface {
	Deliver(ctx context.Context, job *models.CascadeJob) error
}

// Worker polls for due customer_api cascade jobs and delivers them.
type Worker struct {
	jobRepo      repository.CascadeJobRepository
	deliverer    Deliverer
	pollInterval time.Duration
	staleAfter   time.Duration
	concurrency  int
	now          func() time.Time
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	logger       *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval time.Duration
	Concurrency  int
	// StaleAfter is how long a job may stay IN_PROGRESS before it is
	// reclaimed. Defaults to staleClaimPolls poll intervals, at least minStaleAfter.
	StaleAfter time.Duration
}

const (
	staleClaimPolls = 10
	minStaleAfter   = 2 * time.Minute
)

// New creates a new worker.
func New(
	jobRepo repository.CascadeJobRepository,
	deliverer Deliverer,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 2
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = max(staleClaimPolls*cfg.PollInterval, minStaleAfter)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobRepo:      jobRepo,
		deliverer:    deliverer,
		pollInterval: cfg.PollInterval,
		staleAfter:   cfg.StaleAfter,
		concurrency:  cfg.Concurrency,
		now:          time.Now,
		stop:         make(chan struct{}),
		logger:       logger.With("component", "worker"),
	}
}

// Start begins processing jobs.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "concurrency", w.concurrency, "poll_interval", w.pollInterval)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i)
	}
}

// Stop gracefully stops the worker. In-flight deliveries finish first.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("stopping")
		close(w.stop)
	})
	w.wg.Wait()
	w.logger.Info("stopped")
}

func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if workerID == 0 {
				w.reclaimStale(ctx)
			}
			w.drain(ctx, workerID)
		}
	}
}

// drain delivers due jobs until none are left or the worker is stopping.
func (w *Worker) drain(ctx context.Context, workerID int) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}
		if !w.processNextJob(ctx, workerID) {
			return
		}
	}
}

// reclaimStale puts jobs whose claim was lost, e.g. to a crash mid-delivery,
// back in the queue.
func (w *Worker) reclaimStale(ctx context.Context) {
	n, err := w.jobRepo.ReclaimStale(ctx, models.TargetTypeCustomerAPI, w.now().UTC().Add(-w.staleAfter))
	if err != nil {
		w.logger.Error("failed to reclaim stale jobs", "error", err)
		return
	}
	if n > 0 {
		w.logger.Warn("reclaimed stale jobs", "count", n, "stale_after", w.staleAfter)
	}
}

// processNextJob reports whether a job was claimed.
func (w *Worker) processNextJob(ctx context.Context, workerID int) bool {
	job, err := w.jobRepo.ClaimDue(ctx, models.TargetTypeCustomerAPI, w.now().UTC())
	if err != nil {
		w.logger.Error("failed to claim job", "worker_id", workerID, "error", err)
		return false
	}
	if job == nil {
		return false
	}

	w.logger.Debug("processing job",
		"worker_id", workerID,
		"job_id", job.ID,
		"request_id", job.RequestID,
		"attempt", job.Attempts,
	)

	if err := w.deliverer.Deliver(ctx, job); err != nil {
		w.requeue(ctx, job, err)
	}
	return true
}

// requeue puts a job whose delivery could not be recorded back to PENDING
// so it is picked up on a later poll instead of staying IN_PROGRESS.
// A job that already reached DONE or FAILED stays where it is.
func (w *Worker) requeue(ctx context.Context, job *models.CascadeJob, cause error) {
	next := w.now().UTC().Add(w.pollInterval)
	requeued, err := w.jobRepo.Requeue(ctx, job.ID, cause.Error(), next)
	if err != nil {
		w.logger.Error("failed to requeue job", "job_id", job.ID, "error", err)
		return
	}
	if !requeued {
		w.logger.Error("delivery error after job was finalised", "job_id", job.ID, "error", cause)
		return
	}
	w.logger.Error("delivery error, job requeued", "job_id", job.ID, "error", cause)
}
