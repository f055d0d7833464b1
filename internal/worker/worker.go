// Package worker runs the storefront's periodic background jobs.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// Interval is how often every job runs
	Interval time.Duration

	// MaxConcurrency is the maximum number of jobs running at once
	MaxConcurrency int

	// JobTimeout bounds a single run of a job
	JobTimeout time.Duration

	// ShutdownTimeout is how long Start waits for in-flight jobs after cancel
	ShutdownTimeout time.Duration
}

// Worker runs registered jobs on a ticker. A job still running when its next
// tick arrives is skipped for that tick.
type Worker struct {
	config  Config
	jobs    []Job
	metrics *telemetry.BusinessMetrics
	logger  zerolog.Logger

	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

// NewWorker creates a new background job worker
func NewWorker(config Config, metrics *telemetry.BusinessMetrics, logger zerolog.Logger, jobs ...Job) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.Interval <= 0 {
		config.Interval = 15 * time.Minute
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 2
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = time.Minute
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	return &Worker{
		config:  config,
		jobs:    jobs,
		metrics: metrics,
		logger:  logger.With().Str("worker_id", config.WorkerID).Logger(),
		running: make(map[string]bool, len(jobs)),
	}
}

// Start runs every job immediately and then on each tick until ctx is
// cancelled. It waits up to ShutdownTimeout for in-flight jobs before
// returning ctx.Err().
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().
		Dur("interval", w.config.Interval).
		Int("max_concurrency", w.config.MaxConcurrency).
		Int("jobs", len(w.jobs)).
		Msg("worker starting")

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Semaphore for concurrency control
	sem := make(chan struct{}, w.config.MaxConcurrency)

	w.dispatch(ctx, sem)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("worker shutting down")
			w.wait()
			return ctx.Err()

		case <-ticker.C:
			w.dispatch(ctx, sem)
		}
	}
}

// dispatch starts every idle job that can get a semaphore slot.
func (w *Worker) dispatch(ctx context.Context, sem chan struct{}) {
	for _, job := range w.jobs {
		if !w.claim(job.Name()) {
			w.logger.Debug().Str("job_type", job.Name()).Msg("job still running, skipping tick")
			continue
		}

		select {
		case sem <- struct{}{}:
		default:
			// At max concurrency, skip this tick
			w.release(job.Name())
			continue
		}

		w.wg.Add(1)
		go func(job Job) {
			defer w.wg.Done()
			defer func() { <-sem }()
			defer w.release(job.Name())
			w.RunJob(ctx, job)
		}(job)
	}
}

// RunJob runs a single job synchronously with the configured timeout,
// logging and recording the outcome.
func (w *Worker) RunJob(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	logger := w.logger.With().Str("job_type", job.Name()).Logger()
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return job.Run(jobCtx)
	}()

	elapsed := time.Since(start)
	w.metrics.JobRun(job.Name(), elapsed.Seconds(), err)
	if err != nil {
		logger.Error().Err(err).Dur("duration", elapsed).Msg("job failed")
		return
	}
	logger.Debug().Dur("duration", elapsed).Msg("job completed")
}

func (w *Worker) claim(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running[name] {
		return false
	}
	w.running[name] = true
	return true
}

func (w *Worker) release(name string) {
	w.mu.Lock()
	delete(w.running, name)
	w.mu.Unlock()
}

func (w *Worker) wait() {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn().Dur("timeout", w.config.ShutdownTimeout).Msg("jobs still running at shutdown")
	}
}
