package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	BatchSize         int
	PollInterval      time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	NumWorkers        int
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:         50,
		PollInterval:      2 * time.Second,
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
		NumWorkers:        3,
	}
}

// Worker processes delivery jobs from the queue.
type Worker struct {
	config     WorkerConfig
	queue      *Queue
	dispatcher *Dispatcher
	renderer   *Renderer

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWorker creates a new delivery worker.
func NewWorker(config WorkerConfig, queue *Queue, dispatcher *Dispatcher, renderer *Renderer) *Worker {
	return &Worker{
		config:     config,
		queue:      queue,
		dispatcher: dispatcher,
		renderer:   renderer,
		stopCh:     make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting delivery worker",
		"workers", w.config.NumWorkers,
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval,
	)

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	slog.Info("delivery worker stopped")
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processBatch(ctx, workerID)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, workerID int) {
	jobs := w.queue.fetchDue(time.Now(), w.config.BatchSize)
	if len(jobs) == 0 {
		return
	}

	slog.Debug("processing delivery jobs", "worker", workerID, "count", len(jobs))
	recordQueueProcessed(len(jobs))

	for _, job := range jobs {
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *Job) {
	start := time.Now()

	target, err := w.dispatcher.Resolve(job.Role, job.Method)
	if err != nil {
		slog.Error("no delivery target for stakeholder",
			"job_id", job.ID,
			"role", job.Role,
			"method", job.Method,
			"error", err,
		)
		recordDeliverySent(string(job.Method), "failed")
		return
	}

	subject, body, err := w.renderer.Render(job.Method, job.Payload)
	if err != nil {
		slog.Error("failed to render notification", "job_id", job.ID, "error", err)
		recordDeliverySent(string(job.Method), "failed")
		return
	}

	notification := Notification{
		To:      target,
		Subject: subject,
		Body:    body,
	}

	err = w.dispatcher.Send(ctx, job.Method, notification)
	duration := time.Since(start)

	if err != nil {
		w.handleSendError(job, err)
		return
	}

	recordDeliverySent(string(job.Method), "success")
	recordDeliveryDuration(string(job.Method), duration)

	slog.Debug("notification delivered",
		"job_id", job.ID,
		"incident_id", job.IncidentID,
		"method", job.Method,
		"duration", duration,
	)
}

func (w *Worker) handleSendError(job *Job, err error) {
	job.Attempts++
	job.LastError = err.Error()

	slog.Warn("delivery failed",
		"job_id", job.ID,
		"attempt", job.Attempts,
		"max_attempts", job.MaxAttempts,
		"error", err,
	)

	if !isRetryable(err) {
		recordDeliverySent(string(job.Method), "failed")
		return
	}

	if job.Attempts >= job.MaxAttempts {
		slog.Error("delivery abandoned",
			"job_id", job.ID,
			"error", fmt.Errorf("max attempts exceeded: %w", err),
		)
		recordDeliverySent(string(job.Method), "failed")
		return
	}

	job.NextAttemptAt = time.Now().Add(w.calculateBackoff(job.Attempts))
	w.queue.requeue(job)
	recordDeliverySent(string(job.Method), "retry")

	slog.Info("delivery scheduled for retry",
		"job_id", job.ID,
		"next_attempt", job.NextAttemptAt,
	)
}

func (w *Worker) calculateBackoff(attempt int) time.Duration {
	backoff := float64(w.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= w.config.BackoffMultiplier
	}

	if backoff > float64(w.config.MaxBackoff) {
		backoff = float64(w.config.MaxBackoff)
	}

	return time.Duration(backoff)
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(retryable); ok {
		return r.IsRetryable()
	}

	// Default: retry unknown errors
	return true
}

// RetryableError wraps an error and marks it as retryable or not.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// IsRetryable returns whether the error is retryable.
func (e *RetryableError) IsRetryable() bool {
	return e.Retryable
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a retryable error.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewNonRetryableError creates a non-retryable error.
func NewNonRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}
