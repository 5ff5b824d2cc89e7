package service

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tablohq/backupd/internal/core/domain"
)

// Dispatcher runs job pipelines in the background, one live handler per job
// id. Per-id exclusivity is the sole concurrency control for job state:
// everything a pipeline mutates is owned by its job, so serializing on the
// id is enough. Different job ids run fully concurrently.
//
// The dispatcher is also the single catch point of the failure path: any
// error (or panic) escaping a pipeline marks the job failed and fires the
// job_failed webhook. Pipelines never re-run automatically.
type Dispatcher struct {
	jobs     *JobService
	webhooks *WebhookDispatcher

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

func NewDispatcher(jobs *JobService, webhooks *WebhookDispatcher) *Dispatcher {
	return &Dispatcher{
		jobs:     jobs,
		webhooks: webhooks,
		active:   map[string]struct{}{},
	}
}

// Submit dispatches run for the given job without awaiting it. It returns an
// error only when a handler for the same job id is already live.
func (d *Dispatcher) Submit(job *domain.Job, run func(ctx context.Context) error) error {
	d.mu.Lock()
	if _, busy := d.active[job.ID]; busy {
		d.mu.Unlock()
		return fmt.Errorf("job %s already has a live handler", job.ID)
	}
	d.active[job.ID] = struct{}{}
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.active, job.ID)
			d.mu.Unlock()
		}()

		// The pipeline outlives the triggering request, so it runs on its
		// own context. There is no external cancellation: the job runs to a
		// terminal state or a protocol timeout.
		ctx := context.Background()

		err := d.invoke(ctx, job, run)
		if err == nil {
			return
		}

		log.WithError(err).WithFields(log.Fields{
			"job_id":      job.ID,
			"database_id": job.DatabaseID,
			"operation":   job.OperationType,
		}).Error("job pipeline failed")

		msg := err.Error()
		if cerr := d.jobs.Complete(ctx, job.ID, domain.JobStatusFailed, nil, nil, &msg); cerr != nil {
			log.WithError(cerr).WithField("job_id", job.ID).Error("failed to record job failure")
		}

		d.webhooks.Fire(domain.WebhookJobFailed, map[string]interface{}{
			"job_id":      job.ID,
			"database_id": job.DatabaseID,
			"operation":   string(job.OperationType),
			"error":       msg,
		})
	}()

	return nil
}

// invoke runs the pipeline with panic recovery.
func (d *Dispatcher) invoke(ctx context.Context, job *domain.Job, run func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job pipeline panicked: %v", r)
		}
	}()
	return run(ctx)
}

// Active reports whether a handler for the job id is currently live.
func (d *Dispatcher) Active(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, busy := d.active[jobID]
	return busy
}

// Shutdown waits for in-flight jobs, bounded by ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out with jobs still running: %w", ctx.Err())
	}
}
