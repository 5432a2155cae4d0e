package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/tenantctl/internal/core"
	"github.com/edvin/tenantctl/internal/model"
	"github.com/edvin/tenantctl/internal/notify"
)

// Store is the job record persistence the processor needs.
type Store interface {
	GetByID(ctx context.Context, id string) (*model.Job, error)
	MarkRunning(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, result string) error
	MarkFailed(ctx context.Context, id, detail string) error
}

// Queue is the consume side of the job queue plus the per-tenant
// execution lock.
type Queue interface {
	Claim(ctx context.Context) (string, error)
	Ack(ctx context.Context, jobID string) error
	LockTenant(ctx context.Context, tenantName string) (release func(), err error)
}

// Handler executes one job and returns its result payload.
type Handler func(ctx context.Context, job *model.Job) (result string, err error)

// Processor claims jobs from the queue and runs them to a terminal
// state. A job either finishes or fails once; there are no retries.
type Processor struct {
	logger       zerolog.Logger
	store        Store
	queue        Queue
	notifier     notify.Notifier
	handlers     map[string]Handler
	pollInterval time.Duration
}

func NewProcessor(logger zerolog.Logger, store Store, queue Queue, notifier notify.Notifier) *Processor {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Processor{
		logger:       logger,
		store:        store,
		queue:        queue,
		notifier:     notifier,
		handlers:     make(map[string]Handler),
		pollInterval: 2 * time.Second,
	}
}

// Register binds a handler to a job kind.
func (p *Processor) Register(kind string, h Handler) {
	p.handlers[kind] = h
}

// Run drives the claim loop until the context is canceled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		id, err := p.queue.Claim(ctx)
		if err != nil {
			p.logger.Error().Err(err).Msg("claim job")
			id = ""
		}
		if id == "" {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.pollInterval):
			}
			continue
		}

		p.ProcessOne(ctx, id)
	}
}

// ProcessOne runs a single claimed job to a terminal state and
// acknowledges it. The per-tenant lock is held for the full duration of
// the handler, so two jobs for the same tenant never execute
// concurrently.
func (p *Processor) ProcessOne(ctx context.Context, id string) {
	logger := p.logger.With().Str("job_id", id).Logger()

	defer func() {
		if err := p.queue.Ack(ctx, id); err != nil {
			logger.Error().Err(err).Msg("ack job")
		}
	}()

	job, err := p.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			logger.Warn().Msg("claimed job has no record, dropping")
			return
		}
		logger.Error().Err(err).Msg("load job")
		return
	}
	logger = logger.With().Str("kind", job.Kind).Str("tenant", job.TenantName).Logger()

	release, err := p.queue.LockTenant(ctx, job.TenantName)
	if err != nil {
		logger.Error().Err(err).Msg("acquire tenant lock")
		p.fail(ctx, logger, job, fmt.Errorf("acquire tenant lock: %w", err))
		return
	}
	defer release()

	if err := p.store.MarkRunning(ctx, id); err != nil {
		if errors.Is(err, core.ErrConflict) {
			logger.Warn().Msg("job already left queued state, skipping")
			return
		}
		logger.Error().Err(err).Msg("mark job running")
		return
	}

	handler, ok := p.handlers[job.Kind]
	if !ok {
		p.fail(ctx, logger, job, fmt.Errorf("no handler for job kind %q", job.Kind))
		return
	}

	logger.Info().Msg("job started")
	start := time.Now()
	result, err := handler(ctx, job)
	jobDuration.WithLabelValues(job.Kind).Observe(time.Since(start).Seconds())

	if err != nil {
		p.fail(ctx, logger, job, err)
		return
	}

	if err := p.store.MarkFinished(ctx, job.ID, result); err != nil {
		logger.Error().Err(err).Msg("mark job finished")
		return
	}
	jobsProcessedTotal.WithLabelValues(job.Kind, model.JobStatusFinished).Inc()
	logger.Info().Str("result", result).Msg("job finished")
}

func (p *Processor) fail(ctx context.Context, logger zerolog.Logger, job *model.Job, cause error) {
	logger.Error().Err(cause).Msg("job failed")
	if err := p.store.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		logger.Error().Err(err).Msg("mark job failed")
	}
	jobsProcessedTotal.WithLabelValues(job.Kind, model.JobStatusFailed).Inc()
	p.notifier.Alert(ctx, fmt.Sprintf("job %s failed for tenant %s", job.Kind, job.TenantName),
		fmt.Sprintf("job %s (%s) for tenant %s failed: %v", job.ID, job.Kind, job.TenantName, cause))
}
