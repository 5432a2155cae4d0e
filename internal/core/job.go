package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/tenantctl/internal/model"
	"github.com/edvin/tenantctl/internal/platform"
)

// Queue is the durable job queue the pipeline enqueues into. Implemented by
// queue.RedisQueue.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
}

// JobService persists job records and hands job ids to the queue. Enqueue
// runs in the request path and returns immediately; only the claiming
// worker moves a job past queued.
type JobService struct {
	db DB
	q  Queue
}

func NewJobService(db DB, q Queue) *JobService {
	return &JobService{db: db, q: q}
}

// Enqueue creates a job record in queued state and pushes its id onto the
// queue. A queue failure surfaces as ErrUnavailable; the orphaned record
// stays queued and is safe to re-enqueue.
func (s *JobService) Enqueue(ctx context.Context, kind, tenantName string, args any) (*model.Job, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal job args: %w", err)
	}

	job := &model.Job{
		ID:         platform.NewID(),
		Kind:       kind,
		TenantName: tenantName,
		Args:       raw,
		Status:     model.JobStatusQueued,
		EnqueuedAt: time.Now().UTC(),
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO jobs (id, kind, tenant_name, args, status, enqueued_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.Kind, job.TenantName, job.Args, job.Status, job.EnqueuedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	if err := s.q.Enqueue(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("enqueue job %s: %w: %v", job.ID, ErrUnavailable, err)
	}

	return job, nil
}

func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var j model.Job
	err := s.db.QueryRow(ctx,
		`SELECT id, kind, tenant_name, args, status, result, error, enqueued_at, started_at, ended_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Kind, &j.TenantName, &j.Args, &j.Status, &j.Result, &j.Error,
		&j.EnqueuedAt, &j.StartedAt, &j.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &j, nil
}

// ListActive returns queued and running jobs, oldest first.
func (s *JobService) ListActive(ctx context.Context) ([]model.Job, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, kind, tenant_name, args, status, result, error, enqueued_at, started_at, ended_at
		 FROM jobs WHERE status IN ($1, $2) ORDER BY enqueued_at`,
		model.JobStatusQueued, model.JobStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.Kind, &j.TenantName, &j.Args, &j.Status, &j.Result, &j.Error,
			&j.EnqueuedAt, &j.StartedAt, &j.EndedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// MarkRunning transitions a queued job to running. The WHERE clause keeps
// terminal states terminal even if a stray duplicate claim occurs.
func (s *JobService) MarkRunning(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = $1, started_at = now() WHERE id = $2 AND status = $3`,
		model.JobStatusRunning, id, model.JobStatusQueued)
	if err != nil {
		return fmt.Errorf("mark job %s running: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not claimable: %w", id, ErrConflict)
	}
	return nil
}

func (s *JobService) MarkFinished(ctx context.Context, id, result string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = $1, result = $2, ended_at = now() WHERE id = $3 AND status = $4`,
		model.JobStatusFinished, result, id, model.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("mark job %s finished: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not running: %w", id, ErrConflict)
	}
	return nil
}

func (s *JobService) MarkFailed(ctx context.Context, id, detail string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = $1, error = $2, ended_at = now() WHERE id = $3 AND status = $4`,
		model.JobStatusFailed, detail, id, model.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("mark job %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not running: %w", id, ErrConflict)
	}
	return nil
}
