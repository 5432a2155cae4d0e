package model

import (
	"encoding/json"
	"time"
)

// Job status constants. A job moves queued -> running -> finished|failed
// and never leaves a terminal state.
const (
	JobStatusQueued   = "queued"
	JobStatusRunning  = "running"
	JobStatusFinished = "finished"
	JobStatusFailed   = "failed"
)

// Job kinds executed by the worker.
const (
	JobKindBackup  = "backup"
	JobKindRestore = "restore"
	JobKindModules = "modules"
)

type Job struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	TenantName string          `json:"tenant_name"`
	Args       json.RawMessage `json:"args,omitempty"`
	Status     string          `json:"status"`
	Result     *string         `json:"result,omitempty"`
	Error      *string         `json:"error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
}

// BackupArgs carries no parameters today; kept for forward compatibility
// of the jobs.args column.
type BackupArgs struct{}

type RestoreArgs struct {
	ObjectKey string `json:"object_key"`
}

type ModulesArgs struct {
	Install []string `json:"install,omitempty"`
	Upgrade []string `json:"upgrade,omitempty"`
}
