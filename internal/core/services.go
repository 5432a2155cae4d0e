package core

import (
	"github.com/rs/zerolog"

	"github.com/edvin/tenantctl/internal/notify"
	"github.com/edvin/tenantctl/internal/runner"
)

type Services struct {
	Registry    *RegistryService
	Jobs        *JobService
	Audit       *AuditService
	Coordinator *Coordinator
}

func NewServices(logger zerolog.Logger, db DB, q Queue, r runner.Runner, notifier notify.Notifier) *Services {
	registry := NewRegistryService(db)
	jobs := NewJobService(db, q)
	audit := NewAuditService(db)

	return &Services{
		Registry:    registry,
		Jobs:        jobs,
		Audit:       audit,
		Coordinator: NewCoordinator(logger, registry, jobs, audit, r, notifier),
	}
}
