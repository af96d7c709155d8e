package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	corehealth "3tcapital/ms_cartaporte_core/internal/core/health"
)

const defaultCheckTimeout = 2 * time.Second

// Metadata contains immutable metadata about the running service.
type Metadata struct {
	Service     string
	Version     string
	Environment string
	CFDIMode    string
}

// Check probes one backing dependency. A failing Critical check marks the
// service DOWN; any other failure marks it DEGRADED.
type Check struct {
	Name     string
	Critical bool
	Probe    func(ctx context.Context) error
}

// Service exposes health-check use cases to adapters.
type Service struct {
	meta         Metadata
	startedAt    time.Time
	checks       []Check
	checkTimeout time.Duration
}

func NewService(meta Metadata, checks ...Check) *Service {
	return &Service{
		meta:         meta,
		startedAt:    time.Now().UTC(),
		checks:       checks,
		checkTimeout: defaultCheckTimeout,
	}
}

// Status returns the current availability snapshot. Checks run concurrently,
// each bounded by its own timeout.
func (s *Service) Status(ctx context.Context) corehealth.Status {
	uptime := time.Since(s.startedAt)
	status := corehealth.Status{
		Service:     s.meta.Service,
		Version:     s.meta.Version,
		Environment: s.meta.Environment,
		CFDIMode:    s.meta.CFDIMode,
		Status:      corehealth.StatusUp,
		StartedAt:   s.startedAt,
		Uptime:      uptime.String(),
		UptimeSecs:  int64(uptime.Seconds()),
	}
	if len(s.checks) == 0 {
		return status
	}

	deps := make([]corehealth.Dependency, len(s.checks))
	var mu sync.Mutex
	var g errgroup.Group
	for i, check := range s.checks {
		i, check := i, check
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
			defer cancel()

			dep := corehealth.Dependency{Name: check.Name, Status: corehealth.StatusUp}
			if err := check.Probe(cctx); err != nil {
				dep.Status = corehealth.StatusDown
				dep.Error = err.Error()

				mu.Lock()
				if check.Critical {
					status.Status = corehealth.StatusDown
				} else if status.Status == corehealth.StatusUp {
					status.Status = corehealth.StatusDegraded
				}
				mu.Unlock()
			}
			deps[i] = dep
			return nil
		})
	}
	_ = g.Wait()

	status.Dependencies = deps
	return status
}
