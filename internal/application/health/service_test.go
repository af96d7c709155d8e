package health

import (
	"context"
	"errors"
	"testing"
	"time"

	corehealth "3tcapital/ms_cartaporte_core/internal/core/health"
)

func TestNewService(t *testing.T) {
	meta := Metadata{
		Service:     "test-service",
		Version:     "1.0.0",
		Environment: "test",
		CFDIMode:    "sandbox",
	}

	service := NewService(meta)

	if service == nil {
		t.Fatal("expected service to be created, got nil")
	}
	if service.meta != meta {
		t.Error("expected service to have the provided metadata")
	}
	if service.startedAt.IsZero() {
		t.Error("expected startedAt to be set")
	}
}

func TestService_Status_NoChecks(t *testing.T) {
	meta := Metadata{Service: "test-service", Version: "1.0.0", Environment: "test", CFDIMode: "production"}
	service := NewService(meta)

	time.Sleep(10 * time.Millisecond)
	status := service.Status(context.Background())

	if status.Status != corehealth.StatusUp {
		t.Errorf("expected status UP, got %q", status.Status)
	}
	if status.CFDIMode != "production" {
		t.Errorf("expected cfdi mode production, got %q", status.CFDIMode)
	}
	if status.Uptime == "" {
		t.Error("expected uptime to be set")
	}
	if len(status.Dependencies) != 0 {
		t.Errorf("expected no dependencies, got %v", status.Dependencies)
	}
}

func TestService_Status_Checks(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks []Check
		want   string
	}{
		{
			name:   "all up",
			checks: []Check{{Name: "postgres", Critical: true, Probe: ok}, {Name: "redis", Probe: ok}},
			want:   corehealth.StatusUp,
		},
		{
			name:   "optional dependency down",
			checks: []Check{{Name: "postgres", Critical: true, Probe: ok}, {Name: "redis", Probe: fail}},
			want:   corehealth.StatusDegraded,
		},
		{
			name:   "critical dependency down",
			checks: []Check{{Name: "postgres", Critical: true, Probe: fail}, {Name: "redis", Probe: fail}},
			want:   corehealth.StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := NewService(Metadata{Service: "svc"}, tt.checks...).Status(context.Background())

			if status.Status != tt.want {
				t.Errorf("expected status %q, got %q", tt.want, status.Status)
			}
			if len(status.Dependencies) != len(tt.checks) {
				t.Fatalf("expected %d dependencies, got %d", len(tt.checks), len(status.Dependencies))
			}
			for i, dep := range status.Dependencies {
				if dep.Name != tt.checks[i].Name {
					t.Errorf("dependency %d: expected %q, got %q", i, tt.checks[i].Name, dep.Name)
				}
				if dep.Status == corehealth.StatusDown && dep.Error == "" {
					t.Errorf("dependency %s is down without an error", dep.Name)
				}
			}
		})
	}
}

func TestService_Status_CheckTimeout(t *testing.T) {
	service := NewService(Metadata{}, Check{
		Name: "pac",
		Probe: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	service.checkTimeout = 20 * time.Millisecond

	status := service.Status(context.Background())

	if status.Status != corehealth.StatusDegraded {
		t.Errorf("expected DEGRADED after a timed out check, got %q", status.Status)
	}
}
