package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service key reported alongside the overall "" key.
const ServiceName = "referral.intake.v1.Intake"

// Pinger is the readiness probe the health reporter polls.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// HealthReporter keeps the gRPC health status in step with the database.
type HealthReporter struct {
	hs       *health.Server
	db       Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	serving  bool
}

func NewHealthReporter(hs *health.Server, db Pinger, interval time.Duration, logger *slog.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthReporter{
		hs:       hs,
		db:       db,
		interval: interval,
		timeout:  3 * time.Second,
		logger:   logger,
	}
}

// Check probes once and publishes the result.
func (r *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if err := r.db.HealthCheck(ctx, r.timeout); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		if r.serving {
			r.logger.Warn("health.db.down", "error", err)
		}
	} else if !r.serving {
		r.logger.Info("health.db.up")
	}
	r.serving = st == healthpb.HealthCheckResponse_SERVING
	r.hs.SetServingStatus("", st)
	r.hs.SetServingStatus(ServiceName, st)
	return st
}

// Run probes every interval until ctx is done, then marks the service as
// shutting down.
func (r *HealthReporter) Run(ctx context.Context) error {
	r.Check(ctx)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.hs.Shutdown()
			return nil
		case <-t.C:
			r.Check(ctx)
		}
	}
}
