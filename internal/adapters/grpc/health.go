package grpc

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is any dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthReporter keeps the standard gRPC health service in step with the
// service's storage and cache dependencies.
type HealthReporter struct {
	logger   *slog.Logger
	server   *health.Server
	service  string
	checks   map[string]Pinger
	interval time.Duration
	timeout  time.Duration
}

func NewHealthReporter(logger *slog.Logger, service string, checks map[string]Pinger, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthReporter{
		logger:   logger,
		server:   health.NewServer(),
		service:  service,
		checks:   checks,
		interval: interval,
		timeout:  2 * time.Second,
	}
}

func (h *HealthReporter) Register(server grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(server, h.server)
}

// Server exposes the underlying health server, mainly for in-process checks.
func (h *HealthReporter) Server() healthpb.HealthServer { return h.server }

// Probe pings every dependency and returns the names of the failing ones,
// sorted.
func (h *HealthReporter) Probe(ctx context.Context) []string {
	failing := make([]string, 0)
	for name, check := range h.checks {
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := check.Ping(pingCtx)
		cancel()
		if err != nil {
			h.logger.WarnContext(ctx, "dependency check failed",
				"module", "grpc.health",
				"layer", "adapter",
				"operation", "probe",
				"outcome", "failure",
				"dependency", name,
				"error", err,
			)
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	return failing
}

// CheckOnce probes dependencies and publishes the resulting status for the
// overall server and the named service.
func (h *HealthReporter) CheckOnce(ctx context.Context) bool {
	status := healthpb.HealthCheckResponse_SERVING
	if len(h.Probe(ctx)) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", status)
	if h.service != "" {
		h.server.SetServingStatus(h.service, status)
	}
	return status == healthpb.HealthCheckResponse_SERVING
}

func (h *HealthReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		h.CheckOnce(ctx)
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
