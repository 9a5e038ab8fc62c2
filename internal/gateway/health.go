package gateway

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// UpstreamService is the health service name that follows the REST API's reachability.
// The empty name reports the gateway process itself.
const UpstreamService = "storefront.Upstream"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	server   *health.Server
	pinger   Pinger
	interval time.Duration
	up       atomic.Bool
	log      zerolog.Logger
}

func NewHealth(p Pinger, interval time.Duration, log zerolog.Logger) *Health {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	h := &Health{
		server:   health.NewServer(),
		pinger:   p,
		interval: interval,
		log:      logger.Component(log, "health"),
	}
	h.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.server.SetServingStatus(UpstreamService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Probe pings the API once and publishes the result.
func (h *Health) Probe(ctx context.Context) bool {
	err := h.pinger.Ping(ctx)
	up := err == nil
	if h.up.Swap(up) != up {
		if up {
			h.log.Info().Msg("upstream api reachable")
		} else {
			h.log.Warn().Err(err).Msg("upstream api unreachable")
		}
	}
	status := healthpb.HealthCheckResponse_SERVING
	if !up {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus(UpstreamService, status)
	return up
}

// Run probes on every interval until ctx is done, then marks everything not serving.
func (h *Health) Run(ctx context.Context) {
	h.Probe(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.Probe(ctx)
		case <-ctx.Done():
			h.server.Shutdown()
			return
		}
	}
}

func (h *Health) Upstream() bool {
	return h.up.Load()
}

// Register adds the health service and reflection to srv.
func (h *Health) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, h.server)
	reflection.Register(srv)
}

func NewGRPCServer(h *Health) *grpc.Server {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	h.Register(srv)
	return srv
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	upstream := "ok"
	if !h.Upstream() {
		upstream = "unavailable"
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "upstream": upstream})
}
