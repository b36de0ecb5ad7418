// Package introspection runs the engine's read-only admin surface: a
// gRPC health+reflection listener for orchestration probes, and an
// HTTP/JSON /status endpoint reporting the dispatcher state, the Setup
// count and the queue depth. It does not list live connections or tables.
// Neither exposes any data-plane operation; both are optional and bind
// to a same-host address by default.
package introspection

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/oriys/lancebridge/internal/engine"
	"github.com/oriys/lancebridge/internal/logging"
	"github.com/oriys/lancebridge/internal/metrics"
	"github.com/oriys/lancebridge/internal/observability"
)

// Server bundles the gRPC health/reflection listener and the HTTP/JSON
// status endpoint behind one Addr, mirroring the bootstrap shape of the
// engine's own command dispatcher: start once, stop once.
type Server struct {
	lifecycle *engine.Lifecycle
	metrics   *metrics.Metrics
	addr      string

	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
	stopHealth chan struct{}
}

// New constructs a Server. No listener is opened until Start.
func New(lifecycle *engine.Lifecycle, m *metrics.Metrics, addr string) *Server {
	return &Server{lifecycle: lifecycle, metrics: m, addr: addr}
}

// Start opens the gRPC listener on addr and an HTTP listener on the next
// port (addr's port + 1), both serving in background goroutines.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("introspection: listen %s: %w", s.addr, err)
	}

	s.health = health.NewServer()
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)

	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			logging.Op().Warn("introspection gRPC server stopped", "error", err)
		}
	}()

	s.stopHealth = make(chan struct{})
	go s.watchHealth(s.stopHealth)

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	httpAddr, err := nextPort(s.addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           observability.HTTPMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Warn("introspection HTTP server stopped", "error", err)
		}
	}()

	logging.Op().Info("introspection server started", "grpc_addr", s.addr, "http_addr", httpAddr)
	return nil
}

// Stop gracefully stops both listeners.
func (s *Server) Stop(ctx context.Context) {
	if s.stopHealth != nil {
		close(s.stopHealth)
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Shutdown(ctx)
	}
}

// watchHealth polls the dispatcher's lifecycle state and keeps the gRPC
// health service's status in lockstep: SERVING only while the dispatcher
// is Running, NOT_SERVING otherwise (not yet started, quitting, stopped).
func (s *Server) watchHealth(stop <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			status := healthpb.HealthCheckResponse_NOT_SERVING
			if d := s.lifecycle.Dispatcher(); d != nil && d.State() == engine.Running {
				status = healthpb.HealthCheckResponse_SERVING
			}
			s.health.SetServingStatus("", status)
		}
	}
}

type statusResponse struct {
	State     string `json:"state"`
	Instances int64  `json:"setup_instances"`
	QueueDepth int   `json:"queue_depth"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{State: "not_started"}
	if d := s.lifecycle.Dispatcher(); d != nil {
		resp.State = d.State().String()
		resp.QueueDepth = d.QueueDepth()
	}
	resp.Instances = s.lifecycle.Instances()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Op().Warn("status encode failed", "error", err)
	}
}

// nextPort increments the port component of addr by one, used to derive
// the HTTP listener's address from the gRPC listener's.
func nextPort(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return "", fmt.Errorf("introspection: invalid port %q: %w", port, err)
	}
	return net.JoinHostPort(host, fmt.Sprintf("%d", p+1)), nil
}
