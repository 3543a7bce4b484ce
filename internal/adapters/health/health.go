package health

import (
	"context"
	"net"

	"github.com/go-logr/logr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
)

// ServiceName is the health service reporting board connectivity.
const ServiceName = "wprov.board"

var _ ports.BoardObserver = (*Server)(nil)

// Server exposes the gRPC health protocol. The board service is SERVING
// while the board is a connected client or an access point with an address.
type Server struct {
	addr   string
	health *health.Server
	grpc   *grpc.Server
	log    logr.Logger
}

func NewServer(addr string, log logr.Logger) *Server {
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		addr:   addr,
		health: hs,
		grpc:   gs,
		log:    log.WithName("health"),
	}
}

// OnTransition updates the serving status from snap.
func (s *Server) OnTransition(snap domain.BoardSnapshot) {
	s.health.SetServingStatus(ServiceName, StatusFor(snap))
}

// StatusFor maps a snapshot onto a health status.
func StatusFor(snap domain.BoardSnapshot) healthpb.HealthCheckResponse_ServingStatus {
	switch {
	case snap.State == domain.StateClient && snap.Connected:
		return healthpb.HealthCheckResponse_SERVING
	case snap.State == domain.StateAP && snap.IP != "" && snap.IP != "0.0.0.0":
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Run listens on addr and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
	}()
	s.log.Info("gRPC health listening", "addr", ln.Addr().String())
	if err := s.grpc.Serve(ln); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}
