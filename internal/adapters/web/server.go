package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/wprov/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
)

// Server is the diagnostics HTTP and WebSocket endpoint.
type Server struct {
	Addr          string
	WSManager     *WSManager
	StatusHandler *handlers.StatusHandler
	log           logr.Logger
	srv           *http.Server
}

// NewServer creates a new web server.
func NewServer(addr string, status ports.BoardStatus, sink ports.EventSink, store ports.CredentialStore, label string, log logr.Logger) *Server {
	log = log.WithName("http")
	return &Server{
		Addr:          addr,
		WSManager:     NewWSManager(status, log),
		StatusHandler: handlers.NewStatusHandler(status, sink, store, label),
		log:           log,
	}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(SetupRoutes(s), "wprov-http")
}

// Run starts the server and the broadcaster.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs on an existing listener until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.WSManager.Start(ctx)

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown implementation
	go func() {
		<-ctx.Done()
		s.log.Info("Web Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error(err, "Web Server shutdown error")
		}
	}()

	s.log.Info("Web server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
