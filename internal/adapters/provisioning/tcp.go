package provisioning

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/lcalzada-xor/wprov/internal/core/ports"
	"github.com/lcalzada-xor/wprov/internal/core/services/provisioning"
)

var _ ports.ProvisioningListener = (*TCPListener)(nil)

// DefaultPort is the provisioning port of the board.
const DefaultPort = 10001

// TCPListener serves the provisioning protocol for as long as the access
// point is up. Connections are handled one at a time and each gets a read
// deadline.
type TCPListener struct {
	addr        string
	readTimeout time.Duration
	handler     ports.ProvisioningHandler
	log         logr.Logger

	mu     sync.Mutex
	ln     net.Listener
	active net.Conn
	port   int
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewTCPListener returns a listener for addr (e.g. ":10001").
func NewTCPListener(addr string, readTimeout time.Duration, handler ports.ProvisioningHandler, log logr.Logger) *TCPListener {
	l := &TCPListener{
		addr:        addr,
		readTimeout: readTimeout,
		handler:     handler,
		log:         log.WithName("provisioning-tcp"),
	}
	if _, p, err := net.SplitHostPort(addr); err == nil {
		l.port, _ = strconv.Atoi(p)
	}
	return l
}

// Start binds the port and serves in the background until Stop or ctx ends.
func (l *TCPListener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.ln = ln
	l.port = ln.Addr().(*net.TCPAddr).Port
	l.stop = make(chan struct{})
	stop := l.stop
	l.mu.Unlock()

	l.wg.Add(2)
	go func() {
		defer l.wg.Done()
		select {
		case <-ctx.Done():
			l.closeListener()
		case <-stop:
		}
	}()
	go func() {
		defer l.wg.Done()
		l.serve(ctx, ln)
	}()

	l.log.Info("Waiting for credentials", "port", l.Port())
	return nil
}

// Stop closes the listener and any open connection, then waits for the
// serving goroutines.
func (l *TCPListener) Stop() error {
	l.mu.Lock()
	if l.stop == nil {
		l.mu.Unlock()
		return nil
	}
	close(l.stop)
	l.stop = nil
	l.mu.Unlock()

	err := l.closeListener()
	l.wg.Wait()
	return err
}

// Port returns the bound port, or the configured one before Start.
func (l *TCPListener) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

func (l *TCPListener) closeListener() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active != nil {
		l.active.Close()
	}
	if l.ln == nil {
		return nil
	}
	err := l.ln.Close()
	l.ln = nil
	return err
}

func (l *TCPListener) serve(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Error(err, "Accept failed")
			time.Sleep(100 * time.Millisecond)
			continue
		}

		l.mu.Lock()
		closed := l.ln == nil
		if !closed {
			l.active = conn
		}
		l.mu.Unlock()
		if closed {
			conn.Close()
			return
		}

		l.handle(ctx, conn)

		l.mu.Lock()
		l.active = nil
		l.mu.Unlock()
	}
}

// handle serves one exchange: read the request, reply, close, and only then
// commit accepted credentials.
func (l *TCPListener) handle(ctx context.Context, conn net.Conn) {
	session := uuid.NewString()
	log := l.log.WithValues("session", session, "peer", conn.RemoteAddr().String())
	log.Info("Client connected")

	payload, err := readRequest(conn, l.readTimeout)
	if err != nil && len(payload) == 0 {
		log.Info("No request received", "error", err.Error())
		conn.Close()
		return
	}
	log.V(1).Info("Received", "bytes", len(payload))

	reply, creds, accepted := l.handler.Handle(ctx, payload)
	if l.readTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(l.readTimeout))
	}
	if _, err := conn.Write([]byte(reply)); err != nil {
		log.Error(err, "Writing reply failed")
	}
	conn.Close()

	if accepted && !l.handler.Commit(creds) {
		log.Info("Board busy, credentials kept for next boot", "ssid", creds.SSID)
	}
}

// idleGap ends a request that arrived without a trailing newline: once data
// has been read, a pause this long means the peer is waiting for the reply.
const idleGap = 200 * time.Millisecond

// readRequest reads until a newline, EOF, MaxPayload bytes, an idle gap
// after the first data, or the deadline, whichever comes first.
func readRequest(conn net.Conn, timeout time.Duration) (string, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	conn.SetReadDeadline(deadline)

	buf := make([]byte, 0, provisioning.MaxPayload)
	chunk := make([]byte, provisioning.MaxPayload)
	for len(buf) < provisioning.MaxPayload {
		n, err := conn.Read(chunk[:provisioning.MaxPayload-len(buf)])
		buf = append(buf, chunk[:n]...)
		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			return string(buf[:i+1]), nil
		}
		if err != nil {
			var ne net.Error
			if len(buf) > 0 && errors.As(err, &ne) && ne.Timeout() {
				return string(buf), nil
			}
			return string(buf), err
		}
		if n > 0 {
			gap := time.Now().Add(idleGap)
			if !deadline.IsZero() && deadline.Before(gap) {
				gap = deadline
			}
			conn.SetReadDeadline(gap)
		}
	}
	return string(buf), nil
}
