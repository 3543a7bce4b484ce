package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/ziutek/serial"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
)

var _ ports.JoinFailureDecider = (*Console)(nil)

// JoinFailurePrompt is printed when joining the saved network fails.
const JoinFailurePrompt = "Failed to join network. Press 'r' to reset credentials and start AP mode, 'a' to retry.\r\n"

// Console reads single-character operator commands. Outside a prompt, 'r'
// requests a credential reset; during a join failure prompt, 'r' and 'a'
// answer it.
type Console struct {
	in       io.Reader
	out      io.Writer
	timeout  time.Duration
	fallback domain.JoinDecision
	log      logr.Logger

	mu        sync.Mutex
	sink      ports.EventSink
	prompting bool
	answers   chan byte
}

// New returns a console on in/out. A zero timeout waits for the operator
// forever; otherwise fallback is chosen once it expires.
func New(in io.Reader, out io.Writer, timeout time.Duration, fallback domain.JoinDecision, log logr.Logger) *Console {
	return &Console{
		in:       in,
		out:      out,
		timeout:  timeout,
		fallback: fallback,
		log:      log.WithName("console"),
		answers:  make(chan byte, 8),
	}
}

// OpenSerial opens a UART as the operator console.
func OpenSerial(device string, baud int) (io.ReadWriteCloser, error) {
	uart, err := serial.Open(device)
	if err != nil {
		return nil, fmt.Errorf("open console %s: %w", device, err)
	}
	if baud > 0 {
		if err := uart.SetSpeed(baud); err != nil {
			uart.Close()
			return nil, fmt.Errorf("console %s speed %d: %w", device, baud, err)
		}
	}
	return uart, nil
}

// Attach sets where operator commands are posted.
func (c *Console) Attach(sink ports.EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// Run reads commands until ctx ends or the input is exhausted.
func (c *Console) Run(ctx context.Context) error {
	keys := make(chan byte)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := c.in.Read(buf)
			if n == 1 {
				select {
				case keys <- buf[0]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case k := <-keys:
			c.dispatch(k)
		}
	}
}

func (c *Console) dispatch(k byte) {
	if k == '\r' || k == '\n' || k == ' ' {
		return
	}

	c.mu.Lock()
	prompting, sink := c.prompting, c.sink
	c.mu.Unlock()

	if prompting {
		select {
		case c.answers <- k:
		default:
		}
		return
	}

	switch k {
	case 'r', 'R':
		c.log.Info("Operator requested credential reset")
		if sink == nil || !sink.Post(domain.NewBoardEvent(domain.EventOperatorReset)) {
			c.log.Info("Reset not delivered")
		}
	default:
		c.log.V(1).Info("Unknown command", "key", string(k))
	}
}

// DecideJoinFailure prompts the operator and waits for 'r' or 'a'. Other
// keys re-prompt.
func (c *Console) DecideJoinFailure(ctx context.Context, creds domain.NetworkCredentials, cause error) (domain.JoinDecision, error) {
	// Drop answers left over from an earlier prompt.
	for drained := false; !drained; {
		select {
		case <-c.answers:
		default:
			drained = true
		}
	}

	c.mu.Lock()
	c.prompting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.prompting = false
		c.mu.Unlock()
	}()

	var expired <-chan time.Time
	if c.timeout > 0 {
		t := time.NewTimer(c.timeout)
		defer t.Stop()
		expired = t.C
	}

	if cause != nil {
		fmt.Fprintf(c.out, "[!] %s: %v\r\n", creds.SSID, cause)
	}
	for {
		fmt.Fprint(c.out, JoinFailurePrompt)
		select {
		case k := <-c.answers:
			if d, ok := domain.ParseJoinDecision(string(k)); ok {
				c.log.Info("Operator decision", "decision", d, "ssid", creds.SSID)
				return d, nil
			}
			fmt.Fprintf(c.out, "Unknown option '%c'\r\n", k)
		case <-expired:
			c.log.Info("No operator answer, using default", "decision", c.fallback, "ssid", creds.SSID)
			return c.fallback, nil
		case <-ctx.Done():
			return domain.DecisionRetry, ctx.Err()
		}
	}
}
