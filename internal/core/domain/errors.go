package domain

import (
	"errors"
	"fmt"
)

// Domain errors for the provisioning agent.
var (
	ErrCredentialsNotFound = errors.New("no saved credentials")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidPayload      = errors.New("invalid provisioning payload")
	// ErrFatal marks failures the board cannot recover from without a restart.
	ErrFatal = errors.New("fatal board error")
)

// LinkErrorKind classifies wireless link failures.
type LinkErrorKind int

const (
	LinkInternal LinkErrorKind = iota
	LinkTimeout
	LinkRejected
	LinkAlreadyActive
)

func (k LinkErrorKind) String() string {
	switch k {
	case LinkTimeout:
		return "timeout"
	case LinkRejected:
		return "rejected"
	case LinkAlreadyActive:
		return "already_active"
	default:
		return "internal"
	}
}

// LinkError is returned by every WirelessLink operation.
type LinkError struct {
	Op   string
	Kind LinkErrorKind
	Err  error
}

func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("link %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("link %s: %s", e.Op, e.Kind)
}

func (e *LinkError) Unwrap() error { return e.Err }

// NewLinkError wraps err as a LinkError for op.
func NewLinkError(op string, kind LinkErrorKind, err error) *LinkError {
	return &LinkError{Op: op, Kind: kind, Err: err}
}

// IsLinkKind reports whether err is a LinkError of the given kind.
func IsLinkKind(err error, kind LinkErrorKind) bool {
	var le *LinkError
	return errors.As(err, &le) && le.Kind == kind
}

// Fatal wraps err so that errors.Is(err, ErrFatal) holds.
func Fatal(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFatal, msg, err)
}
