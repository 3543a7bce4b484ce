package link

import "errors"

var (
	errNotStarted = errors.New("driver not started")
	errAPActive   = errors.New("access point is active")
)
