// Package errs defines the sentinel error taxonomy shared across the
// gateway so callers can classify failures with errors.Is instead of
// string matching.
package errs

import "errors"

var (
	// ErrInvalidInput marks a malformed caller payload: bad geohash
	// characters, missing locations, an unparsable HTTP request DM.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBackpressure marks a send-queue-full condition.
	ErrBackpressure = errors.New("send queue backpressure")

	// ErrUpstreamFailure marks an unreachable or non-2xx elevation backend.
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrTimeout marks a waiter or upstream call exceeding its budget.
	ErrTimeout = errors.New("timeout")

	// ErrFatal marks a missing runtime dependency or a child process that
	// refuses to start; callers should exit the process nonzero.
	ErrFatal = errors.New("fatal")
)
