// Package locerr defines the engine's error kinds as value-like sentinel
// tags, wrapped with context via fmt.Errorf("...: %w", ...) rather than
// custom exception types.
package locerr

import (
	"errors"
	"fmt"
)

// Kind sentinels. Compare with errors.Is against a wrapped error.
var (
	ErrBadInput          = errors.New("bad_input")
	ErrInsufficientData  = errors.New("insufficient_data")
	ErrBadDepth          = errors.New("bad_depth")
	ErrSingularMatrix    = errors.New("singular_matrix")
	ErrEllipsoidFailed   = errors.New("ellipsoid_failed")
	ErrDidNotConverge    = errors.New("did_not_converge")
	ErrUnstableSolution  = errors.New("unstable_solution")
)

// Wrap attaches a kind sentinel and message context to an underlying error.
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// Is reports whether err carries the given kind sentinel.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
