package broadcast

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// BindError is returned by New when the listening socket cannot be bound.
// The Manager is unusable afterwards.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("broadcast: failed to listen on %s: %v", e.Addr, e.Err)
}

func (e *BindError) Cause() error  { return e.Err }
func (e *BindError) Unwrap() error { return e.Err }

// isClosedError reports whether err stems from using a socket that was
// already closed locally.
func isClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
