package klippy

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ConnectError reports a failed connection attempt. Fatal errors cannot be
// fixed by retrying.
type ConnectError struct {
	Path  string
	Err   error
	Fatal bool
}

func (e *ConnectError) Error() string {
	if errors.Is(e.Err, unix.ENOENT) {
		return fmt.Sprintf("unable to open socket at %q: no such file or directory, check the config or the --socket option", e.Path)
	}
	return fmt.Sprintf("unable to open socket at %q: %v", e.Path, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ExitCode returns the errno behind the error, or 1
func (e *ConnectError) ExitCode() int {
	var errno unix.Errno
	if errors.As(e.Err, &errno) && errno != 0 {
		return int(errno)
	}
	return 1
}

func classifyDialError(path string, err error) *ConnectError {
	transient := errors.Is(err, unix.ECONNREFUSED) || errors.Is(err, unix.EAGAIN)
	return &ConnectError{Path: path, Err: err, Fatal: !transient}
}
