package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// Memory maps page-granular regions outside the Go heap.
//
// It is intentionally low-level: whole pages only, no bookkeeping. Protect
// makes a sub-range inaccessible so that any access faults immediately; a
// platform without page protection returns ErrNotImplemented from Protect.
type Memory interface {
	PageSize() int
	Map(size int) ([]byte, error)
	Protect(b []byte) error
	Unmap(b []byte) error
}

// HAL provides the only contact point between the runtime and the outside world.
type HAL interface {
	Logger() Logger
	Memory() Memory
}
