package kernel

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

// PanicInfo contains details about a recovered thread panic.
type PanicInfo struct {
	ThreadID ThreadID
	Value    any
	Stack    []byte
}

// PanicError is returned by Run when a thread panicked.
type PanicError struct {
	Info PanicInfo
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("kernel: thread %d panicked: %v", e.Info.ThreadID, e.Info.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Info.Value.(error); ok {
		return err
	}
	return nil
}

var panicHandler atomic.Value // func(PanicInfo)

// SetPanicHandler installs a process-wide panic handler.
//
// The handler is invoked at most once per kernel (on its first panic), on the
// panicking thread, before control returns to the host. It must not panic.
func SetPanicHandler(fn func(PanicInfo)) {
	panicHandler.Store(fn)
}

// InPanicMode reports whether a thread of this kernel has panicked.
func (k *Kernel) InPanicMode() bool { return k.panicked }

func (k *Kernel) notifyPanic(info PanicInfo) {
	if k.panicked {
		return
	}
	k.panicked = true
	if v := panicHandler.Load(); v != nil {
		if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
			fn(info)
		}
	}
}

func captureStack() []byte {
	return debug.Stack()
}
