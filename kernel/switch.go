package kernel

import (
	"runtime"
	"strings"
)

type signal uint8

const (
	sigRun signal = iota
	sigAbort
)

const savedFrames = 8

// Registers is the dormant execution record of one context.
//
// Each logical thread runs on its own goroutine, and that goroutine's stack
// already holds every live local and return address. What remains to save is
// the right to run: a context holds the baton while it executes and parks on
// resume otherwise. pcs records the call chain at the last suspension so a
// parked context can report where it will continue.
type Registers struct {
	resume   chan signal
	done     chan struct{}
	pcs      [savedFrames]uintptr
	npc      int
	switches uint64
}

func newRegisters() Registers {
	return Registers{
		resume: make(chan signal),
		done:   make(chan struct{}),
	}
}

// Switches returns how many times this context has been switched into.
func (r *Registers) Switches() uint64 { return r.switches }

func (r *Registers) save() {
	r.npc = runtime.Callers(3, r.pcs[:])
}

// park blocks until the context is switched into again. An abort unwinds the
// goroutine instead of returning.
func (r *Registers) park() {
	if <-r.resume == sigAbort {
		runtime.Goexit()
	}
}

// saveAndSwitch records the caller into from, hands the baton to to, and
// returns only once some later switch targets from.
//
// The channel handoff orders every write made by from before anything to
// does next, so kernel state needs no further locking.
func saveAndSwitch(from, to *Registers) {
	from.save()
	to.switches++
	to.resume <- sigRun
	from.park()
}

// switchTo hands the baton to to without saving anything. The caller must
// never run kernel code again.
func switchTo(to *Registers) {
	to.switches++
	to.resume <- sigRun
}

// abort unwinds a parked context and waits for its goroutine to finish.
func abort(r *Registers) {
	r.resume <- sigAbort
	<-r.done
}

var kernelPrefix = func() string {
	pc, _, _, _ := runtime.Caller(0)
	name := runtime.FuncForPC(pc).Name()
	slash := strings.LastIndex(name, "/")
	dot := strings.Index(name[slash+1:], ".")
	return name[:slash+1+dot+1]
}()

func internalFrame(fn string) bool {
	rest, ok := strings.CutPrefix(fn, kernelPrefix)
	if !ok {
		return false
	}
	return strings.HasPrefix(rest, "(*Kernel).") ||
		strings.HasPrefix(rest, "(*Context).") ||
		strings.HasPrefix(rest, "(*Registers).") ||
		strings.HasPrefix(rest, "saveAndSwitch")
}

// where returns the first saved frame outside the scheduler.
func (r *Registers) where() (runtime.Frame, bool) {
	if r.npc == 0 {
		return runtime.Frame{}, false
	}
	frames := runtime.CallersFrames(r.pcs[:r.npc])
	for {
		f, more := frames.Next()
		if !internalFrame(f.Function) {
			return f, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}
