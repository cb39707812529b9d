// Package kernel is a cooperative green-thread runtime with actor mailboxes.
//
// Logical threads are multiplexed onto one execution stream. Exactly one of
// them runs at any instant, and control only changes hands at Yield, at a
// blocking Recv, or when a thread finishes. Scheduling is FIFO round robin,
// so a fixed sequence of spawns, yields and sends always produces the same
// interleaving.
package kernel

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"green/hal"
	"green/stack"
)

const (
	DefaultStackSize  = 64 << 10
	DefaultMaxThreads = 4096
)

// ThreadID identifies one logical thread within a Kernel.
type ThreadID uint64

// MainID is the host program's own context. It never receives messages.
const MainID ThreadID = 0

const maxThreadID = ThreadID(math.MaxUint64)

var (
	ErrAlreadyStarted   = errors.New("kernel: already started")
	ErrNilTask          = errors.New("kernel: nil task")
	ErrTooManyThreads   = errors.New("kernel: too many threads")
	ErrIDSpaceExhausted = errors.New("kernel: thread id space exhausted")
	ErrNotRunning       = errors.New("kernel: context is not the running thread")
	ErrDeadlock         = errors.New("kernel: deadlock")
)

// DeadlockError reports threads left blocked in Recv once nothing was runnable.
type DeadlockError struct {
	Blocked []ThreadID
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("kernel: deadlock: %d thread(s) blocked in recv: %v", len(e.Blocked), e.Blocked)
}

func (e *DeadlockError) Is(target error) bool { return target == ErrDeadlock }

// State is a context's lifecycle state.
type State uint8

const (
	StateReady State = iota + 1
	StateRunning
	StateBlocked
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Task is the body of a logical thread.
type Task interface {
	Run(*Context)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(*Context)

func (f TaskFunc) Run(ctx *Context) { f(ctx) }

// Config controls a Kernel. Zero fields take defaults.
type Config struct {
	// StackSize is the per-thread stack size in bytes.
	StackSize int
	// MaxThreads caps the number of live threads, main excluded.
	MaxThreads int
	// MaxMessageBytes, when positive, rejects larger payloads with
	// SendErrPayloadTooLarge. Zero leaves messages unbounded.
	MaxMessageBytes int
	// Memory backs thread stacks. Defaults to hal.NewMemory().
	Memory hal.Memory
	// Trace, when set, receives one line per scheduler event.
	Trace hal.Logger
}

// Stats counts scheduler and mailbox activity.
type Stats struct {
	Spawned     uint64
	Terminated  uint64
	Switches    uint64
	Yields      uint64
	Blocks      uint64
	Wakeups     uint64
	Sent        uint64
	Received    uint64
	Dropped     uint64
	Discarded   uint64
	StacksFreed uint64
	LiveStacks  int
	PeakThreads int
}

// Kernel owns the run queue, context table, mailbox table, waiting set, ID
// allocator and deferred-free stack list of one runtime.
//
// A Kernel is not safe for concurrent use by host goroutines. Inside Run,
// only the running thread touches it.
type Kernel struct {
	cfg    Config
	stacks *stack.Allocator

	main     *Context
	current  *Context
	contexts map[ThreadID]*Context
	runq     ring[ThreadID]

	mailboxes map[ThreadID]*mailbox
	waiting   map[ThreadID]struct{}

	unused ring[stack.Handle]
	nextID ThreadID

	started  bool
	panicked bool
	fault    *PanicError
	stats    Stats
}

// New creates a kernel instance.
func New(cfg Config) *Kernel {
	if cfg.StackSize <= 0 {
		cfg.StackSize = DefaultStackSize
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = DefaultMaxThreads
	}
	if cfg.Memory == nil {
		cfg.Memory = hal.NewMemory()
	}

	k := &Kernel{
		cfg:       cfg,
		stacks:    stack.NewAllocator(cfg.Memory),
		contexts:  make(map[ThreadID]*Context),
		mailboxes: make(map[ThreadID]*mailbox),
		waiting:   make(map[ThreadID]struct{}),
		nextID:    MainID + 1,
	}
	k.main = &Context{k: k, id: MainID, regs: newRegisters(), state: StateRunning}
	k.contexts[MainID] = k.main
	k.current = k.main
	return k
}

// SpawnFromMain runs t on a fresh default kernel until every thread is done.
func SpawnFromMain(t Task) error {
	return New(Config{}).Run(t)
}

// Run spawns t from the host program and schedules until the run queue is
// empty. It can be called once per kernel.
//
// Run returns nil when every thread finished, a *DeadlockError when threads
// were left blocked in Recv, or a *PanicError when a thread panicked.
func (k *Kernel) Run(t Task) error {
	if k.started {
		return ErrAlreadyStarted
	}
	k.started = true

	if _, err := k.spawn(t, k.cfg.StackSize); err != nil {
		return err
	}
	k.main.state = StateReady
	k.schedule()

	if k.fault != nil {
		k.abortAll()
		return k.fault
	}
	if len(k.waiting) > 0 {
		blocked := k.Waiting()
		k.tracef("deadlock %v", blocked)
		k.abortAll()
		return &DeadlockError{Blocked: blocked}
	}
	return nil
}

// Current returns the running thread, or MainID outside Run.
func (k *Kernel) Current() ThreadID { return k.current.id }

// State returns the lifecycle state of a live context.
func (k *Kernel) State(id ThreadID) (State, bool) {
	c, ok := k.contexts[id]
	if !ok {
		return 0, false
	}
	return c.state, true
}

// RunQueue returns the runnable threads in scheduling order.
func (k *Kernel) RunQueue() []ThreadID { return k.runq.snapshot() }

// Waiting returns the threads blocked in Recv, sorted by ID.
func (k *Kernel) Waiting() []ThreadID {
	ids := make([]ThreadID, 0, len(k.waiting))
	for id := range k.waiting {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Pending returns the number of undelivered messages for id.
func (k *Kernel) Pending(id ThreadID) int {
	if mb := k.mailboxes[id]; mb != nil {
		return mb.len()
	}
	return 0
}

// Where reports the call site at which a parked context will resume.
func (k *Kernel) Where(id ThreadID) (runtime.Frame, bool) {
	c, ok := k.contexts[id]
	if !ok || c == k.current {
		return runtime.Frame{}, false
	}
	return c.regs.where()
}

// Stats returns a snapshot of the kernel counters.
func (k *Kernel) Stats() Stats {
	s := k.stats
	s.LiveStacks = k.stacks.Live()
	return s
}

func (k *Kernel) tracef(format string, args ...any) {
	if k.cfg.Trace == nil {
		return
	}
	k.cfg.Trace.WriteLineString(fmt.Sprintf(format, args...))
}
