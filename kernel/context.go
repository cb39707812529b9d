package kernel

import (
	"runtime"

	"green/stack"
)

// Context provides thread-local access to kernel operations.
//
// Every method except ID, Kernel and Stack must be called by the thread that
// owns the Context while it is running; anything else panics with
// ErrNotRunning.
type Context struct {
	k      *Kernel
	id     ThreadID
	task   Task
	handle stack.Handle
	stack  *stack.Stack
	regs   Registers
	state  State

	aborted bool
}

// ID returns the calling thread's ID.
func (c *Context) ID() ThreadID { return c.id }

// Kernel returns the kernel running this context.
func (c *Context) Kernel() *Kernel { return c.k }

// Stack returns the thread's private stack slab.
func (c *Context) Stack() *stack.Stack { return c.stack }

func (c *Context) mustRun() {
	if c.k.current != c || c.aborted {
		panic(ErrNotRunning)
	}
}

// Yield puts the thread at the back of the run queue and runs the next one.
func (c *Context) Yield() {
	c.mustRun()
	c.k.yield(c)
}

// Spawn creates a thread with the kernel's default stack size. The new
// thread runs at some later schedule; the caller keeps the CPU.
//
// Allocation failures are fatal to the caller.
func (c *Context) Spawn(t Task) ThreadID {
	return c.SpawnStack(t, 0)
}

// SpawnStack is like Spawn with an explicit stack size in bytes.
func (c *Context) SpawnStack(t Task, size int) ThreadID {
	c.mustRun()
	id, err := c.k.spawn(t, size)
	if err != nil {
		panic(err)
	}
	return id
}

// Send delivers a message to a thread mailbox. It never blocks.
func (c *Context) Send(to ThreadID, kind uint16, payload []byte) bool {
	return c.SendResult(to, kind, payload) == SendOK
}

// SendResult is like Send but reports why a message was not delivered.
func (c *Context) SendResult(to ThreadID, kind uint16, payload []byte) SendResult {
	c.mustRun()
	return c.k.send(c.id, to, kind, payload)
}

// Recv returns the oldest message for this thread, blocking until one arrives.
func (c *Context) Recv() Message {
	c.mustRun()
	return c.k.recv(c)
}

// TryRecv returns the oldest message without blocking.
func (c *Context) TryRecv() (Message, bool) {
	c.mustRun()
	return c.k.tryRecv(c)
}

// Exit terminates the calling thread. Deferred calls run first.
func (c *Context) Exit() {
	c.mustRun()
	runtime.Goexit()
}
