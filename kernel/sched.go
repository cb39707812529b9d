package kernel

import (
	"fmt"
	"sort"
)

func (k *Kernel) spawn(t Task, size int) (ThreadID, error) {
	if t == nil {
		return 0, ErrNilTask
	}
	if size <= 0 {
		size = k.cfg.StackSize
	}
	live := len(k.contexts) - 1
	if live >= k.cfg.MaxThreads {
		return 0, fmt.Errorf("%w: limit %d", ErrTooManyThreads, k.cfg.MaxThreads)
	}
	if k.nextID == maxThreadID {
		return 0, ErrIDSpaceExhausted
	}

	h, err := k.stacks.Allocate(size)
	if err != nil {
		return 0, fmt.Errorf("kernel: spawn: %w", err)
	}

	id := k.nextID
	k.nextID++
	c := &Context{
		k:      k,
		id:     id,
		task:   t,
		handle: h,
		stack:  k.stacks.Stack(h),
		regs:   newRegisters(),
		state:  StateReady,
	}
	k.contexts[id] = c
	k.runq.push(id)
	k.stats.Spawned++
	if live+1 > k.stats.PeakThreads {
		k.stats.PeakThreads = live + 1
	}
	k.tracef("spawn %d by %d", id, k.current.id)

	go k.trampoline(c)
	return id, nil
}

// trampoline is the goroutine body of every logical thread. It parks until
// the first switch-in, runs the task, and always ends in terminate or fail.
func (k *Kernel) trampoline(c *Context) {
	defer close(c.regs.done)
	c.regs.park()
	k.freeUnused()

	finished := false
	defer func() {
		if c.aborted {
			recover()
			return
		}
		if r := recover(); r != nil {
			k.fail(c, r, captureStack())
			return
		}
		if !finished {
			k.tracef("exit %d early", c.id)
		}
		k.terminate(c)
	}()
	c.task.Run(c)
	finished = true
}

// schedule hands the CPU to the head of the run queue, or back to main when
// nothing is runnable. The caller has already put itself wherever it belongs
// (run queue, waiting set, or nowhere when terminated).
func (k *Kernel) schedule() {
	from := k.current
	to := k.main
	if id, ok := k.runq.pop(); ok {
		to = k.contexts[id]
	}

	to.state = StateRunning
	if to == from {
		return
	}
	k.current = to
	k.stats.Switches++
	k.tracef("switch %d -> %d", from.id, to.id)

	if from.state == StateTerminated {
		switchTo(&to.regs)
		return
	}
	saveAndSwitch(&from.regs, &to.regs)
	// Whoever resumes (or starts, in trampoline) drains the deferred frees
	// before running its own code, so no dead stack outlives the next switch.
	k.freeUnused()
}

func (k *Kernel) yield(c *Context) {
	c.state = StateReady
	k.runq.push(c.id)
	k.stats.Yields++
	k.schedule()
}

// retire removes c from the tables and queues its stack for deferred free.
// c is still executing on that stack, so the next context frees it.
func (k *Kernel) retire(c *Context) {
	c.state = StateTerminated
	delete(k.contexts, c.id)
	delete(k.waiting, c.id)
	if mb := k.mailboxes[c.id]; mb != nil {
		k.stats.Discarded += uint64(mb.len())
		delete(k.mailboxes, c.id)
	}
	k.unused.push(c.handle)
	k.stats.Terminated++
}

func (k *Kernel) terminate(c *Context) {
	k.retire(c)
	k.tracef("exit %d", c.id)
	k.schedule()
}

// fail records a thread panic and returns straight to main; nothing else
// runs after a fault.
func (k *Kernel) fail(c *Context, value any, stack []byte) {
	info := PanicInfo{ThreadID: c.id, Value: value, Stack: stack}
	k.fault = &PanicError{Info: info}
	k.notifyPanic(info)
	k.retire(c)
	k.tracef("panic %d: %v", c.id, value)

	k.current = k.main
	k.main.state = StateRunning
	k.stats.Switches++
	switchTo(&k.main.regs)
}

// freeUnused releases stacks of contexts that have switched away for good.
func (k *Kernel) freeUnused() {
	for {
		h, ok := k.unused.pop()
		if !ok {
			return
		}
		if err := k.stacks.Free(h); err != nil {
			panic(fmt.Errorf("kernel: free stack: %w", err))
		}
		k.stats.StacksFreed++
	}
}

// abortAll unwinds every parked thread. Only main may call it, after Run's
// schedule has returned.
func (k *Kernel) abortAll() {
	ids := make([]ThreadID, 0, len(k.contexts))
	for id := range k.contexts {
		if id != MainID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		c := k.contexts[id]
		c.aborted = true
		abort(&c.regs)
		k.retire(c)
		k.tracef("abort %d", id)
	}
	for {
		if _, ok := k.runq.pop(); !ok {
			break
		}
	}
	k.freeUnused()
}
