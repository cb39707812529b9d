// Package stack allocates fixed-size, guard-protected stack slabs.
//
// Slabs are addressed by opaque handles rather than pointers so that a
// terminated thread's stack can be queued and released later by someone else.
package stack

import (
	"errors"
	"fmt"

	"green/hal"
)

var (
	ErrInvalidSize   = errors.New("stack: invalid size")
	ErrInvalidHandle = errors.New("stack: invalid handle")
	ErrOverflow      = errors.New("stack: overflow")
	ErrUnderflow     = errors.New("stack: underflow")
	ErrFreed         = errors.New("stack: use after free")
)

// Handle identifies one slab. The zero Handle is never valid.
type Handle uint32

type slot struct {
	st *Stack
}

// Allocator hands out stack slabs from hal.Memory.
//
// It is not safe for concurrent use; the kernel only touches it from the
// running thread.
type Allocator struct {
	mem   hal.Memory
	slots []slot
	free  []Handle
	live  int
}

// NewAllocator returns an allocator backed by mem.
func NewAllocator(mem hal.Memory) *Allocator {
	return &Allocator{mem: mem}
}

// PageSize returns the guard page size.
func (a *Allocator) PageSize() int { return a.mem.PageSize() }

// Live returns the number of allocated slabs.
func (a *Allocator) Live() int { return a.live }

// Allocate maps size bytes (rounded up to whole pages) plus one guard page.
func (a *Allocator) Allocate(size int) (Handle, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	page := a.mem.PageSize()
	usable := (size + page - 1) / page * page
	if usable < size {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	region, err := a.mem.Map(page + usable)
	if err != nil {
		return 0, fmt.Errorf("stack: map %d bytes: %w", page+usable, err)
	}
	guarded := true
	if err := a.mem.Protect(region[:page]); err != nil {
		if !errors.Is(err, hal.ErrNotImplemented) {
			_ = a.mem.Unmap(region)
			return 0, fmt.Errorf("stack: protect guard page: %w", err)
		}
		guarded = false
	}

	st := newStack(region, page, guarded)
	var h Handle
	if n := len(a.free); n > 0 {
		h = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[h-1] = slot{st: st}
	} else {
		a.slots = append(a.slots, slot{st: st})
		h = Handle(len(a.slots))
	}
	a.live++
	return h, nil
}

// Stack returns the stack for h, or nil if h is not allocated.
func (a *Allocator) Stack(h Handle) *Stack {
	if h == 0 || int(h) > len(a.slots) {
		return nil
	}
	return a.slots[h-1].st
}

// Free unmaps the slab. Nothing may be executing on it.
func (a *Allocator) Free(h Handle) error {
	st := a.Stack(h)
	if st == nil {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	region := st.region
	st.release()
	a.slots[h-1] = slot{}
	a.free = append(a.free, h)
	a.live--
	if err := a.mem.Unmap(region); err != nil {
		return fmt.Errorf("stack: unmap handle %d: %w", h, err)
	}
	return nil
}
