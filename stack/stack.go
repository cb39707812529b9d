package stack

import (
	"encoding/binary"
	"unsafe"
)

// Stack is a downward-growing byte stack living in one allocator slab.
//
// The usable region sits directly above a guard page. Push never checks the
// lower bound on guarded stacks: running past the bottom writes into the
// guard page and faults.
type Stack struct {
	region  []byte
	guard   int
	guarded bool
	sp      int
}

func newStack(region []byte, guard int, guarded bool) *Stack {
	return &Stack{
		region:  region,
		guard:   guard,
		guarded: guarded,
		sp:      len(region) - guard,
	}
}

func (s *Stack) mustLive() {
	if s.region == nil {
		panic(ErrFreed)
	}
}

func (s *Stack) release() {
	s.region = nil
	s.sp = 0
}

// Size returns the usable size in bytes.
func (s *Stack) Size() int {
	if s.region == nil {
		return 0
	}
	return len(s.region) - s.guard
}

// SP returns the offset of the top of stack from the bottom of the usable region.
func (s *Stack) SP() int { return s.sp }

// Used returns the number of bytes currently pushed.
func (s *Stack) Used() int { return s.Size() - s.sp }

// Guarded reports whether the slab has a protected guard page.
func (s *Stack) Guarded() bool { return s.guarded }

// Bytes returns the usable region, bottom first.
func (s *Stack) Bytes() []byte {
	s.mustLive()
	return s.region[s.guard:]
}

// Reset discards everything pushed.
func (s *Stack) Reset() {
	s.mustLive()
	s.sp = s.Size()
}

// InGuard reports whether addr falls inside this stack's guard page.
func (s *Stack) InGuard(addr uintptr) bool {
	if s.region == nil || s.guard == 0 {
		return false
	}
	lo := uintptr(unsafe.Pointer(unsafe.SliceData(s.region)))
	return addr >= lo && addr < lo+uintptr(s.guard)
}

// Push copies b onto the top of the stack.
//
// Bytes are written from the highest address down, so an overflow hits the
// guard page at its top edge first.
func (s *Stack) Push(b []byte) {
	s.mustLive()
	if !s.guarded && len(b) > s.sp {
		panic(ErrOverflow)
	}
	s.sp -= len(b)
	base := unsafe.Add(unsafe.Pointer(unsafe.SliceData(s.region)), s.guard)
	for i := len(b) - 1; i >= 0; i-- {
		*(*byte)(unsafe.Add(base, s.sp+i)) = b[i]
	}
}

// Pop removes n bytes from the top of the stack and returns a copy of them.
func (s *Stack) Pop(n int) []byte {
	s.mustLive()
	if n < 0 || n > s.Used() {
		panic(ErrUnderflow)
	}
	out := make([]byte, n)
	copy(out, s.Bytes()[s.sp:s.sp+n])
	s.sp += n
	return out
}

// PushUint64 pushes v in little-endian order.
func (s *Stack) PushUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	s.Push(buf[:])
}

// PopUint64 pops a value pushed by PushUint64.
func (s *Stack) PopUint64() uint64 {
	return binary.LittleEndian.Uint64(s.Pop(8))
}
