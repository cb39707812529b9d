package kernel

const ringMinSlots = 8

// ring is an unbounded FIFO: push appends at tail, pop removes from head.
type ring[T any] struct {
	head  int
	tail  int
	slots []T
}

func (r *ring[T]) len() int { return r.tail - r.head }

func (r *ring[T]) push(v T) {
	if r.len() == len(r.slots) {
		r.grow()
	}
	r.slots[r.tail%len(r.slots)] = v
	r.tail++
}

func (r *ring[T]) pop() (T, bool) {
	var zero T
	if r.head == r.tail {
		return zero, false
	}
	i := r.head % len(r.slots)
	v := r.slots[i]
	r.slots[i] = zero
	r.head++
	if r.head == r.tail {
		r.head, r.tail = 0, 0
	}
	return v, true
}

// snapshot returns the queued values oldest first.
func (r *ring[T]) snapshot() []T {
	out := make([]T, 0, r.len())
	for i := r.head; i < r.tail; i++ {
		out = append(out, r.slots[i%len(r.slots)])
	}
	return out
}

func (r *ring[T]) grow() {
	n := 2 * len(r.slots)
	if n < ringMinSlots {
		n = ringMinSlots
	}
	count := r.len()
	slots := make([]T, n)
	for i := 0; i < count; i++ {
		slots[i] = r.slots[(r.head+i)%len(r.slots)]
	}
	r.slots = slots
	r.head = 0
	r.tail = count
}
