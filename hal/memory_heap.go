package hal

import "fmt"

type heapMemory struct {
	page int
}

// NewHeapMemory returns Memory backed by ordinary Go allocations.
//
// Protect always fails with ErrNotImplemented, so callers must bounds-check
// instead of relying on a fault.
func NewHeapMemory(pageSize int) Memory {
	if pageSize <= 0 {
		pageSize = 4096
	}
	return heapMemory{page: pageSize}
}

func (m heapMemory) PageSize() int { return m.page }

func (m heapMemory) Map(size int) ([]byte, error) {
	if size <= 0 || size%m.page != 0 {
		return nil, fmt.Errorf("hal: map %d bytes: not a multiple of page size %d", size, m.page)
	}
	return make([]byte, size), nil
}

func (heapMemory) Protect([]byte) error { return ErrNotImplemented }

func (heapMemory) Unmap([]byte) error { return nil }
