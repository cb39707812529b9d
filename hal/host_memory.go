//go:build unix

package hal

import "golang.org/x/sys/unix"

type hostMemory struct {
	page int
}

// NewMemory returns anonymous private mappings with PROT_NONE guard support.
func NewMemory() Memory {
	return hostMemory{page: unix.Getpagesize()}
}

func (m hostMemory) PageSize() int { return m.page }

func (m hostMemory) Map(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func (m hostMemory) Protect(b []byte) error {
	return unix.Mprotect(b, unix.PROT_NONE)
}

func (m hostMemory) Unmap(b []byte) error {
	return unix.Munmap(b)
}
