//go:build !unix

package hal

// NewMemory returns heap-backed memory; guard pages are not available.
func NewMemory() Memory {
	return NewHeapMemory(4096)
}
