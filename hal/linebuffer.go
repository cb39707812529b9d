package hal

import (
	"strings"
	"sync"
)

// LineBuffer is a Logger that keeps every line in memory.
type LineBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *LineBuffer) WriteLineString(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, s)
}

func (b *LineBuffer) WriteLineBytes(p []byte) {
	b.WriteLineString(string(p))
}

// Lines returns a copy of the collected lines.
func (b *LineBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// String joins the collected lines, each terminated by a newline.
func (b *LineBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == 0 {
		return ""
	}
	return strings.Join(b.lines, "\n") + "\n"
}
