package app

import (
	"fmt"
	"strings"

	"green/hal"
	"green/kernel"
)

func installPanicHandler(h hal.HAL) {
	kernel.SetPanicHandler(func(info kernel.PanicInfo) {
		l := h.Logger()
		if l == nil {
			return
		}
		for _, line := range panicLines(info) {
			l.WriteLineString(line)
		}
	})
}

func panicLines(info kernel.PanicInfo) []string {
	lines := []string{fmt.Sprintf("Green Panic: thread=%d panic=%v", info.ThreadID, info.Value)}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
