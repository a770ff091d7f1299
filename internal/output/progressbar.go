package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressBar counts finished scenes of a batch. Safe for concurrent use.
type ProgressBar struct {
	mu      sync.Mutex
	total   int
	current int
	message string
	mode    OutputMode
	writer  io.Writer
	width   int
	lastPct int
}

func newProgressBar(total int, message string, mode OutputMode, w io.Writer) *ProgressBar {
	return &ProgressBar{
		total:   total,
		message: message,
		mode:    mode,
		writer:  w,
		width:   40,
		lastPct: -1,
	}
}

// Increment advances the bar by one
func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.current < pb.total {
		pb.current++
	}
	pb.render()
}

// SetMessage updates the progress bar message
func (pb *ProgressBar) SetMessage(message string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.message = message
	pb.render()
}

// Finish completes the progress bar
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = pb.total
	pb.render()
	if pb.mode == OutputModeInteractive {
		fmt.Fprintln(pb.writer)
	}
}

// Current returns the number of finished steps
func (pb *ProgressBar) Current() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.current
}

func (pb *ProgressBar) render() {
	pct := 100
	if pb.total > 0 {
		pct = pb.current * 100 / pb.total
	}

	if pb.mode == OutputModeCI {
		// quarter steps only
		if (pct%25 == 0 || pb.current == pb.total) && pct != pb.lastPct {
			fmt.Fprintf(pb.writer, "%s: %d/%d (%d%%)\n", pb.message, pb.current, pb.total, pct)
			pb.lastPct = pct
		}
		return
	}

	filled := pct * pb.width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)
	fmt.Fprintf(pb.writer, "\r%s [%s] %d/%d", pb.message, bar, pb.current, pb.total)
}
