package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/kubiyabot/storyboard/internal/types"
)

// OutputMode represents the output style
type OutputMode = types.OutputMode

const (
	OutputModeInteractive = types.OutputModeInteractive
	OutputModeCI          = types.OutputModeCI
)

var (
	successMark = color.New(color.FgGreen, color.Bold).SprintFunc()
	errorMark   = color.New(color.FgRed, color.Bold).SprintFunc()
	warnMark    = color.New(color.FgYellow).SprintFunc()
	infoMark    = color.New(color.FgMagenta).SprintFunc()
)

// ProgressManager manages output mode and creates appropriate indicators
type ProgressManager struct {
	mode   OutputMode
	mu     sync.Mutex
	writer io.Writer
}

// NewProgressManager creates a new progress manager with auto-detected mode
func NewProgressManager() *ProgressManager {
	mode := OutputModeInteractive
	if IsCI() {
		mode = OutputModeCI
	}
	return NewProgressManagerWithWriter(mode, os.Stderr)
}

// NewProgressManagerWithWriter creates a progress manager with explicit mode and writer
func NewProgressManagerWithWriter(mode OutputMode, w io.Writer) *ProgressManager {
	return &ProgressManager{
		mode:   mode,
		writer: w,
	}
}

// Mode returns the current output mode
func (pm *ProgressManager) Mode() OutputMode {
	return pm.mode
}

// Spinner creates a new spinner with the given message
func (pm *ProgressManager) Spinner(message string) *Spinner {
	return newSpinner(message, pm.mode, pm.writer)
}

// ProgressBar creates a new progress bar
func (pm *ProgressManager) ProgressBar(total int, message string) *ProgressBar {
	return newProgressBar(total, message, pm.mode, pm.writer)
}

// Phase creates a phase indicator
func (pm *ProgressManager) Phase(name string) *PhaseIndicator {
	return &PhaseIndicator{
		name: name,
		pm:   pm,
	}
}

// Printf prints a formatted message
func (pm *ProgressManager) Printf(format string, args ...interface{}) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	fmt.Fprintf(pm.writer, format, args...)
}

// Success prints a success message
func (pm *ProgressManager) Success(message string) {
	pm.line("✓", "OK", successMark, message)
}

// Error prints an error message
func (pm *ProgressManager) Error(message string) {
	pm.line("✗", "ERROR", errorMark, message)
}

// Info prints an informational message
func (pm *ProgressManager) Info(message string) {
	pm.line("ℹ", "INFO", infoMark, message)
}

// Warning prints a warning message
func (pm *ProgressManager) Warning(message string) {
	pm.line("⚠", "WARNING", warnMark, message)
}

func (pm *ProgressManager) line(icon, label string, paint func(...interface{}) string, message string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.mode == OutputModeInteractive {
		fmt.Fprintf(pm.writer, "%s %s\n", paint(icon), message)
		return
	}
	fmt.Fprintf(pm.writer, "%s: %s\n", label, message)
}

// PhaseIndicator represents a phase in a multi-step process
type PhaseIndicator struct {
	name string
	pm   *ProgressManager
}

// Start starts the phase
func (pi *PhaseIndicator) Start() {
	if pi.pm.mode == OutputModeInteractive {
		pi.pm.Printf("▶ %s\n", pi.name)
	} else {
		pi.pm.Printf("==> %s\n", pi.name)
	}
}

// Complete marks the phase as complete
func (pi *PhaseIndicator) Complete() {
	if pi.pm.mode == OutputModeInteractive {
		pi.pm.Printf("%s %s completed\n", successMark("✓"), pi.name)
	} else {
		pi.pm.Printf("==> %s: DONE\n", pi.name)
	}
}

// Fail marks the phase as failed
func (pi *PhaseIndicator) Fail(err error) {
	if pi.pm.mode == OutputModeInteractive {
		pi.pm.Printf("%s %s failed: %v\n", errorMark("✗"), pi.name, err)
	} else {
		pi.pm.Printf("==> %s: FAILED: %v\n", pi.name, err)
	}
}
