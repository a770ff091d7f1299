package output

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner shows progress of a single generation
type Spinner struct {
	spinner *spinner.Spinner
	mode    OutputMode
	message string
	writer  io.Writer
}

func newSpinner(message string, mode OutputMode, w io.Writer) *Spinner {
	s := &Spinner{
		mode:    mode,
		message: message,
		writer:  w,
	}

	if mode == OutputModeInteractive {
		s.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.spinner.Suffix = " " + message
		s.spinner.Writer = w
		_ = s.spinner.Color("magenta", "bold")
	}

	return s
}

// Start starts the spinner
func (s *Spinner) Start() {
	if s.spinner != nil {
		s.spinner.Start()
		return
	}
	fmt.Fprintf(s.writer, "%s...\n", s.message)
}

// Stop stops the spinner
func (s *Spinner) Stop() {
	if s.spinner != nil {
		s.spinner.Stop()
	}
}

// Success stops the spinner and shows a success message
func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "%s %s\n", successMark("✓"), message)
}

// Fail stops the spinner and shows a failure message
func (s *Spinner) Fail(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "%s %s\n", errorMark("✗"), message)
}

// UpdateMessage updates the spinner message; in CI mode each update is printed
func (s *Spinner) UpdateMessage(message string) {
	if message == s.message {
		return
	}
	s.message = message
	if s.spinner != nil {
		s.spinner.Lock()
		s.spinner.Suffix = " " + message
		s.spinner.Unlock()
		return
	}
	fmt.Fprintf(s.writer, "%s\n", message)
}
