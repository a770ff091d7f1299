// Package streaming renders studio events as they happen, either as
// formatted text lines for people or as newline-delimited JSON for tools.
package streaming

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/kubiyabot/storyboard/internal/studio"
)

// Renderer writes studio events to an output
type Renderer interface {
	// Render writes a single event
	Render(event studio.Event) error

	// Close performs final writes
	Close() error
}

// Format is the event output format
type Format string

const (
	// FormatAuto picks text on a terminal and JSON otherwise
	FormatAuto Format = "auto"
	// FormatText writes one formatted line per event
	FormatText Format = "text"
	// FormatJSON writes newline-delimited JSON
	FormatJSON Format = "json"
)

// ParseFormat maps a flag value onto a Format; "" is FormatAuto
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown event format %q (want auto, text or json)", s)
}

// Options configures NewRenderer
type Options struct {
	Format Format
	// Verbose keeps storyboard and scene payloads and repeated polling ticks
	Verbose bool
	// Out is where events go, stderr when nil
	Out io.Writer
}

// NewRenderer builds the renderer for opts behind the default filters
func NewRenderer(opts Options) Renderer {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	format := opts.Format
	if format == "" || format == FormatAuto {
		format = FormatJSON
		if isTerminal(out) {
			format = FormatText
		}
	}

	var r Renderer
	if format == FormatJSON {
		r = NewJSONRenderer(out)
	} else {
		r = NewTextRenderer(out, opts.Verbose)
	}

	p := NewPipeline(r)
	if !opts.Verbose {
		p.AddFilter(NewPayloadFilter()).AddFilter(NewDeduplicationFilter())
	}
	return p
}

// EventSink publishes studio events to a Renderer. The first render error
// is kept and later events are dropped.
type EventSink struct {
	mu  sync.Mutex
	r   Renderer
	err error
}

// Sink adapts r to a studio.EventSink
func Sink(r Renderer) *EventSink {
	return &EventSink{r: r}
}

// Publish implements studio.EventSink
func (s *EventSink) Publish(e studio.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = s.r.Render(e)
}

// Err is the first render error
func (s *EventSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
