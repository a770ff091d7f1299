package streaming

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/kubiyabot/storyboard/internal/formatter"
	"github.com/kubiyabot/storyboard/internal/generation"
	"github.com/kubiyabot/storyboard/internal/studio"
)

// TextRenderer writes one line per event, prefixed with the time since the
// renderer was created
type TextRenderer struct {
	out     io.Writer
	verbose bool
	start   time.Time
	mu      sync.Mutex

	green, red, yellow, cyan, dim *color.Color
}

// NewTextRenderer creates a TextRenderer; colors are used on terminals only
func NewTextRenderer(out io.Writer, verbose bool) *TextRenderer {
	r := &TextRenderer{
		out:     out,
		verbose: verbose,
		start:   time.Now(),
		green:   color.New(color.FgGreen),
		red:     color.New(color.FgRed),
		yellow:  color.New(color.FgYellow),
		cyan:    color.New(color.FgCyan, color.Bold),
		dim:     color.New(color.Faint),
	}
	if !isTerminal(out) {
		for _, c := range []*color.Color{r.green, r.red, r.yellow, r.cyan, r.dim} {
			c.DisableColor()
		}
	}
	return r
}

// Render implements Renderer
func (r *TextRenderer) Render(event studio.Event) error {
	line := r.line(event)
	if line == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	at := event.Time
	if at.IsZero() {
		at = time.Now()
	}
	stamp := r.dim.Sprintf("[%6.1fs]", at.Sub(r.start).Seconds())
	_, err := fmt.Fprintf(r.out, "%s %s\n", stamp, line)
	return err
}

// Close implements Renderer
func (r *TextRenderer) Close() error {
	return nil
}

func (r *TextRenderer) line(e studio.Event) string {
	slot := r.cyan.Sprintf("scene %d %s", e.SceneID, e.Media)

	switch e.Type {
	case studio.EventState:
		id := r.dim.Sprintf("(%s)", formatter.TruncateID(e.PredictionID))
		switch e.State {
		case generation.StateSubmitted:
			return fmt.Sprintf("%s %s submitted %s", r.yellow.Sprint("→"), slot, id)
		case generation.StatePolling:
			return fmt.Sprintf("%s %s running %s", r.yellow.Sprint("…"), slot, id)
		case generation.StateSucceeded:
			return fmt.Sprintf("%s %s succeeded %s", r.green.Sprint("✓"), slot, id)
		case generation.StateFailed:
			return fmt.Sprintf("%s %s failed %s", r.red.Sprint("✗"), slot, id)
		case generation.StateCanceled:
			return fmt.Sprintf("%s %s canceled %s", r.yellow.Sprint("⊘"), slot, id)
		}
		return fmt.Sprintf("%s %s %s %s", r.dim.Sprint("·"), slot, e.State, id)

	case studio.EventSceneDone:
		o := e.Outcome
		if o == nil {
			return ""
		}
		switch {
		case o.Skipped:
			return fmt.Sprintf("%s %s skipped, already generated", r.dim.Sprint("-"), slot)
		case o.Canceled:
			return fmt.Sprintf("%s %s canceled", r.yellow.Sprint("⊘"), slot)
		case o.Error != "":
			return fmt.Sprintf("%s %s failed: %s", r.red.Sprint("✗"), slot, formatter.TruncateString(o.Error, 120))
		}
		return fmt.Sprintf("%s %s ready in %s %s", r.green.Sprint("✓"), slot, formatter.FormatDuration(o.Elapsed), r.dim.Sprint(o.URL))

	case studio.EventBatch:
		b := e.Batch
		if b == nil {
			return ""
		}
		summary := fmt.Sprintf("%s batch: %d succeeded, %d failed, %d skipped, %d canceled in %s",
			b.Media, b.Succeeded, b.Failed, b.Skipped, b.Canceled, formatter.FormatDuration(b.Elapsed))
		if b.Failed > 0 || b.Canceled > 0 {
			return r.red.Sprint("■ ") + summary
		}
		return r.green.Sprint("■ ") + summary

	case studio.EventScene:
		if !r.verbose {
			return ""
		}
		return fmt.Sprintf("%s scene %d updated", r.dim.Sprint("·"), e.SceneID)

	case studio.EventStoryboard:
		if !r.verbose || e.Storyboard == nil {
			return ""
		}
		return fmt.Sprintf("%s storyboard with %d scenes", r.dim.Sprint("·"), len(e.Storyboard.Scenes))

	case studio.EventSettings:
		if !r.verbose {
			return ""
		}
		return r.dim.Sprint("· settings updated")
	}
	return ""
}
