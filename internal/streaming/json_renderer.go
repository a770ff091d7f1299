package streaming

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/kubiyabot/storyboard/internal/studio"
)

// JSONRenderer writes each event as one JSON line
type JSONRenderer struct {
	out io.Writer
	mu  sync.Mutex
}

// NewJSONRenderer creates a JSONRenderer
func NewJSONRenderer(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Render implements Renderer
func (r *JSONRenderer) Render(event studio.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.out.Write(append(data, '\n'))
	return err
}

// Close flushes the writer when it buffers
func (r *JSONRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.out.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
