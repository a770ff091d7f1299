package streaming

import (
	"fmt"
	"sync"

	"github.com/kubiyabot/storyboard/internal/studio"
)

// EventFilter may rewrite an event or drop it by returning false
type EventFilter interface {
	Filter(event studio.Event) (studio.Event, bool)
}

// Pipeline runs events through filters before rendering them
type Pipeline struct {
	renderer Renderer
	filters  []EventFilter
	mu       sync.Mutex
}

// NewPipeline creates a Pipeline rendering to renderer
func NewPipeline(renderer Renderer) *Pipeline {
	return &Pipeline{renderer: renderer}
}

// AddFilter appends a filter
func (p *Pipeline) AddFilter(filter EventFilter) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = append(p.filters, filter)
	return p
}

// Render implements Renderer
func (p *Pipeline) Render(event studio.Event) error {
	p.mu.Lock()
	filters := append([]EventFilter(nil), p.filters...)
	p.mu.Unlock()

	for _, f := range filters {
		var pass bool
		if event, pass = f.Filter(event); !pass {
			return nil
		}
	}
	return p.renderer.Render(event)
}

// Close implements Renderer
func (p *Pipeline) Close() error {
	return p.renderer.Close()
}

// PayloadFilter drops whole-board snapshots and settings changes and strips
// scene bodies from scene events
type PayloadFilter struct{}

// NewPayloadFilter creates a PayloadFilter
func NewPayloadFilter() *PayloadFilter {
	return &PayloadFilter{}
}

// Filter implements EventFilter
func (PayloadFilter) Filter(event studio.Event) (studio.Event, bool) {
	switch event.Type {
	case studio.EventStoryboard, studio.EventSettings:
		return event, false
	case studio.EventScene:
		event.Scene = nil
	}
	return event, true
}

// DeduplicationFilter skips an event identical in kind to the previous one
// for the same scene slot, which collapses repeated polling ticks
type DeduplicationFilter struct {
	mu   sync.Mutex
	last map[string]string
}

// NewDeduplicationFilter creates a DeduplicationFilter
func NewDeduplicationFilter() *DeduplicationFilter {
	return &DeduplicationFilter{last: map[string]string{}}
}

// Filter implements EventFilter
func (f *DeduplicationFilter) Filter(event studio.Event) (studio.Event, bool) {
	if event.Type != studio.EventState {
		return event, true
	}
	slot := fmt.Sprintf("%d/%s", event.SceneID, event.Media)
	key := event.PredictionID + ":" + string(event.State)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last[slot] == key {
		return event, false
	}
	f.last[slot] = key
	return event, true
}
