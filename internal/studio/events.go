package studio

import (
	"sync"
	"time"

	"github.com/kubiyabot/storyboard/internal/generation"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/storyboard"
)

// EventType names a studio state change
type EventType string

const (
	EventStoryboard EventType = "storyboard"
	EventScene      EventType = "scene"
	EventState      EventType = "generation"
	EventSettings   EventType = "settings"
	EventBatch      EventType = "batch"
	// EventSceneDone is published once per scene during GenerateAll
	EventSceneDone EventType = "scene-done"
)

// Event is pushed to subscribers (the web UI turns them into SSE messages)
type Event struct {
	Type         EventType                  `json:"type"`
	SceneID      int                        `json:"sceneId,omitempty"`
	Media        media.Type                 `json:"media,omitempty"`
	State        generation.State           `json:"state,omitempty"`
	PredictionID string                     `json:"predictionId,omitempty"`
	Scene        *storyboard.Scene          `json:"scene,omitempty"`
	Storyboard   *storyboard.StoryboardData `json:"storyboard,omitempty"`
	Batch        *BatchReport               `json:"batch,omitempty"`
	Outcome      *Outcome                   `json:"outcome,omitempty"`
	Error        string                     `json:"error,omitempty"`
	Time         time.Time                  `json:"time"`
}

// EventSink receives studio events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(Event)

// Publish calls f(e)
func (f EventSinkFunc) Publish(e Event) { f(e) }

type nopSink struct{}

func (nopSink) Publish(Event) {}

// Recorder is an EventSink that keeps every event; used by the CLI for summaries
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish stores e
func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
