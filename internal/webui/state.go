package webui

import (
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/kubiyabot/storyboard/internal/generation"
	"github.com/kubiyabot/storyboard/internal/pterm"
	"github.com/kubiyabot/storyboard/internal/studio"
)

const (
	// MaxRecentLogs is the maximum number of logs to keep in memory
	MaxRecentLogs = 1000
	// MaxRecentActivity is the maximum number of finished generations to keep
	MaxRecentActivity = 50
	// DefaultSubscriberBuffer is the buffer size for SSE subscribers
	DefaultSubscriberBuffer = 100
)

// ring keeps the last cap values pushed into it
type ring[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	full  bool
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[r.next] = v
	r.next++
	if r.next == len(r.items) {
		r.next, r.full = 0, true
	}
}

func (r *ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.items)
	}
	return r.next
}

// Oldest returns every value, oldest first
func (r *ring[T]) Oldest() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		return append([]T(nil), r.items[:r.next]...)
	}
	return append(append([]T(nil), r.items[r.next:]...), r.items[:r.next]...)
}

// Newest returns up to n values, newest first; n <= 0 returns all
func (r *ring[T]) Newest(n int) []T {
	all := r.Oldest()
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out := make([]T, n)
	for i := range out {
		out[i] = all[len(all)-1-i]
	}
	return out
}

// filterLogs applies f to entries, oldest first, keeping the newest f.Limit
func filterLogs(entries []LogEntry, f LogFilter) []LogEntry {
	search := strings.ToLower(f.Search)
	out := lo.Filter(entries, func(e LogEntry, _ int) bool {
		return (f.Level == "" || e.Level == f.Level) &&
			(f.Component == "" || e.Component == f.Component) &&
			(f.Since == nil || !e.Timestamp.Before(*f.Since)) &&
			(search == "" || strings.Contains(strings.ToLower(e.Message), search))
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// State holds the in-memory state for the web UI: the log buffer, the
// generation history and the SSE subscribers. It is the studio's EventSink.
type State struct {
	startTime time.Time
	logs      *ring[LogEntry]
	history   *ring[RecentActivity]

	subscribersMu sync.RWMutex
	subscribers   map[chan SSEEvent]struct{}
}

var _ studio.EventSink = (*State)(nil)

// NewState creates a new state instance
func NewState() *State {
	return &State{
		startTime:   time.Now(),
		logs:        newRing[LogEntry](MaxRecentLogs),
		history:     newRing[RecentActivity](MaxRecentActivity),
		subscribers: make(map[chan SSEEvent]struct{}),
	}
}

// Publish forwards a studio event to every subscriber and records finished
// generations
func (s *State) Publish(e studio.Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Type == studio.EventState {
		switch e.State {
		case generation.StateSucceeded, generation.StateFailed, generation.StateCanceled:
			s.AddActivity(RecentActivity{
				SceneID:      e.SceneID,
				Media:        e.Media,
				State:        e.State,
				PredictionID: e.PredictionID,
				Error:        e.Error,
				Timestamp:    e.Time,
			})
		}
	}
	s.Broadcast(SSEEvent{Type: SSEEventType(e.Type), Data: e})
}

// LogHook returns a logger hook that captures lines for /api/logs
func (s *State) LogHook(component string) pterm.Hook {
	return func(level pterm.Level, line string) {
		s.AddLog(LogEntry{
			Timestamp: time.Now(),
			Level:     LogLevel(strings.ToUpper(string(level))),
			Component: component,
			Message:   line,
		})
	}
}

// AddLog adds a log entry
func (s *State) AddLog(entry LogEntry) {
	s.logs.Push(entry)
	s.Broadcast(SSEEvent{Type: SSEEventLog, Data: entry})
}

// GetLogs returns filtered logs
func (s *State) GetLogs(filter LogFilter) []LogEntry {
	return filterLogs(s.logs.Oldest(), filter)
}

// AddActivity records a finished generation
func (s *State) AddActivity(activity RecentActivity) {
	s.history.Push(activity)
}

// GetRecentActivity returns up to n finished generations, newest first
func (s *State) GetRecentActivity(n int) []RecentActivity {
	return s.history.Newest(n)
}

// Uptime is the time since the state was created
func (s *State) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Subscribe creates a new SSE subscription
func (s *State) Subscribe() chan SSEEvent {
	ch := make(chan SSEEvent, DefaultSubscriberBuffer)
	s.subscribersMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subscribersMu.Unlock()
	return ch
}

// Unsubscribe removes an SSE subscription
func (s *State) Unsubscribe(ch chan SSEEvent) {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// SubscriberCount returns the number of open SSE streams
func (s *State) SubscriberCount() int {
	s.subscribersMu.RLock()
	defer s.subscribersMu.RUnlock()
	return len(s.subscribers)
}

// Broadcast sends an event to all subscribers without blocking
func (s *State) Broadcast(event SSEEvent) {
	s.subscribersMu.RLock()
	defer s.subscribersMu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// slow subscriber, drop
		}
	}
}

// uptime renders d to the second
func uptime(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
