package webui

import (
	"time"

	"github.com/kubiyabot/storyboard/internal/catalog"
	"github.com/kubiyabot/storyboard/internal/config"
	"github.com/kubiyabot/storyboard/internal/generation"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/storyboard"
)

// LogLevel represents log severity
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelSuccess LogLevel = "SUCCESS"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
}

// LogFilter contains log filtering options
type LogFilter struct {
	Level     LogLevel   `json:"level,omitempty"`
	Component string     `json:"component,omitempty"`
	Search    string     `json:"search,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// SSEEventType represents the type of SSE event. Studio event types are
// forwarded as they are.
type SSEEventType string

const (
	SSEEventLog       SSEEventType = "log"
	SSEEventHeartbeat SSEEventType = "heartbeat"
	SSEEventSnapshot  SSEEventType = "snapshot"
	SSEEventCatalog   SSEEventType = "catalog"
)

// SSEEvent is one message on /api/events
type SSEEvent struct {
	Type SSEEventType `json:"type"`
	Data interface{}  `json:"data"`
}

// HealthStatus represents the health of a component
type HealthStatus struct {
	Status    string    `json:"status"` // ok, degraded, error
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthResponse is returned by /api/health
type HealthResponse struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     time.Duration           `json:"uptime"`
	UptimeStr  string                  `json:"uptime_formatted"`
	Models     int                     `json:"models"`
	Components map[string]HealthStatus `json:"components"`
}

// ConfigResponse is returned by /api/config
type ConfigResponse struct {
	config.Public
	Settings storyboard.Settings `json:"settings"`
	Version  string              `json:"version"`
}

// RecentActivity is a finished generation shown in the history panel
type RecentActivity struct {
	SceneID      int              `json:"sceneId"`
	Media        media.Type       `json:"media"`
	State        generation.State `json:"state"`
	PredictionID string           `json:"predictionId,omitempty"`
	Error        string           `json:"error,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// GenerationsResponse is returned by /api/generations
type GenerationsResponse struct {
	Active []generation.ActiveGeneration `json:"active"`
	Recent []RecentActivity              `json:"recent"`
}

// CreateStoryboardRequest is the body of POST /api/storyboard
type CreateStoryboardRequest struct {
	Prompt string            `json:"prompt"`
	Format storyboard.Format `json:"format"`
	Mode   storyboard.Mode   `json:"mode"`
}

// GenerateAllRequest is the optional body of POST /api/generate-all/{media}
type GenerateAllRequest struct {
	Policy string `json:"policy"`
}

// SyncRequest is the optional body of POST /api/models/sync
type SyncRequest struct {
	Pages   int      `json:"pages"`
	Queries []string `json:"queries"`
}

// ModelsResponse is returned by the model endpoints
type ModelsResponse struct {
	Models []catalog.ModelConfig `json:"models"`
	Count  int                   `json:"count"`
}

// CancelResponse is returned by /api/cancel
type CancelResponse struct {
	Canceled bool `json:"canceled"`
}
