package catalog

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/params"
)

// MinConfidence is the lowest categorization confidence callers accept
const MinConfidence = 0.4

// RawEntry is a model as returned by the Replicate models API
type RawEntry struct {
	URL            string   `json:"url,omitempty"`
	Owner          string   `json:"owner"`
	Name           string   `json:"name"`
	Description    *string  `json:"description,omitempty"`
	Visibility     string   `json:"visibility,omitempty"`
	RunCount       int64    `json:"run_count"`
	CoverImageURL  *string  `json:"cover_image_url,omitempty"`
	DefaultExample *Example `json:"default_example,omitempty"`
	LatestVersion  *Version `json:"latest_version,omitempty"`
}

// Example is a recorded prediction shown on the model page
type Example struct {
	Input  map[string]interface{} `json:"input,omitempty"`
	Output json.RawMessage        `json:"output,omitempty"`
}

// Version is one published version of a model with its OpenAPI invocation schema
type Version struct {
	ID            string          `json:"id"`
	CreatedAt     string          `json:"created_at"`
	OpenAPISchema json.RawMessage `json:"openapi_schema,omitempty"`
}

// Page is one page of a catalog listing
type Page struct {
	Next     string     `json:"next,omitempty"`
	Previous string     `json:"previous,omitempty"`
	Results  []RawEntry `json:"results"`
}

// ID returns "owner/name"
func (e RawEntry) ID() string {
	return e.Owner + "/" + e.Name
}

// DescriptionText returns the description or "" when absent
func (e RawEntry) DescriptionText() string {
	if e.Description == nil {
		return ""
	}
	return *e.Description
}

// VersionCreated parses the latest version timestamp
func (e RawEntry) VersionCreated() (time.Time, bool) {
	if e.LatestVersion == nil || e.LatestVersion.CreatedAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, e.LatestVersion.CreatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// PricingTier is a rough cost class shown next to a model
type PricingTier string

const (
	PricingFree    PricingTier = "free"
	PricingCheap   PricingTier = "cheap"
	PricingPremium PricingTier = "premium"
)

// Categorization is the categorizer's verdict for one entry
type Categorization struct {
	Category   media.Type `json:"category"`
	Confidence float64    `json:"confidence"`
}

// InputMapping names the schema fields a model uses for each semantic role
type InputMapping struct {
	Prompt string `json:"prompt,omitempty"`
	Image  string `json:"imageUrl,omitempty"`
	Video  string `json:"videoUrl,omitempty"`
}

// ModelConfig is a normalized, invocable model
type ModelConfig struct {
	ID       string     `json:"id"`
	Owner    string     `json:"owner"`
	Name     string     `json:"name"`
	Category media.Type `json:"category"`

	// Endpoint is "owner/name"; Version pins the schema the config was built from
	Endpoint string `json:"endpoint"`
	Version  string `json:"version"`

	InputMapping  InputMapping           `json:"inputMapping"`
	DefaultParams params.Params          `json:"defaultParams"`
	ParamTypes    map[string]params.Type `json:"paramTypes,omitempty"`

	Description       string            `json:"description"`
	RunCount          int64             `json:"runCount"`
	Confidence        float64           `json:"confidence"`
	QualityScore      float64           `json:"qualityScore"`
	Pricing           PricingTier       `json:"pricing"`
	ExamplePrompts    []string          `json:"examplePrompts,omitempty"`
	ParamDescriptions map[string]string `json:"paramDescriptions,omitempty"`
	CoverImageURL     string            `json:"coverImageUrl,omitempty"`
}

// ParseModelRef splits "owner/name" or "owner/name:version"
func ParseModelRef(ref string) (owner, name, version string, ok bool) {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, ":"); i >= 0 {
		version = ref[i+1:]
		ref = ref[:i]
	}
	parts := strings.Split(ref, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], version, true
}
