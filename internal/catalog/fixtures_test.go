package catalog

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/kubiyabot/storyboard/internal/params"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

const (
	promptOnlyInputs = `{"prompt": {"type": "string", "x-order": 0}}`
	uriOutput        = `{"type": "string", "format": "uri"}`
	arrayOutput      = `{"type": "array", "items": {"type": "string", "format": "uri"}}`
)

type entryOption func(*RawEntry)

func withDescription(d string) entryOption {
	return func(e *RawEntry) { e.Description = &d }
}

func withoutDescription() entryOption {
	return func(e *RawEntry) { e.Description = nil }
}

func withRuns(n int64) entryOption {
	return func(e *RawEntry) { e.RunCount = n }
}

func withSchema(inputs, output string) entryOption {
	return withSchemaExtras(inputs, output, "")
}

// withSchemaExtras adds extra components.schemas members, e.g. enum definitions
func withSchemaExtras(inputs, output, extras string) entryOption {
	return func(e *RawEntry) {
		if extras != "" {
			extras = ", " + extras
		}
		doc := fmt.Sprintf(
			`{"components": {"schemas": {"Input": {"type": "object", "properties": %s}, "Output": %s%s}}}`,
			inputs, output, extras,
		)
		e.LatestVersion.OpenAPISchema = json.RawMessage(doc)
	}
}

func withoutSchema() entryOption {
	return func(e *RawEntry) { e.LatestVersion.OpenAPISchema = nil }
}

func withExampleOutput(raw string) entryOption {
	return func(e *RawEntry) {
		if e.DefaultExample == nil {
			e.DefaultExample = &Example{}
		}
		e.DefaultExample.Output = json.RawMessage(raw)
	}
}

func withExampleInput(in map[string]interface{}) entryOption {
	return func(e *RawEntry) {
		if e.DefaultExample == nil {
			e.DefaultExample = &Example{}
		}
		e.DefaultExample.Input = in
	}
}

func withVersionAge(age time.Duration) entryOption {
	return func(e *RawEntry) {
		e.LatestVersion.CreatedAt = testNow.Add(-age).Format(time.RFC3339Nano)
	}
}

func withVersionID(id string) entryOption {
	return func(e *RawEntry) { e.LatestVersion.ID = id }
}

func newEntry(owner, name string, opts ...entryOption) RawEntry {
	desc := "A general purpose generator with plenty of settings"
	e := RawEntry{
		Owner:       owner,
		Name:        name,
		Description: &desc,
		RunCount:    5000,
		LatestVersion: &Version{
			ID:        "v-" + name,
			CreatedAt: testNow.Add(-365 * 24 * time.Hour).Format(time.RFC3339Nano),
		},
	}
	withSchema(promptOnlyInputs, uriOutput)(&e)
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func testNormalizer() *Normalizer {
	n := NewNormalizer(nil)
	n.now = func() time.Time { return testNow }
	return n
}

func mustParam(t *testing.T, p params.Params, key string) params.Value {
	t.Helper()
	v, ok := p[key]
	if !ok {
		t.Fatalf("param %q not set", key)
	}
	return v
}
