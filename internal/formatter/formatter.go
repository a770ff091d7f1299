package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"

	"github.com/kubiyabot/storyboard/internal/catalog"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/storyboard"
	"github.com/kubiyabot/storyboard/internal/style"
)

// TableFormatter handles consistent table output across all commands
type TableFormatter struct {
	writer  *tabwriter.Writer
	headers []string
	rows    [][]string
}

// NewTable creates a new table formatter with styled headers
func NewTable(w io.Writer, headers ...string) *TableFormatter {
	return &TableFormatter{
		writer:  tabwriter.NewWriter(w, 0, 0, 3, ' ', 0),
		headers: headers,
	}
}

// AddRow adds a row to the table
func (t *TableFormatter) AddRow(columns ...string) {
	t.rows = append(t.rows, columns)
}

// Render displays the table with styled headers
func (t *TableFormatter) Render() {
	fmt.Fprintln(t.writer, style.TableHeaderStyle.Render(strings.Join(t.headers, "\t")))
	for _, row := range t.rows {
		fmt.Fprintln(t.writer, strings.Join(row, "\t"))
	}
	t.writer.Flush()
}

// Data returns the header row followed by the rows
func (t *TableFormatter) Data() [][]string {
	return append([][]string{t.headers}, t.rows...)
}

// ModelsTable lists normalized models, best first as given
func ModelsTable(w io.Writer, models []catalog.ModelConfig) {
	if len(models) == 0 {
		fmt.Fprintln(w, style.CreateHelpBox("No models found. Run 'storyboard models list --sync' to pull the catalog."))
		return
	}
	NewModelsTable(w, models).Render()
}

// NewModelsTable fills a models table without rendering it
func NewModelsTable(w io.Writer, models []catalog.ModelConfig) *TableFormatter {
	t := NewTable(w, "MODEL", "CATEGORY", "RUNS", "SCORE", "PRICING", "DESCRIPTION")
	for _, m := range models {
		t.AddRow(
			m.ID,
			string(m.Category),
			FormatRunCount(m.RunCount),
			fmt.Sprintf("%.2f", m.QualityScore),
			string(m.Pricing),
			TruncateString(m.Description, 60),
		)
	}
	return t
}

// ModelDetails renders one model with its parameters
func ModelDetails(w io.Writer, m catalog.ModelConfig) {
	fmt.Fprintln(w, style.CreateBanner(m.ID, "🎬"))
	fields := map[string]string{
		"category":   string(m.Category),
		"endpoint":   m.Endpoint,
		"version":    TruncateID(m.Version),
		"runs":       FormatRunCount(m.RunCount),
		"quality":    fmt.Sprintf("%.2f", m.QualityScore),
		"confidence": fmt.Sprintf("%.2f", m.Confidence),
		"pricing":    string(m.Pricing),
		"prompt":     m.InputMapping.Prompt,
	}
	if m.InputMapping.Image != "" {
		fields["image input"] = m.InputMapping.Image
	}
	if m.InputMapping.Video != "" {
		fields["video input"] = m.InputMapping.Video
	}
	fmt.Fprintln(w, style.CreateMetadataBox(fields))
	if m.Description != "" {
		fmt.Fprintln(w, m.Description)
	}
	if len(m.ParamTypes) == 0 {
		return
	}
	fmt.Fprintln(w)
	t := NewTable(w, "PARAM", "TYPE", "DEFAULT", "DESCRIPTION")
	for _, name := range m.DefaultParams.Keys() {
		t.AddRow(name, string(m.ParamTypes[name]), m.DefaultParams[name].String(), TruncateString(m.ParamDescriptions[name], 50))
	}
	rest := lo.Filter(lo.Keys(m.ParamTypes), func(name string, _ int) bool {
		_, ok := m.DefaultParams[name]
		return !ok
	})
	sort.Strings(rest)
	for _, name := range rest {
		t.AddRow(name, string(m.ParamTypes[name]), style.DimStyle.Render("-"), TruncateString(m.ParamDescriptions[name], 50))
	}
	t.Render()
}

// ScenesTable shows the slot state of every scene
func ScenesTable(w io.Writer, board *storyboard.StoryboardData) {
	if board == nil || len(board.Scenes) == 0 {
		fmt.Fprintln(w, style.CreateHelpBox("No storyboard yet. Run 'storyboard create \"<idea>\"' first."))
		return
	}
	t := NewTable(w, "SCENE", "IMAGE", "VIDEO", "AUDIO", "SCRIPT")
	for _, sc := range board.Scenes {
		t.AddRow(
			fmt.Sprintf("%d", sc.ID),
			SlotStatus(sc.SlotOf(media.Image)),
			SlotStatus(sc.SlotOf(media.Video)),
			SlotStatus(sc.SlotOf(media.Audio)),
			TruncateString(sc.Script, 50),
		)
	}
	t.Render()
}

// SlotStatus summarizes a slot as a badge
func SlotStatus(slot storyboard.MediaSlot) string {
	switch {
	case slot.Generating:
		return style.CreateStatusBadge("generating")
	case slot.LastError != "":
		return style.CreateStatusBadge("failed")
	case slot.CustomUploaded && slot.CustomURL != "":
		return style.CreateStatusBadge("custom")
	case slot.Generated && slot.Stale:
		return style.CreateStatusBadge("stale")
	case slot.Generated:
		return style.CreateStatusBadge("ready")
	}
	return style.DimStyle.Render("-")
}

// FormatRunCount abbreviates large run counts (1.2M, 35K)
func FormatRunCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%dK", n/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatDuration rounds d for display
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

// TruncateID truncates version hashes for display (shows first 12 chars)
func TruncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "..."
}

// TruncateString truncates a string to maxLen runes with ellipsis
func TruncateString(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
