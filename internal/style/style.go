package style

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	HighlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A78BFA"))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#EF4444"))

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981"))

	WarningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F59E0B"))

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#C4B5FD"))

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	NumberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#60A5FA"))

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A78BFA")).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#8B5CF6"))

	metadataBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#6B7280")).
				Padding(0, 2)

	metadataKeyStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#9CA3AF"))

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#374151"))

	badge = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))

	badgeColors = map[string]string{
		"starting":   "#6B7280",
		"submitted":  "#6B7280",
		"processing": "#2563EB",
		"polling":    "#2563EB",
		"generating": "#2563EB",
		"succeeded":  "#059669",
		"ready":      "#059669",
		"failed":     "#DC2626",
		"canceled":   "#D97706",
		"skipped":    "#4B5563",
		"stale":      "#B45309",
		"free":       "#059669",
		"cheap":      "#2563EB",
		"premium":    "#7C3AED",
		"image":      "#DB2777",
		"video":      "#7C3AED",
		"audio":      "#0891B2",
	}
)

// CreateBanner renders a command title
func CreateBanner(title string, icon string) string {
	return bannerStyle.Render(fmt.Sprintf("%s  %s", icon, title))
}

// CreateMetadataBox renders key/value pairs sorted by key
func CreateMetadataBox(items map[string]string) string {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s %s", metadataKeyStyle.Render(k+":"), ValueStyle.Render(items[k])))
	}
	return metadataBoxStyle.Render(strings.Join(lines, "\n"))
}

// CreateStatusBadge renders a generation state, pricing tier or media type as a badge
func CreateStatusBadge(status string) string {
	key := strings.ToLower(status)
	bg, ok := badgeColors[key]
	if !ok {
		bg = "#4B5563"
	}
	return badge.Background(lipgloss.Color(bg)).Render(" " + strings.ToUpper(key) + " ")
}

// CreateDivider creates a horizontal divider
func CreateDivider(width int) string {
	return dividerStyle.Render(strings.Repeat("─", width))
}

// CreateSuccessBox creates a success message box
func CreateSuccessBox(message string) string {
	return SuccessStyle.Render("✓ " + message)
}

// CreateErrorBox creates an error message box
func CreateErrorBox(message string) string {
	return ErrorStyle.Render("✗ " + message)
}

// CreateWarningBox creates a warning message box
func CreateWarningBox(message string) string {
	return WarningStyle.Render("⚠ " + message)
}

// CreateHelpBox renders a hint
func CreateHelpBox(content string) string {
	return DimStyle.Render(content)
}
