package storyboard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/media"
)

// DefaultFileName is the board file kept in the data dir between CLI runs
const DefaultFileName = "storyboard.json"

// SaveFile writes data as indented JSON, replacing the file atomically
func SaveFile(fs afero.Fs, path string, data *StoryboardData) error {
	if data == nil {
		return fmt.Errorf("no storyboard to save")
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	// transient flags do not survive a restart
	clean := data.Clone()
	for i := range clean.Scenes {
		for _, m := range media.All {
			clean.Scenes[i].Slot(m).Generating = false
		}
	}

	raw, err := json.MarshalIndent(clean, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storyboard: %w", err)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a board written by SaveFile
func LoadFile(fs afero.Fs, path string) (*StoryboardData, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, clierrors.ValidationError(
				fmt.Errorf("no storyboard at %s", path),
				"Run 'storyboard create \"<idea>\"' first.",
			)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var data StoryboardData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, clierrors.StoryboardFormatError(fmt.Errorf("decode %s: %w", path, err))
	}
	return &data, nil
}

// Markdown renders the board as a Markdown document
func Markdown(data *StoryboardData) string {
	if data == nil {
		return "_No storyboard yet._\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", headline(data.Prompt))
	fmt.Fprintf(&sb, "*%d scenes · %s · %s*\n\n", len(data.Scenes), data.Format, data.Mode)

	for _, sc := range data.Scenes {
		fmt.Fprintf(&sb, "## Scene %d\n\n", sc.ID)
		if sc.Script != "" {
			fmt.Fprintf(&sb, "%s\n\n", sc.Script)
		}
		sb.WriteString("| Media | Prompt | Asset |\n|---|---|---|\n")
		for _, m := range media.All {
			slot := sc.SlotOf(m)
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", m, cell(slot.Prompt), cell(assetCell(sc, m)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func assetCell(sc Scene, m media.Type) string {
	slot := sc.SlotOf(m)
	switch {
	case slot.Generating:
		return "generating…"
	case slot.LastError != "":
		return "failed: " + slot.LastError
	}
	url := ResolveEffectiveURL(sc, m)
	if url == "" {
		return "-"
	}
	if slot.Stale {
		return url + " (stale)"
	}
	return url
}

func headline(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Storyboard"
	}
	if len(prompt) > 72 {
		return prompt[:69] + "..."
	}
	return prompt
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	if s == "" {
		return "-"
	}
	return s
}
