package pterm

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"

	"github.com/kubiyabot/storyboard/internal/types"
)

// PTermManager manages PTerm components with OutputMode awareness
type PTermManager struct {
	disabled bool
}

// NewPTermManager creates a new PTerm manager with appropriate configuration
func NewPTermManager(mode types.OutputMode) *PTermManager {
	pm := &PTermManager{}

	if os.Getenv("STORYBOARD_PTERM_ENABLED") == "false" {
		pm.disabled = true
		return pm
	}

	// no colors or animation in CI and when piped
	if mode == types.OutputModeCI || !isatty.IsTerminal(os.Stdout.Fd()) {
		pterm.DisableColor()
		pterm.DisableStyling()
		pm.disabled = true
	}

	pm.applyTheme()
	return pm
}

func (pm *PTermManager) applyTheme() {
	pterm.Success = *pterm.Success.WithMessageStyle(pterm.NewStyle(pterm.FgLightGreen))
	pterm.Error = *pterm.Error.WithMessageStyle(pterm.NewStyle(pterm.FgLightRed))
	pterm.Info = *pterm.Info.WithMessageStyle(pterm.NewStyle(pterm.FgLightMagenta))
	pterm.Warning = *pterm.Warning.WithMessageStyle(pterm.NewStyle(pterm.FgYellow))
}

// Table creates a configured table printer writing to w
func (pm *PTermManager) Table(w io.Writer) *pterm.TablePrinter {
	if pm.disabled {
		return pterm.DefaultTable.WithHasHeader(true).WithWriter(w)
	}
	return pterm.DefaultTable.
		WithWriter(w).
		WithHasHeader(true).
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightMagenta, pterm.Bold)).
		WithBoxed(false)
}

// Section creates a configured section printer writing to w
func (pm *PTermManager) Section(w io.Writer) *pterm.SectionPrinter {
	if pm.disabled {
		return pterm.DefaultSection.WithWriter(w)
	}
	return pterm.DefaultSection.WithWriter(w).WithStyle(pterm.NewStyle(pterm.FgLightMagenta, pterm.Bold))
}

// IsDisabled returns whether PTerm is disabled; a nil manager is
func (pm *PTermManager) IsDisabled() bool {
	return pm == nil || pm.disabled
}
