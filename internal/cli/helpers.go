package cli

import (
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/mattn/go-isatty"

	"github.com/kubiyabot/storyboard/internal/formatter"
)

func openURL(uri string) {
	switch runtime.GOOS {
	case "darwin":
		_ = exec.Command("open", uri).Start()
	case "linux":
		_ = exec.Command("xdg-open", uri).Start()
	case "windows":
		_ = exec.Command("rundll32", "url.dll,FileProtocolHandler", uri).Start()
	}
}

// styled reports whether w is an interactive terminal pterm may decorate
func (a *app) styled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && !a.ui.IsDisabled() && isatty.IsTerminal(f.Fd())
}

// renderTable prints t with pterm on a terminal and as aligned plain text
// otherwise, so piped output keeps stable columns
func (a *app) renderTable(w io.Writer, t *formatter.TableFormatter) error {
	if a.styled(w) {
		return a.ui.Table(w).WithData(t.Data()).Render()
	}
	t.Render()
	return nil
}

// section prints a heading on a terminal; piped output stays table-only
func (a *app) section(w io.Writer, title string) {
	if a.styled(w) {
		a.ui.Section(w).Println(title)
	}
}
