package pterm

import (
	"bytes"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubiyabot/storyboard/internal/types"
)

func TestPTermManager_CIIsDisabled(t *testing.T) {
	pm := NewPTermManager(types.OutputModeCI)
	assert.True(t, pm.IsDisabled())

	var nilManager *PTermManager
	assert.True(t, nilManager.IsDisabled())
}

func TestPTermManager_PrintersUseWriter(t *testing.T) {
	pterm.DisableColor()
	pm := &PTermManager{disabled: true}

	var buf bytes.Buffer
	require.NoError(t, pm.Table(&buf).WithData([][]string{
		{"MODEL", "CATEGORY"},
		{"acme/flux", "image"},
	}).Render())
	pm.Section(&buf).Println("image batch")

	out := buf.String()
	assert.Contains(t, out, "acme/flux")
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "image batch")
}
