package styles_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fls/pkg/ui/styles"
)

func TestEmbeddedStylesRegistered(t *testing.T) {
	require.NoError(t, styles.LoadStyles("styles.yaml"))

	for _, name := range []string{
		styles.Path, styles.Warning, styles.Error, styles.Success,
		styles.Muted, styles.Index, styles.Bold,
	} {
		_, ok := styles.StyleRegistry[name]
		assert.True(t, ok, "style %s should be registered", name)
	}
}

func TestLoadStylesFromData(t *testing.T) {
	data := []byte(`
colors:
  accent:
    light: "#000000"
    dark: "#FFFFFF"
styles:
  Path:
    bold: true
    foreground: accent
  Index:
    width: 4
    align: right
`)
	require.NoError(t, styles.LoadStylesFromData(data))
	t.Cleanup(func() { _ = styles.LoadStyles("styles.yaml") })

	path := styles.GetStyle(styles.Path)
	assert.True(t, path.GetBold())
	assert.Equal(t, lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}, path.GetForeground())

	index := styles.GetStyle(styles.Index)
	assert.Equal(t, 4, index.GetWidth())
	assert.Equal(t, lipgloss.Right, index.GetAlign())
}

func TestLoadStylesErrors(t *testing.T) {
	assert.Error(t, styles.LoadStylesFromData([]byte("colors: [unclosed")))
	assert.Error(t, styles.LoadStyles(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestGetStyleUnknownIsPlain(t *testing.T) {
	style := styles.GetStyle("NoSuchStyle")
	assert.Equal(t, "text", style.Render("text"))
}

func TestLoadStylesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("styles:\n  Bold:\n    bold: true\n"), 0644))
	require.NoError(t, styles.LoadStyles(path))
	t.Cleanup(func() { _ = styles.LoadStyles("styles.yaml") })

	assert.True(t, styles.GetStyle(styles.Bold).GetBold())
	_, ok := styles.StyleRegistry[styles.Path]
	assert.False(t, ok)
}
