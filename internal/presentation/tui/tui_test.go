package tui

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	// A bytes.Buffer is not a terminal, so no escape codes are written.
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), bannerLines[0].text)
}

func TestNewRenderer(t *testing.T) {
	render := NewRenderer()
	out, err := render("**Hello** there")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "there")
}

func TestIsTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
	assert.False(t, IsTerminal(nil))
}
