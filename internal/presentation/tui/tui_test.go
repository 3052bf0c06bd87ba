package tui

import (
	"bytes"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBanner_Ascii(t *testing.T) {
	var buf bytes.Buffer
	WriteBanner(&buf, termenv.Ascii, "v0.3.0")

	out := buf.String()
	assert.Contains(t, out, `  / _ \ _ __   ___ _ __ __ _ `)
	assert.Contains(t, out, "UCI engine v0.3.0")
	assert.NotContains(t, out, "\x1b[", "ascii profile must not emit escape codes")
}

func TestWriteBanner_NoVersion(t *testing.T) {
	var buf bytes.Buffer
	WriteBanner(&buf, termenv.Ascii, "")
	assert.NotContains(t, buf.String(), "UCI engine")
}

func TestWriteBanner_TrueColor(t *testing.T) {
	var buf bytes.Buffer
	WriteBanner(&buf, termenv.TrueColor, "v0.3.0")

	out := buf.String()
	assert.Contains(t, out, "\x1b[38;2;")
	assert.Contains(t, out, "\x1b[2m  UCI engine v0.3.0")
}

func TestTopics(t *testing.T) {
	assert.Equal(t, []string{"lifecycle", "options", "protocol"}, Topics())
}

func TestDocument(t *testing.T) {
	md, err := Document("protocol")
	require.NoError(t, err)
	assert.Contains(t, md, "# Opera protocol reference")

	md, err = Document("lifecycle")
	require.NoError(t, err)
	assert.NotContains(t, md, "{{diagram}}")
	assert.Contains(t, md, "```mermaid\ngraph TD\n")
	assert.Contains(t, md, "ready --> searching")

	_, err = Document("openings")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lifecycle, options, protocol")
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer(60)
	require.NoError(t, err)

	out, err := render("# Engine options\n\nSpin values are clamped.")
	require.NoError(t, err)
	assert.Contains(t, out, "Engine options")
	assert.Contains(t, out, "clamped")
}
