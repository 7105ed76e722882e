package wrapper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapFragmentSynthesizesDocument(t *testing.T) {
	out := WrapWidgetHTML(`<p>hello</p>`, ModeEmbedded)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, `<meta charset="utf-8">`)
	assert.Contains(t, out, "<p>hello</p>")
	assert.Contains(t, out, "window.widget")
	assert.Contains(t, out, "--widget-layout: embedded")
	// Injection lands before the body content.
	assert.Less(t, strings.Index(out, "window.widget"), strings.Index(out, "<p>hello</p>"))
}

func TestWrapFullDocumentRewritesHead(t *testing.T) {
	in := `<html><head><title>App</title></head><body>hi</body></html>`
	out := WrapWidgetHTML(in, ModeEmbedded)

	assert.Contains(t, out, "<title>App</title>")
	assert.Equal(t, 1, strings.Count(out, "<head>"))
	// Runtime goes in first, ahead of existing head content.
	assert.Less(t, strings.Index(out, "window.widget"), strings.Index(out, "<title>"))
}

func TestWrapHtmlWithoutHeadGainsOne(t *testing.T) {
	in := `<html lang="en"><body>hi</body></html>`
	out := WrapWidgetHTML(in, ModeEmbedded)

	assert.Contains(t, out, `<html lang="en"><head>`)
	assert.Contains(t, out, "</head>")
	assert.Contains(t, out, "window.widget")
}

func TestWrapFullscreenMode(t *testing.T) {
	out := WrapWidgetHTML(`<p>hi</p>`, ModeFullscreen)

	assert.Contains(t, out, "--widget-layout: fullscreen")
	assert.Contains(t, out, "LAYOUT_MODE = 'fullscreen'")
	assert.NotContains(t, out, "overflow: hidden")
}

func TestRuntimeHasErrorEnvelope(t *testing.T) {
	out := WrapWidgetHTML(`<p>hi</p>`, ModeEmbedded)

	assert.Contains(t, out, "Widget initialization error")
	assert.Contains(t, out, "Request timeout after 30s")
	assert.Contains(t, out, "onunhandledrejection")
}

func TestExtractWidgets(t *testing.T) {
	content := "intro\n```widget\n<p>one</p>\n```\ntext\n```widget\n<p>two</p>\n```\n"

	widgets := ExtractWidgets(content)
	require.Len(t, widgets, 2)
	assert.Equal(t, "<p>one</p>", widgets[0])
	assert.Equal(t, "<p>two</p>", widgets[1])
}

func TestExtractWidgetsNone(t *testing.T) {
	assert.Empty(t, ExtractWidgets("plain text\n```go\ncode\n```"))
	assert.False(t, HasWidgets("plain text"))
	assert.True(t, HasWidgets("```widget\n<p>x</p>\n```"))
}
