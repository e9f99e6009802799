// Package markdown renders post content for the public API and for
// notification emails.
package markdown

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var engine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Strikethrough,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
	),
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Render converts markdown text to HTML.
func Render(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := engine.Convert([]byte(text), &buf); err != nil {
		return text
	}
	return buf.String()
}

// Excerpt returns a plain-text excerpt of at most maxRunes runes, derived
// from the rendered HTML with tags stripped and whitespace collapsed.
func Excerpt(text string, maxRunes int) string {
	plain := tagPattern.ReplaceAllString(Render(text), " ")
	plain = strings.Join(strings.Fields(plain), " ")

	runes := []rune(plain)
	if len(runes) <= maxRunes {
		return plain
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
