// ABOUTME: Entry body processing for terminal output.
// ABOUTME: Detects HTML, converts it to Markdown, and renders for the TTY.

package content

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/charmbracelet/glamour"
)

// Feed entry bodies are usually HTML fragments without a DOCTYPE, so
// tag sniffing has to cover bare inline tags too.
var htmlTagPattern = regexp.MustCompile(`<\s*(p|div|span|a|br|img|h[1-6]|ul|ol|li|table|tr|td|th|strong|em|b|i|code|pre|blockquote)[^>]*>`)

// IsHTML reports whether the body looks like HTML rather than plain text.
func IsHTML(body string) bool {
	if strings.Contains(body, "<!DOCTYPE") || strings.Contains(body, "<html") {
		return true
	}
	return htmlTagPattern.MatchString(body)
}

// ToMarkdown converts an HTML body to Markdown. Plain-text bodies and
// bodies that fail conversion come back unchanged.
func ToMarkdown(body string) string {
	if body == "" || !IsHTML(body) {
		return body
	}
	markdown, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return body
	}
	return strings.TrimSpace(markdown)
}

// RenderTerminal converts the body to Markdown and styles it for
// terminal display. Falls back to the raw Markdown if styling fails.
func RenderTerminal(body string) string {
	markdown := ToMarkdown(body)
	rendered, err := glamour.Render(markdown, "dark")
	if err != nil {
		return markdown
	}
	return rendered
}
