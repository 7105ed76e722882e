package wrapper

import (
	"regexp"
	"strings"
)

var widgetBlockRe = regexp.MustCompile("(?s)```widget\n(.*?)```")

// ExtractWidgets returns the bodies of all fenced widget blocks in
// message content.
func ExtractWidgets(content string) []string {
	matches := widgetBlockRe.FindAllStringSubmatch(content, -1)
	widgets := make([]string, 0, len(matches))
	for _, m := range matches {
		widgets = append(widgets, strings.TrimSpace(m[1]))
	}
	return widgets
}

// HasWidgets reports whether content contains at least one widget block.
func HasWidgets(content string) bool {
	return widgetBlockRe.MatchString(content)
}
