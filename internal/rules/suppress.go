package rules

import (
	"strings"

	"github.com/mattepiu/drift/internal/pattern"
)

// suppressionMarkers are the inline directives that silence a violation
// on their own line or on the line directly below them.
var suppressionMarkers = []string{
	"drift-ignore",
	"# noqa",
	"eslint-disable-next-line",
	"@SuppressWarnings",
}

// IsSuppressedInline reports whether the violation's line, or the line
// above it, carries a suppression directive.
func IsSuppressedInline(v *pattern.Violation, content string) bool {
	lines := strings.Split(content, "\n")
	line := v.Range.Start.Line
	if line < 0 || line >= len(lines) {
		return false
	}
	if hasSuppressionMarker(lines[line]) {
		return true
	}
	return line > 0 && hasSuppressionMarker(lines[line-1])
}

func hasSuppressionMarker(line string) bool {
	for _, marker := range suppressionMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
