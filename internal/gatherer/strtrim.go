package gatherer

import (
	"strings"
)

const trimMarker = "[...]"

// trimStrToRect keeps at most maxHeight lines of at most maxWidth runes,
// marking every cut with [...].
func trimStrToRect(s string, maxHeight int, maxWidth int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	cutHeight := len(lines) > maxHeight
	if cutHeight {
		lines = lines[:maxHeight]
	}
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(trimLine(line, maxWidth))
	}
	if cutHeight {
		if len(lines) > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(trimMarker)
	}
	return b.String()
}

func trimLine(line string, maxWidth int) string {
	runes := 0
	for i := range line {
		if runes == maxWidth {
			return line[:i] + trimMarker
		}
		runes++
	}
	return line
}
