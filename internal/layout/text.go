package layout

import (
	"strings"
	"unicode/utf8"
)

// Len reports the printable width of s, counting runes.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// PadRight truncates s to n characters or pads it with trailing spaces.
func PadRight(s string, n int) string {
	if n <= 0 {
		return ""
	}
	s = truncate(s, n)
	return s + strings.Repeat(" ", n-Len(s))
}

// PadLeft truncates s to n characters or pads it with leading spaces.
func PadLeft(s string, n int) string {
	if n <= 0 {
		return ""
	}
	s = truncate(s, n)
	return strings.Repeat(" ", n-Len(s)) + s
}

// TwoColumnLine places left and right at opposite ends of a line of width
// characters. When both do not fit, left is cut so that exactly one space
// separates it from right; right is never truncated.
func TwoColumnLine(left, right string, width int) string {
	l, r := Len(left), Len(right)
	if l+r >= width {
		return truncate(left, width-r-1) + " " + right
	}
	return left + strings.Repeat(" ", width-l-r) + right
}

// WrapText greedily wraps text into lines of at most maxWidth characters,
// breaking on the last space that fits. A token longer than maxWidth is
// split into maxWidth-sized chunks.
func WrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 || Len(text) <= maxWidth {
		return []string{text}
	}

	var lines []string
	remaining := []rune(strings.TrimSpace(text))
	for len(remaining) > 0 {
		if len(remaining) <= maxWidth {
			lines = append(lines, string(remaining))
			break
		}

		cut := lastSpace(remaining[:maxWidth])
		if cut <= 0 {
			cut = maxWidth
		}
		lines = append(lines, strings.TrimSpace(string(remaining[:cut])))
		remaining = []rune(strings.TrimSpace(string(remaining[cut:])))
	}
	return lines
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}
