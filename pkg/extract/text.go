package extract

import (
	"strings"
	"unicode/utf8"
)

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// CollapseLineBreaks replaces every line break with a single space. A
// break at the very end of s is dropped, and \r\n counts as one break.
func CollapseLineBreaks(s string) string {
	if strings.IndexFunc(s, isLineBreak) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isLineBreak(r) {
			b.WriteString(s[i : i+size])
			i += size
			continue
		}
		if r == '\r' && i+size < len(s) && s[i+size] == '\n' {
			size++
		}
		i += size
		if i < len(s) {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
