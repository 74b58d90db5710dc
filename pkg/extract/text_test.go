package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseLineBreaks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no breaks", "Great film", "Great film"},
		{"single", "Great film\nreally", "Great film really"},
		{"crlf counts once", "a\r\nb", "a b"},
		{"lone cr", "a\rb", "a b"},
		{"blank line keeps both", "a\n\nb", "a  b"},
		{"trailing break dropped", "a\n", "a"},
		{"only break", "\n", ""},
		{"leading break", "\nabc", " abc"},
		{"unicode separators", "a\u2028b\u2029c\u0085d", "a b c d"},
		{"form feed and vertical tab", "a\fb\vc", "a b c"},
		{"multibyte text untouched", "très bien\nnoté", "très bien noté"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CollapseLineBreaks(tt.in))
		})
	}
}

func TestCollapseLineBreaksIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"one\ntwo\r\nthree\rfour",
		"\n\n\n",
		"tail\n\n",
		"mixed\u2028\t spaces \n",
	}
	for _, in := range inputs {
		once := CollapseLineBreaks(in)
		assert.Equal(t, once, CollapseLineBreaks(once), "input %q", in)
	}
}
