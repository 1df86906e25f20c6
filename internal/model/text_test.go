package model

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii", "abcdef", 3, "abc"},
		{"multibyte", "ñandú façade", 5, "ñandú"},
		{"emoji", "🙂🙂🙂", 2, "🙂🙂"},
		{"zero", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateRunes(tt.in, tt.n))
		})
	}
}

func TestTruncateRunes_StaysValidUTF8(t *testing.T) {
	got := TruncateRunes(strings.Repeat("é", 1200), MaxResponseLength)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, MaxResponseLength, utf8.RuneCountInString(got))
}
