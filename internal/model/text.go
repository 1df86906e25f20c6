package model

// Owner-submitted text limits, in characters.
const (
	MaxDescriptionLength = 500
	MaxResponseLength    = 1000
)

// TruncateRunes shortens s to at most n characters without splitting a
// multi-byte character.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
