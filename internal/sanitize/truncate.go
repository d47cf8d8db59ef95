package sanitize

import (
	"fmt"
	"unicode/utf8"
)

// Truncate cuts s to max runes and appends "…(<N> more chars)" where N is
// the number of runes removed. max <= 0 leaves s untouched.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	return Limit(s, max)
}

// Limit is Truncate with a hard bound: max <= 0 keeps no runes of s, so a
// non-empty s becomes the suffix alone.
func Limit(s string, max int) string {
	if max < 0 {
		max = 0
	}
	n := utf8.RuneCountInString(s)
	if n <= max {
		return s
	}
	cut, count := 0, 0
	for idx := range s {
		if count == max {
			cut = idx
			break
		}
		count++
	}
	return s[:cut] + fmt.Sprintf("…(%d more chars)", n-max)
}
