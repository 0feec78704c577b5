package cli

import (
	"strings"

	"golang.org/x/text/width"
)

// displayWidth returns the terminal cell width of s. East Asian wide and
// fullwidth runes occupy two cells; Korean names misalign the log table
// when counted by rune.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += 2
		default:
			w++
		}
	}
	return w
}

// padRight pads s with spaces to the given cell width.
func padRight(s string, cells int) string {
	if d := cells - displayWidth(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}
