package grocery

import (
	"regexp"
	"strconv"
	"strings"
)

// Line is one line of free text split into a quantity and a search term.
type Line struct {
	Quantity int
	Term     string
	Raw      string
}

var (
	leadingQty  = regexp.MustCompile(`^(\d+)\s+(.+)$`)
	trailingQty = regexp.MustCompile(`^(.+)\s+(\d+)$`)
)

// ParseLine extracts a leading or trailing integer quantity from line.
// Only the ends of the line are looked at: "2 eggs 3" is two "eggs 3".
func ParseLine(line string) Line {
	raw := strings.TrimSpace(line)
	if m := leadingQty.FindStringSubmatch(raw); m != nil {
		return Line{Quantity: parseQuantity(m[1]), Term: strings.TrimSpace(m[2]), Raw: raw}
	}
	if m := trailingQty.FindStringSubmatch(raw); m != nil {
		return Line{Quantity: parseQuantity(m[2]), Term: strings.TrimSpace(m[1]), Raw: raw}
	}
	return Line{Quantity: 1, Term: raw, Raw: raw}
}

// parseQuantity clamps zero and overflowing values to 1.
func parseQuantity(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// SplitLines breaks text into trimmed, non-blank lines.
func SplitLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(strings.TrimSuffix(l, "\r"))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
