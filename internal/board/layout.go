// Package board lays generated text out on a split-flap character grid.
// The standard Vestaboard is 6 rows of 22 characters with a restricted
// character set; anything the flaps cannot show is dropped before the
// frame is persisted.
package board

import (
	"strings"
)

// Standard board geometry.
const (
	DefaultRows = 6
	DefaultCols = 22
)

// supportedRunes is the split-flap character set (after uppercasing).
const supportedRunes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 !@#$()-+&=;:'\"%,./?°"

// Layout fits free text onto a fixed character grid.
type Layout struct {
	rows int
	cols int
}

// NewLayout creates a layout for the given geometry. Non-positive
// dimensions fall back to the standard board size.
func NewLayout(rows, cols int) *Layout {
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	return &Layout{rows: rows, cols: cols}
}

// Rows returns the grid height.
func (l *Layout) Rows() int { return l.rows }

// Cols returns the grid width.
func (l *Layout) Cols() int { return l.cols }

// Fit uppercases the text, strips unsupported runes, word-wraps it to
// the grid width, truncates to the grid height, and centers the result
// both horizontally and vertically. Lines are joined with newlines.
func (l *Layout) Fit(text string) string {
	lines := l.wrap(sanitize(text))
	if len(lines) > l.rows {
		lines = lines[:l.rows]
	}

	// Vertical centering: blank rows split evenly, extra row below.
	padTop := (l.rows - len(lines)) / 2
	blank := strings.Repeat(" ", l.cols)

	out := make([]string, 0, l.rows)
	for i := 0; i < padTop; i++ {
		out = append(out, blank)
	}
	for _, line := range lines {
		out = append(out, center(line, l.cols))
	}
	for len(out) < l.rows {
		out = append(out, blank)
	}
	return strings.Join(out, "\n")
}

// sanitize uppercases and drops runes the flaps cannot display.
// Newlines survive as explicit line breaks for the wrapper.
func sanitize(text string) string {
	upper := strings.ToUpper(text)
	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if r == '\n' || strings.ContainsRune(supportedRunes, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// wrap word-wraps sanitized text to the grid width, honoring explicit
// line breaks. Words longer than a row are hard-split.
func (l *Layout) wrap(text string) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			continue
		}
		current := ""
		currentLen := 0
		for _, word := range words {
			// Rune-based math throughout: the charset includes the
			// multi-byte degree sign.
			runes := []rune(word)
			for len(runes) > l.cols {
				if current != "" {
					lines = append(lines, current)
					current = ""
					currentLen = 0
				}
				lines = append(lines, string(runes[:l.cols]))
				runes = runes[l.cols:]
			}
			switch {
			case current == "":
				current = string(runes)
				currentLen = len(runes)
			case currentLen+1+len(runes) <= l.cols:
				current += " " + string(runes)
				currentLen += 1 + len(runes)
			default:
				lines = append(lines, current)
				current = string(runes)
				currentLen = len(runes)
			}
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

// center pads a line to width, splitting surplus evenly with the extra
// column on the right.
func center(line string, width int) string {
	runes := []rune(line)
	if len(runes) >= width {
		return string(runes[:width])
	}
	left := (width - len(runes)) / 2
	right := width - len(runes) - left
	return strings.Repeat(" ", left) + line + strings.Repeat(" ", right)
}
