package tui

import "strings"

const (
	scrollbarThumb = "█"
	scrollbarTrack = "│"
)

// renderScrollbar draws a one-column vertical scrollbar: height lines tall,
// thumb sized by the viewport/content ratio and positioned by scrollOffset
// (the content line at the top of the viewport).
func renderScrollbar(height, totalLines, scrollOffset int) string {
	if height <= 0 {
		return ""
	}

	// Content fits: bare track, no thumb.
	if totalLines <= height {
		track := dimmedStyle.Render(scrollbarTrack)
		lines := make([]string, height)
		for i := range lines {
			lines[i] = track
		}
		return strings.Join(lines, "\n")
	}

	thumbSize := (height * height) / totalLines
	if thumbSize < 1 {
		thumbSize = 1
	}

	ratio := float64(scrollOffset) / float64(totalLines-height)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	thumbPos := int(ratio * float64(height-thumbSize))

	lines := make([]string, height)
	for i := range lines {
		if i >= thumbPos && i < thumbPos+thumbSize {
			lines[i] = groupMetaStyle.Render(scrollbarThumb)
		} else {
			lines[i] = dimmedStyle.Render(scrollbarTrack)
		}
	}
	return strings.Join(lines, "\n")
}
