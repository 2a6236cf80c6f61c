package tui

import (
	"strings"
	"testing"
)

func TestScrollbarEmptyTrackWhenContentFits(t *testing.T) {
	bar := renderScrollbar(5, 3, 0)
	if strings.Contains(bar, scrollbarThumb) {
		t.Error("no thumb expected when content fits")
	}
	if got := strings.Count(bar, "\n") + 1; got != 5 {
		t.Errorf("bar height = %d, want 5", got)
	}
}

func TestScrollbarThumbTracksOffset(t *testing.T) {
	top := renderScrollbar(10, 100, 0)
	bottom := renderScrollbar(10, 100, 90)

	topLines := strings.Split(top, "\n")
	bottomLines := strings.Split(bottom, "\n")

	if !strings.Contains(topLines[0], scrollbarThumb) {
		t.Error("thumb should start at the top for offset 0")
	}
	if !strings.Contains(bottomLines[len(bottomLines)-1], scrollbarThumb) {
		t.Error("thumb should reach the bottom at max offset")
	}
}

func TestScrollbarZeroHeight(t *testing.T) {
	if got := renderScrollbar(0, 100, 0); got != "" {
		t.Errorf("expected empty string for zero height, got %q", got)
	}
}
