package tui

import (
	"strings"
	"sync"

	"github.com/xonecas/lumi/internal/transcript"
)

// viewScroller bridges the transcript engine and the viewport. The engine
// reads and writes scroll state from its own goroutine during rebuilds and
// older-batch loads; the UI goroutine syncs the state into the viewport on
// its next frame.
type viewScroller struct {
	mu     sync.Mutex
	offset int
	extent int

	// pending marks an engine-requested offset the viewport hasn't applied.
	pending bool

	// Measurement inputs. The engine compares extents across a canvas
	// mutation with no frame in between, so ContentExtent must measure the
	// canvas on demand rather than return whatever the last render counted.
	canvas         *transcript.BlockList
	width          int
	showTimestamps bool
}

// configure records the render parameters the extent measurement must match.
func (s *viewScroller) configure(width int, showTimestamps bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.showTimestamps = showTimestamps
}

// Offset returns the current scroll offset in lines.
func (s *viewScroller) Offset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// SetOffset records an offset requested by the engine.
func (s *viewScroller) SetOffset(offset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset < 0 {
		offset = 0
	}
	s.offset = offset
	s.pending = true
}

// ContentExtent measures the rendered transcript height in lines, live from
// the canvas. Before the first frame sizes the view it falls back to the
// extent recorded by the last render.
func (s *viewScroller) ContentExtent() int {
	s.mu.Lock()
	canvas, width, ts := s.canvas, s.width, s.showTimestamps
	s.mu.Unlock()

	if canvas == nil || width <= 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.extent
	}

	extent := strings.Count(RenderBlocks(canvas.Blocks(), width, ts), "\n") + 1
	s.mu.Lock()
	s.extent = extent
	s.mu.Unlock()
	return extent
}

// lastExtent returns the extent recorded by the most recent render or
// measurement, without re-rendering.
func (s *viewScroller) lastExtent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extent
}

// syncFromViewport records the viewport's real position after user scrolling.
func (s *viewScroller) syncFromViewport(offset, extent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = offset
	s.extent = extent
}

// takePending returns an engine-requested offset once, for the viewport to
// apply.
func (s *viewScroller) takePending() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return 0, false
	}
	s.pending = false
	return s.offset, true
}
