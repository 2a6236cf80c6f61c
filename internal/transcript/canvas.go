package transcript

// Canvas is the ordered, mutable sequence of blocks the engine renders into.
// The TUI owns the real implementation; tests and staged rebuilds use
// BlockList.
type Canvas interface {
	Append(b *Block)
	// InsertBefore places b before marker. A nil marker appends.
	InsertBefore(marker, b *Block)
	Remove(b *Block)
	Clear()
	IndexOf(b *Block) int
	Blocks() []*Block
}

// Scroller exposes the scroll container to the virtualization window. Offsets
// and extents are measured in whatever unit the container renders (lines for
// the TUI); the engine only ever computes deltas.
type Scroller interface {
	Offset() int
	SetOffset(offset int)
	ContentExtent() int
}

// BlockList is a slice-backed Canvas.
type BlockList struct {
	blocks []*Block
}

// NewBlockList creates an empty block list.
func NewBlockList() *BlockList {
	return &BlockList{}
}

// Append adds b at the end.
func (l *BlockList) Append(b *Block) {
	l.blocks = append(l.blocks, b)
}

// InsertBefore places b before marker, or at the end when marker is nil or
// not present.
func (l *BlockList) InsertBefore(marker, b *Block) {
	idx := l.IndexOf(marker)
	if idx < 0 {
		l.Append(b)
		return
	}
	l.blocks = append(l.blocks, nil)
	copy(l.blocks[idx+1:], l.blocks[idx:])
	l.blocks[idx] = b
}

// Remove drops b from the list. The block is not detached: removal is also
// how blocks move into a group or summary that takes ownership of them.
func (l *BlockList) Remove(b *Block) {
	for i, cur := range l.blocks {
		if cur == b {
			l.blocks = append(l.blocks[:i], l.blocks[i+1:]...)
			return
		}
	}
}

// Clear drops and detaches every block.
func (l *BlockList) Clear() {
	for _, b := range l.blocks {
		b.Detach()
	}
	l.blocks = nil
}

// IndexOf returns the position of b, or -1.
func (l *BlockList) IndexOf(b *Block) int {
	for i, cur := range l.blocks {
		if cur == b {
			return i
		}
	}
	return -1
}

// Blocks returns the backing slice. Callers must not mutate it.
func (l *BlockList) Blocks() []*Block {
	return l.blocks
}

// Len returns the number of top-level blocks.
func (l *BlockList) Len() int {
	return len(l.blocks)
}
