// Package transcript builds the renderable block tree for a conversation.
//
// The engine consumes the append-only message log and produces a hierarchy of
// display blocks: standalone text blocks, collapsible tool groups aggregating
// consecutive tool activity, and turn summaries merging finished groups. It
// does so incrementally for live sessions, cancellably for full rebuilds, and
// with virtualized loading of old history.
package transcript

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/xonecas/lumi/internal/msglog"
)

// BlockKind discriminates the block variants.
type BlockKind int

const (
	KindText BlockKind = iota
	KindToolCall
	KindTerminalPreview
	KindTodoProgress
	KindToolGroup
	KindTurnSummary
	KindQuestionCard
	KindTypingIndicator
	KindLoadingIndicator
)

// String returns the kind name used in automation IDs and logs.
func (k BlockKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindToolCall:
		return "tool"
	case KindTerminalPreview:
		return "terminal"
	case KindTodoProgress:
		return "todo"
	case KindToolGroup:
		return "group"
	case KindTurnSummary:
		return "summary"
	case KindQuestionCard:
		return "question"
	case KindTypingIndicator:
		return "typing"
	case KindLoadingIndicator:
		return "loading"
	}
	return "unknown"
}

// ProgressIndeterminate marks a block whose progress cannot be shown as a
// percentage (historical replay suppresses determinate progress).
const ProgressIndeterminate = -1.0

// FileEdit is one extracted (path, old, new) triple from a file-edit tool.
type FileEdit struct {
	Path    string
	OldText string
	NewText string
}

// Question carries an ask_question payload onto a question card.
type Question struct {
	ID            string
	Prompt        string
	Options       []string
	AllowFreeText bool
}

// Block is one renderable unit of the transcript. A single struct covers all
// variants; Kind decides which fields are meaningful. Blocks own their
// children: a group or summary exclusively owns the sequence moved into it.
type Block struct {
	id   string
	Kind BlockKind

	// Text blocks.
	Role        msglog.Role
	Content     string
	Author      string
	Timestamp   time.Time
	IsStreaming bool

	// Attachments shown under a text block.
	FileChips []string
	Skills    []msglog.SkillRef
	Sources   []msglog.SearchSource
	FileEdits []FileEdit

	// Tool call and terminal preview blocks.
	Name         string
	InputSummary string
	Status       msglog.ToolStatus
	DurationMs   int64
	Command      string
	Output       string

	// Todo progress blocks.
	Total     int
	Completed int
	Failed    int
	Updates   int

	// Group and summary blocks.
	Label       string
	Meta        string
	IsActive    bool
	HasFailures bool
	Progress    float64 // 0..100, or ProgressIndeterminate
	Expanded    bool
	Children    []*Block

	// Question cards.
	Question *Question

	// historical marks blocks created during a full or batch rebuild, which
	// never auto-expand and suppress determinate progress.
	historical bool

	detach []func()
}

// blockCounter feeds stable, incrementing automation IDs so UI drivers can
// address specific blocks deterministically.
var blockCounter atomic.Uint64

func newBlock(kind BlockKind) *Block {
	return &Block{
		id:       fmt.Sprintf("block-%d", blockCounter.Add(1)),
		Kind:     kind,
		Progress: ProgressIndeterminate,
	}
}

// AutomationID returns the stable identifier assigned at creation.
func (b *Block) AutomationID() string {
	return b.id
}

// OnDetach registers a cleanup to run when the block leaves the canvas for
// good. Used to drop per-message subscriptions without relying on GC.
func (b *Block) OnDetach(fn func()) {
	b.detach = append(b.detach, fn)
}

// Detach runs and clears all registered cleanups, recursively through owned
// children. Safe to call more than once.
func (b *Block) Detach() {
	for _, fn := range b.detach {
		fn()
	}
	b.detach = nil
	for _, child := range b.Children {
		child.Detach()
	}
}

// StatusBearing reports whether the block carries a tool status that counts
// toward group completion (tool calls and terminal previews).
func (b *Block) StatusBearing() bool {
	return b.Kind == KindToolCall || b.Kind == KindTerminalPreview
}

// Finished reports whether a status-bearing block has left InProgress.
func (b *Block) Finished() bool {
	return b.Status == msglog.ToolStatusCompleted || b.Status == msglog.ToolStatusFailed
}
