package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/xonecas/lumi/internal/constants"
	"github.com/xonecas/lumi/internal/msglog"
)

// AggregationContext is the scratch state of the single currently-open tool
// group plus the attachments collected since the last standalone block.
//
// The live context is exclusively owned by whichever build currently holds
// the not-suppressed right. The older-batch loader swaps in a private context
// and restores the live one afterwards; modeling the state as one value makes
// that save/restore a plain assignment with no intervening suspension point.
type AggregationContext struct {
	group      *Block
	intentText string

	// Per toolCallId handles for in-place mutation.
	calls     map[string]*Block
	terminals map[string]*Block
	todo      *Block
	todoFails int

	startTimes map[string]time.Time

	// Attachments accumulated since the previous standalone block, attached
	// to the next assistant message.
	pendingChips   []string
	pendingSkills  []msglog.SkillRef
	pendingSources []msglog.SearchSource
	pendingEdits   []FileEdit
}

// newAggregationContext creates empty scratch state.
func newAggregationContext() *AggregationContext {
	return &AggregationContext{
		calls:      make(map[string]*Block),
		terminals:  make(map[string]*Block),
		startTimes: make(map[string]time.Time),
	}
}

// HasOpenGroup reports whether a group is currently open.
func (a *AggregationContext) HasOpenGroup() bool {
	return a.group != nil
}

// ensureGroup opens a group on target if none is open. The initial label is
// the current intent text (ellipsized) or a generic working label; the group
// is active while the triggering message is still in progress.
func (a *AggregationContext) ensureGroup(target Canvas, status msglog.ToolStatus, building bool) *Block {
	if a.group != nil {
		return a.group
	}
	g := newBlock(KindToolGroup)
	if a.intentText != "" {
		g.Label = a.intentText + "…"
	} else {
		g.Label = "Working…"
	}
	g.IsActive = status == msglog.ToolStatusInProgress
	g.historical = building
	target.Append(g)
	a.group = g
	return g
}

// addChild appends a tool or terminal child and registers its handles.
// Live groups auto-expand on their first in-progress child; historical
// groups never do.
func (a *AggregationContext) addChild(m *msglog.Message, b *Block) {
	g := a.group
	wasEmpty := len(g.Children) == 0
	g.Children = append(g.Children, b)

	if m.ToolCallID != "" {
		switch b.Kind {
		case KindTerminalPreview:
			a.terminals[m.ToolCallID] = b
		case KindToolCall:
			a.calls[m.ToolCallID] = b
		}
		if m.ToolStatus == msglog.ToolStatusInProgress {
			a.startTimes[m.ToolCallID] = time.Now()
		}
	}

	if wasEmpty && !g.historical && m.ToolStatus == msglog.ToolStatusInProgress {
		g.Expanded = true
	}
}

// upsertTodo merges a parsed todo list into the group's single todo-progress
// node, creating it on first use. Later updates mutate the same node and bump
// its update counter.
func (a *AggregationContext) upsertTodo(todo *TodoList) {
	if a.todo == nil {
		a.todo = newBlock(KindTodoProgress)
		a.group.Children = append(a.group.Children, a.todo)
	}
	done, failed, running := todo.Counts()
	a.todo.Total = done + failed + running
	a.todo.Completed = done
	a.todo.Failed = failed
	a.todo.Updates++
	a.todoFails = failed
}

// updateGroup recomputes the open group's label, meta, progress and active
// flag. Run after every state change that can affect them.
func (a *AggregationContext) updateGroup() {
	g := a.group
	if g == nil {
		return
	}

	if a.todo != nil {
		a.updateGroupFromTodo()
		return
	}

	completed, failed, total := 0, 0, 0
	for _, child := range g.Children {
		if !child.StatusBearing() {
			continue
		}
		total++
		switch child.Status {
		case msglog.ToolStatusCompleted:
			completed++
		case msglog.ToolStatusFailed:
			failed++
		}
	}

	done := total > 0 && completed+failed == total
	if done {
		if a.intentText != "" {
			g.Label = a.intentText
		} else {
			g.Label = finishedPhrase(total, failed)
		}
		g.IsActive = false
	} else {
		if a.intentText != "" {
			g.Label = a.intentText + "…"
		} else {
			g.Label = fmt.Sprintf("Working on %s…", pluralize(total, "action"))
		}
		g.IsActive = true
	}

	g.Meta = fmt.Sprintf("%d/%d", completed+failed, total)
	g.HasFailures = failed > 0

	if g.historical {
		g.Progress = ProgressIndeterminate
		if done {
			g.Expanded = false
		}
	} else if total > 0 {
		g.Progress = clampPercent(100 * float64(completed+failed) / float64(total))
	}
}

// updateGroupFromTodo fixes the label to the todo title and derives meta and
// progress from the todo node's counters.
func (a *AggregationContext) updateGroupFromTodo() {
	g := a.group
	todo := a.todo

	g.Label = "Todo"
	meta := fmt.Sprintf("%d/%d", todo.Completed, todo.Total)
	if todo.Failed > 0 {
		meta += fmt.Sprintf(", %d failed", todo.Failed)
	}
	if todo.Updates > 1 {
		meta += fmt.Sprintf(", %d updates", todo.Updates)
	}
	g.Meta = meta

	running := todo.Total - todo.Completed - todo.Failed
	g.IsActive = running > 0 && a.todoFails == 0
	g.HasFailures = todo.Failed > 0

	if g.historical {
		g.Progress = ProgressIndeterminate
		g.Expanded = false
	} else if todo.Total > 0 {
		g.Progress = clampPercent(100 * float64(todo.Completed+todo.Failed) / float64(todo.Total))
	}
}

// closeGroup finalizes the open group. A group that ended with zero children
// is removed from the canvas entirely; otherwise the label is updated once
// more. All group-scoped scratch state is cleared either way. Pending
// attachments survive: they belong to the next standalone block, not to the
// group.
func (a *AggregationContext) closeGroup(target Canvas) {
	g := a.group
	if g == nil {
		return
	}
	if len(g.Children) == 0 {
		target.Remove(g)
		g.Detach()
	} else {
		a.updateGroup()
	}
	a.group = nil
	a.intentText = ""
	a.calls = make(map[string]*Block)
	a.terminals = make(map[string]*Block)
	a.todo = nil
	a.todoFails = 0
	a.startTimes = make(map[string]time.Time)
}

// takeAttachments returns and clears the pending attachment collections.
func (a *AggregationContext) takeAttachments() (chips []string, skills []msglog.SkillRef, sources []msglog.SearchSource, edits []FileEdit) {
	chips, skills, sources, edits = a.pendingChips, a.pendingSkills, a.pendingSources, a.pendingEdits
	a.pendingChips, a.pendingSkills, a.pendingSources, a.pendingEdits = nil, nil, nil, nil
	return chips, skills, sources, edits
}

// mergeTerminalOutput folds an incoming output chunk into the existing
// preview text. Branch order is significant: replace when asked or empty,
// prefix growth from streaming, duplicate-suffix suppression, then append on
// a new line for out-of-order chunks.
func mergeTerminalOutput(existing, chunk string, replace bool) string {
	if replace || existing == "" {
		return chunk
	}
	if strings.HasPrefix(chunk, existing) {
		return chunk
	}
	if strings.HasSuffix(existing, chunk) {
		return existing
	}
	return existing + "\n" + chunk
}

// finishedPhrase renders the generic done label: "Finished N actions", with
// a failure suffix when any child failed.
func finishedPhrase(total, failed int) string {
	label := "Finished " + pluralize(total, "action")
	if failed > 0 {
		label += fmt.Sprintf(", %d failed", failed)
	}
	return label
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// truncateSummary caps a one-line summary at the configured display width.
func truncateSummary(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= constants.ToolSummaryMaxWidth {
		return s
	}
	width := constants.ToolSummaryMaxWidth - len(constants.ToolSummaryEllipsis)
	return runewidth.Truncate(s, width, "") + constants.ToolSummaryEllipsis
}
