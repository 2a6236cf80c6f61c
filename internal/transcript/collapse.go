package transcript

import (
	"github.com/xonecas/lumi/internal/msglog"
)

// collapsible reports whether a block may be folded into a turn summary:
// tool groups and standalone reasoning text.
func collapsible(b *Block) bool {
	if b.Kind == KindToolGroup {
		return true
	}
	return b.Kind == KindText && b.Role == msglog.RoleReasoning
}

// collapseTurn merges the run of consecutive group/reasoning blocks
// immediately preceding the given finished assistant block into one turn
// summary. A run of fewer than two blocks is left alone: a single group is
// already a collapsible unit, and wrapping it again would nest two
// expand/collapse layers around the same content.
func collapseTurn(target Canvas, assistant *Block, building bool) *Block {
	idx := target.IndexOf(assistant)
	if idx < 0 {
		return nil
	}

	blocks := target.Blocks()
	start := idx
	for start > 0 && collapsible(blocks[start-1]) {
		start--
	}
	run := append([]*Block(nil), blocks[start:idx]...)
	if len(run) < 2 {
		return nil
	}

	totalCalls := 0
	failures := 0
	hasReasoning := false
	var todo *Block
	todoRunning := false
	for _, b := range run {
		if b.Kind == KindText {
			hasReasoning = true
			continue
		}
		for _, child := range b.Children {
			if child.Kind == KindTodoProgress {
				todo = b
				if child.Total > child.Completed+child.Failed {
					todoRunning = true
				}
				continue
			}
			if child.StatusBearing() {
				totalCalls++
				if child.Status == msglog.ToolStatusFailed {
					failures++
				}
			}
		}
	}

	summary := newBlock(KindTurnSummary)
	summary.historical = building
	if todo != nil {
		summary.Label = todo.Label
		summary.Meta = todo.Meta
	} else {
		summary.Label = finishedPhrase(totalCalls, failures)
		if hasReasoning {
			summary.Meta = "with reasoning"
		}
	}
	summary.HasFailures = failures > 0
	summary.Expanded = todoRunning && !building

	// Splice the summary in at the position of the first collected block,
	// then move the run inside it in original order.
	target.InsertBefore(run[0], summary)
	for _, b := range run {
		target.Remove(b)
		summary.Children = append(summary.Children, b)
	}
	return summary
}

// collapseAll runs the collapser behind every finished assistant block, as
// done after a full rebuild. Blocks shift during splicing, so each pass
// re-reads the canvas.
func collapseAll(target Canvas, building bool) {
	// Collect assistant blocks first; splicing below them does not move them
	// relative to each other.
	var assistants []*Block
	for _, b := range target.Blocks() {
		if b.Kind == KindText && b.Role == msglog.RoleAssistant && !b.IsStreaming {
			assistants = append(assistants, b)
		}
	}
	for _, a := range assistants {
		collapseTurn(target, a, building)
	}
}
