package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/xonecas/lumi/internal/msglog"
	"github.com/xonecas/lumi/internal/transcript"
)

// RenderBlocks renders the transcript block tree into viewport content.
func RenderBlocks(blocks []*transcript.Block, width int, showTimestamps bool) string {
	if width < 10 {
		width = 10
	}
	var out []string
	for _, b := range blocks {
		rendered := renderBlock(b, width, showTimestamps)
		if rendered != "" {
			out = append(out, rendered, "")
		}
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n")
}

func renderBlock(b *transcript.Block, width int, showTimestamps bool) string {
	switch b.Kind {
	case transcript.KindText:
		return renderText(b, width, showTimestamps)
	case transcript.KindToolGroup:
		return renderGroup(b, width)
	case transcript.KindTurnSummary:
		return renderSummary(b, width)
	case transcript.KindToolCall:
		return renderToolCall(b, width)
	case transcript.KindTerminalPreview:
		return renderTerminal(b, width)
	case transcript.KindTodoProgress:
		return renderTodo(b, width)
	case transcript.KindQuestionCard:
		return renderQuestion(b, width)
	case transcript.KindTypingIndicator:
		return dimmedStyle.Render("● ● ●")
	case transcript.KindLoadingIndicator:
		return dimmedStyle.Render("Loading transcript...")
	}
	return ""
}

func renderText(b *transcript.Block, width int, showTimestamps bool) string {
	role := string(b.Role)
	header := RoleStyle(role).Render(roleLabel(b))
	if showTimestamps && !b.Timestamp.IsZero() {
		header += " " + formatTimestamp(b.Timestamp)
	}
	if b.IsStreaming {
		header += " " + dimmedStyle.Render("▍")
	}

	lines := []string{header}
	for _, line := range wrapText(b.Content, width) {
		lines = append(lines, line)
	}

	if len(b.FileChips) > 0 {
		var chips []string
		for _, path := range b.FileChips {
			chips = append(chips, chipStyle.Render("⎘ "+truncateWithEllipsis(path, width/2)))
		}
		lines = append(lines, strings.Join(chips, " "))
	}
	if len(b.Skills) > 0 {
		var names []string
		for _, s := range b.Skills {
			names = append(names, s.Name)
		}
		lines = append(lines, dimmedStyle.Render("skills: "+strings.Join(names, ", ")))
	}
	if len(b.Sources) > 0 {
		for _, src := range b.Sources {
			lines = append(lines, dimmedStyle.Render("  ↗ "+src.Title+" "+truncateWithEllipsis(src.URL, width/2)))
		}
	}
	if len(b.FileEdits) > 0 {
		for _, e := range b.FileEdits {
			lines = append(lines, chipStyle.Render("± "+truncateWithEllipsis(e.Path, width-4)))
		}
	}
	return strings.Join(lines, "\n")
}

func roleLabel(b *transcript.Block) string {
	switch b.Role {
	case msglog.RoleUser:
		if b.Author != "" {
			return b.Author
		}
		return "You"
	case msglog.RoleAssistant:
		if b.Author != "" {
			return b.Author
		}
		return "Lumi"
	case msglog.RoleReasoning:
		return "Thinking"
	}
	return string(b.Role)
}

func renderGroup(b *transcript.Block, width int) string {
	arrow := "▸"
	if b.Expanded {
		arrow = "▾"
	}

	style := groupHeaderStyle
	if b.IsActive {
		style = groupActiveStyle
	}
	header := style.Render(arrow + " " + b.Label)
	if b.Meta != "" {
		header += " " + groupMetaStyle.Render("("+b.Meta+")")
	}
	if b.HasFailures {
		header += " " + failedStyle.Render("!")
	}

	lines := []string{header}
	if b.IsActive {
		lines = append(lines, progressBar(b.Progress, min(width-2, 30)))
	}
	if b.Expanded {
		for _, child := range b.Children {
			lines = append(lines, indent(renderBlock(child, width-2, false), "  "))
		}
	}
	return strings.Join(lines, "\n")
}

func renderSummary(b *transcript.Block, width int) string {
	arrow := "▸"
	if b.Expanded {
		arrow = "▾"
	}
	header := summaryStyle.Render(arrow + " " + b.Label)
	if b.Meta != "" {
		header += " " + groupMetaStyle.Render("("+b.Meta+")")
	}
	if b.HasFailures {
		header += " " + failedStyle.Render("!")
	}

	lines := []string{header}
	if b.Expanded {
		for _, child := range b.Children {
			lines = append(lines, indent(renderBlock(child, width-2, false), "  "))
		}
	}
	return strings.Join(lines, "\n")
}

func renderToolCall(b *transcript.Block, width int) string {
	line := statusIcon(b.Status) + " " + toolStyle.Render(b.Name)
	if b.InputSummary != "" {
		line += " " + dimmedStyle.Render(truncateWithEllipsis(b.InputSummary, width/2))
	}
	if b.DurationMs > 0 {
		line += " " + dimmedStyle.Render(formatDuration(b.DurationMs))
	}
	return line
}

func renderTerminal(b *transcript.Block, width int) string {
	lines := []string{statusIcon(b.Status) + " " + toolStyle.Render("$ "+truncateWithEllipsis(b.Command, width-4))}
	if b.Output != "" {
		for _, line := range tailLines(b.Output, 8) {
			lines = append(lines, terminalStyle.Render(truncateToWidth("  "+line, width)))
		}
	}
	return strings.Join(lines, "\n")
}

func renderTodo(b *transcript.Block, width int) string {
	bar := progressBar(percentOf(b.Completed, b.Total), min(width-2, 30))
	line := fmt.Sprintf("%d/%d steps", b.Completed, b.Total)
	if b.Failed > 0 {
		line += " " + failedStyle.Render(fmt.Sprintf("%d failed", b.Failed))
	}
	return bar + "\n" + dimmedStyle.Render(line)
}

func renderQuestion(b *transcript.Block, width int) string {
	var body []string
	body = append(body, wrapText(b.Content, width-4)...)
	if b.Question != nil {
		for i, opt := range b.Question.Options {
			body = append(body, fmt.Sprintf("  %d. %s", i+1, opt))
		}
	}
	return questionStyle.Width(min(width, 60)).Render(strings.Join(body, "\n"))
}

func statusIcon(status msglog.ToolStatus) string {
	switch status {
	case msglog.ToolStatusInProgress:
		return dimmedStyle.Render("…")
	case msglog.ToolStatusCompleted:
		return successStyle.Render("✓")
	case msglog.ToolStatusFailed:
		return failedStyle.Render("✗")
	}
	return dimmedStyle.Render("·")
}

// progressBar renders a determinate bar, or a dashed one when progress is
// indeterminate.
func progressBar(percent float64, width int) string {
	if width < 4 {
		width = 4
	}
	if percent == transcript.ProgressIndeterminate {
		return dimmedStyle.Render(strings.Repeat("╌", width))
	}
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return successStyle.Render(strings.Repeat("█", filled)) +
		dimmedStyle.Render(strings.Repeat("░", width-filled))
}

func percentOf(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(done) / float64(total)
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// wrapText word-wraps content to the given display width. Words longer than
// the width are split hard.
func wrapText(s string, width int) []string {
	if width < 1 {
		width = 1
	}
	var out []string
	for _, paragraph := range strings.Split(s, "\n") {
		if paragraph == "" {
			out = append(out, "")
			continue
		}
		var line string
		lineWidth := 0
		for _, word := range strings.Fields(paragraph) {
			w := runewidth.StringWidth(word)
			for w > width {
				// Hard-split oversized words.
				if lineWidth > 0 {
					out = append(out, line)
					line, lineWidth = "", 0
				}
				cut := runewidth.Truncate(word, width, "")
				out = append(out, cut)
				word = word[len(cut):]
				w = runewidth.StringWidth(word)
			}
			switch {
			case lineWidth == 0:
				line, lineWidth = word, w
			case lineWidth+1+w <= width:
				line += " " + word
				lineWidth += 1 + w
			default:
				out = append(out, line)
				line, lineWidth = word, w
			}
		}
		if lineWidth > 0 || line != "" {
			out = append(out, line)
		}
	}
	return out
}

func tailLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
