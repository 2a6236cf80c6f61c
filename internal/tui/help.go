package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type helpEntry struct {
	key  string
	desc string
}

var helpSections = []struct {
	title   string
	entries []helpEntry
}{
	{
		title: "Chats",
		entries: []helpEntry{
			{"enter", "open selected chat"},
			{"n", "new chat"},
			{"R", "rename chat"},
			{"d", "delete chat"},
			{"esc", "back to chat list"},
		},
	},
	{
		title: "Conversation",
		entries: []helpEntry{
			{"i / enter", "type a message"},
			{"up/down", "scroll transcript"},
			{"pgup/pgdn", "scroll faster"},
			{"t", "toggle tool calls"},
			{"e", "toggle reasoning"},
			{"s", "toggle timestamps"},
		},
	},
	{
		title: "General",
		entries: []helpEntry{
			{"?", "toggle this help"},
			{"q", "quit"},
		},
	},
}

// RenderHelp renders the help overlay centered on screen.
func RenderHelp(width, height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("lumi") + "\n\n")

	for _, section := range helpSections {
		b.WriteString(panelTitleStyle.Render(section.title) + "\n")
		for _, e := range section.entries {
			b.WriteString("  " + helpKeyStyle.Render(padKey(e.key)) + helpDescStyle.Render(e.desc) + "\n")
		}
		b.WriteString("\n")
	}

	box := helpStyle.Render(strings.TrimRight(b.String(), "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func padKey(k string) string {
	const keyCol = 12
	for len(k) < keyCol {
		k += " "
	}
	return k
}
