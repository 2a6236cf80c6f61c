package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Colors - Retro-futuristic aesthetic for the lumi client
var (
	// Brand colors
	colorBrand    = lipgloss.Color("#9D00FF") // Electric purple
	colorTeal     = lipgloss.Color("#00FFCC") // Bright teal
	colorBrandDim = lipgloss.Color("#6B00B3") // Dimmed purple for subtle accents

	// Role colors (user=green, assistant=magenta, reasoning=cyan, tool=yellow)
	colorUser      = lipgloss.Color("#00FF66")
	colorAssistant = lipgloss.Color("#FF00CC")
	colorReasoning = lipgloss.Color("#00CCFF")
	colorTool      = lipgloss.Color("#FFCC00")

	// Semantic colors
	colorError   = lipgloss.Color("#FF3366")
	colorSuccess = lipgloss.Color("#00FF66")
	colorMuted   = lipgloss.Color("#5555AA")

	// Backgrounds
	colorBgAlt   = lipgloss.Color("#101018")
	colorBgPanel = lipgloss.Color("#14141F")
	colorBorder  = lipgloss.Color("#2A2A55")
)

// Styles
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBrand).
			Background(colorBgAlt)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBrand)

	// Chat list - double border for that 80s terminal aesthetic
	chatListStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorBrandDim)

	chatItemStyle = lipgloss.NewStyle().
			Foreground(colorTeal).
			Padding(0, 1)

	chatItemSelectedStyle = lipgloss.NewStyle().
				Foreground(colorBgAlt).
				Background(colorBrand).
				Bold(true).
				Padding(0, 1)

	// Transcript roles
	userStyle = lipgloss.NewStyle().
			Foreground(colorUser).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(colorAssistant)

	reasoningStyle = lipgloss.NewStyle().
			Foreground(colorReasoning).
			Italic(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(colorTool)

	// Tool group chrome
	groupHeaderStyle = lipgloss.NewStyle().
				Foreground(colorTool).
				Bold(true)

	groupMetaStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	groupActiveStyle = lipgloss.NewStyle().
				Foreground(colorTeal).
				Bold(true)

	summaryStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	terminalStyle = lipgloss.NewStyle().
			Foreground(colorTeal).
			Background(colorBgPanel)

	questionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorTeal).
			Padding(0, 1)

	chipStyle = lipgloss.NewStyle().
			Foreground(colorTeal).
			Background(colorBgPanel).
			Padding(0, 1)

	failedStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	// Input
	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorTeal).
			Padding(0, 1)

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(colorBrand).
				Bold(true)

	// Help
	helpStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorBrand).
			Background(colorBgPanel).
			Padding(1, 2).
			Margin(1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorTeal).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(colorTeal).
			Bold(true)

	dimmedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Background(colorBgAlt)
)

// RoleStyle returns the appropriate style for a message role.
func RoleStyle(role string) lipgloss.Style {
	switch role {
	case "user":
		return userStyle
	case "assistant":
		return assistantStyle
	case "reasoning":
		return reasoningStyle
	case "tool":
		return toolStyle
	default:
		return dimmedStyle
	}
}

// renderSectionTitle renders a section title that spans the full width.
func renderSectionTitle(title string, width int) string {
	// Format: ⬧── TITLE ──⬧ with dashes filling the remaining space
	titleWithSpaces := " " + title + " "
	titleDisplayWidth := lipgloss.Width(titleWithSpaces)
	availableWidth := width - titleDisplayWidth - 4
	if availableWidth < 2 {
		availableWidth = 2
	}
	leftDashes := availableWidth / 2
	rightDashes := availableWidth - leftDashes

	line := "⬧─" + strings.Repeat("─", leftDashes) + titleWithSpaces + strings.Repeat("─", rightDashes) + "─⬧"
	return panelTitleStyle.Width(width).Render(line)
}

// truncateToWidth truncates a string to fit within maxWidth display columns.
// Uses rune-aware iteration to avoid cutting multi-byte characters.
func truncateToWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	currentWidth := 0
	for i, r := range s {
		charWidth := lipgloss.Width(string(r))
		if currentWidth+charWidth > maxWidth {
			return s[:i]
		}
		currentWidth += charWidth
	}
	return s
}

func truncateWithEllipsis(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return truncateToWidth(s, maxWidth)
	}
	return truncateToWidth(s, maxWidth-3) + "..."
}

// formatTimestamp formats a message timestamp as "[HH:MM]" in local time.
func formatTimestamp(ts time.Time) string {
	return dimmedStyle.Render("[" + ts.Local().Format("15:04") + "]")
}
