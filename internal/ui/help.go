package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	sections := []helpSection{
		{
			title: "Submit form",
			items: []helpItem{
				{"tab/↓", "Next field"},
				{"shift+tab/↑", "Previous field"},
				{"enter", "Submit run"},
			},
		},
		{
			title: "Dialogs",
			items: []helpItem{
				{"enter", "Accept / confirm"},
				{"esc", "Not now / cancel"},
				{"ctrl+n", "Sign in ↔ sign up"},
				{"o", "Open checkout"},
				{"c", "Check payment"},
			},
		},
		{
			title: "General",
			items: []helpItem{
				{"ctrl+r", "Refresh allowance"},
				{"ctrl+t", "Cycle theme"},
				{"f1", "Toggle help"},
				{"ctrl+c", "Quit"},
			},
		},
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Warning)).
		Width(14)

	for i, section := range sections {
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")
		for _, item := range section.items {
			b.WriteString(keyStyle.Render(item.key))
			b.WriteString(styles.Text.Render(item.desc))
			b.WriteString("\n")
		}
		if i < len(sections)-1 {
			b.WriteString("\n")
		}
	}

	return placeModal(m.theme, m.width, m.height, 44, b.String())
}

type helpSection struct {
	title string
	items []helpItem
}

type helpItem struct {
	key  string
	desc string
}
