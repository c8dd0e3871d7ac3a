// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SubscriptionRow is one stream's current fan-out state.
type SubscriptionRow struct {
	Stream      string
	Subscribers int
}

// SubscriptionsComponent renders the active stream subscription table.
type SubscriptionsComponent struct {
	rows []SubscriptionRow
}

// NewSubscriptionsComponent creates a new subscriptions component.
func NewSubscriptionsComponent() *SubscriptionsComponent {
	return &SubscriptionsComponent{
		rows: make([]SubscriptionRow, 0),
	}
}

// Update replaces the subscription table with a fresh snapshot.
func (s *SubscriptionsComponent) Update(rows []SubscriptionRow) {
	s.rows = rows
}

// View renders the subscriptions component.
func (s *SubscriptionsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)

	var result string
	result = headerStyle.Render("SUBSCRIPTIONS")
	result += "\n\n"

	if len(s.rows) == 0 {
		result += dimStyle.Render("  No active subscriptions.\n")
		return result
	}

	result += fmt.Sprintf("  %-24s  %11s\n", "Stream", "Subscribers")
	result += dimStyle.Render("  "+strings.Repeat("─", 39)) + "\n"

	for _, row := range s.rows {
		result += fmt.Sprintf("  %-24s  %11s\n",
			row.Stream,
			valueStyle.Render(fmt.Sprintf("%d", row.Subscribers)),
		)
	}

	return result
}
