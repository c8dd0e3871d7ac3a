// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds the running gateway counters for display.
type Stats struct {
	Clients         int
	FramesIn        int64
	FramesOut       int64
	OrdersPlaced    int64
	OrdersCancelled int64
	Errors          int64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Clients: %s  │  Frames in/out: %s/%s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Clients)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.FramesIn)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.FramesOut)),
		) +
		fmt.Sprintf("Orders placed: %s  │  Cancelled: %s  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.OrdersPlaced)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.OrdersCancelled)),
			errorsDisplay,
		)
}
