// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// EventRow is one order/account push event for display.
type EventRow struct {
	Timestamp string
	Symbol    string
	Side      string
	Status    string
	OrderID   int64
}

// EventsComponent renders a scrollable feed of recent order/account events.
type EventsComponent struct {
	rows       []EventRow
	maxRows    int
	offset     int // for scrolling
	visibleMax int // how many to show at once
}

// NewEventsComponent creates a new events component.
func NewEventsComponent(maxRows int) *EventsComponent {
	return &EventsComponent{
		rows:       make([]EventRow, 0),
		maxRows:    maxRows,
		offset:     0,
		visibleMax: 8,
	}
}

// Add adds a new event to the feed, newest first.
func (e *EventsComponent) Add(row EventRow) {
	e.rows = append([]EventRow{row}, e.rows...)
	if len(e.rows) > e.maxRows {
		e.rows = e.rows[:e.maxRows]
	}
	e.offset = 0
}

// Clear clears all events.
func (e *EventsComponent) Clear() {
	e.rows = make([]EventRow, 0)
	e.offset = 0
}

// ScrollUp scrolls the feed up.
func (e *EventsComponent) ScrollUp() {
	if e.offset > 0 {
		e.offset--
	}
}

// ScrollDown scrolls the feed down.
func (e *EventsComponent) ScrollDown() {
	maxOffset := len(e.rows) - e.visibleMax
	if maxOffset < 0 {
		maxOffset = 0
	}
	if e.offset < maxOffset {
		e.offset++
	}
}

// Count returns the total number of events held.
func (e *EventsComponent) Count() int {
	return len(e.rows)
}

// View renders the events component.
func (e *EventsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	fillStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	cancelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	scrollHint := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))

	var result string
	result = headerStyle.Render("ORDER EVENTS")

	if len(e.rows) > 0 {
		result += mutedStyle.Render(fmt.Sprintf(" (%d total, ↑↓ scroll)", len(e.rows)))
	}
	result += "\n\n"

	if len(e.rows) == 0 {
		result += mutedStyle.Render("  No order events yet.\n")
		return result
	}

	if e.offset > 0 {
		result += scrollHint.Render(fmt.Sprintf("  ▲ %d above\n", e.offset))
	}

	end := e.offset + e.visibleMax
	if end > len(e.rows) {
		end = len(e.rows)
	}

	for i := e.offset; i < end; i++ {
		row := e.rows[i]
		style := mutedStyle
		switch row.Status {
		case "FILLED", "PARTIALLY_FILLED":
			style = fillStyle
		case "CANCELED", "REJECTED", "EXPIRED":
			style = cancelStyle
		}

		result += fmt.Sprintf("  [%s] %s %s %s %s\n",
			row.Timestamp,
			row.Symbol,
			row.Side,
			style.Render(row.Status),
			mutedStyle.Render(fmt.Sprintf("#%d", row.OrderID)),
		)
	}

	if end < len(e.rows) {
		result += scrollHint.Render(fmt.Sprintf("\n  ▼ %d more below\n", len(e.rows)-end))
	}

	return result
}
