// Package ui provides the Bubble Tea operator dashboard for the gateway.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fd1az/venue-gateway/pkg/ui/components"
)

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 1500 * time.Millisecond

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	status        *components.StatusComponent
	stats         *components.StatsComponent
	subscriptions *components.SubscriptionsComponent
	events        *components.EventsComponent

	phase        Phase
	welcomeStart time.Time

	ready    bool
	quitting bool
	paused   bool
	width    int
	height   int

	clientCount int
	lastUpdate  time.Time
	errorMsg    string
	errors      []ErrorEntry
	logs        []string
}

// New creates a new TUI model.
func New() Model {
	return Model{
		status:        components.NewStatusComponent(),
		stats:         components.NewStatsComponent(),
		subscriptions: components.NewSubscriptionsComponent(),
		events:        components.NewEventsComponent(200),
		phase:         PhaseWelcome,
		welcomeStart:  time.Now(),
		logs:          make([]string, 0, 5),
		errors:        make([]ErrorEntry, 0, 3),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 250ms.
func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			m.phase = PhaseDashboard
			if OnStartModules != nil {
				go OnStartModules()
			}
			return m, tickCmd()
		}
		switch msg.String() {
		case "c":
			m.events.Clear()
			return m, nil
		case "p":
			m.paused = !m.paused
			return m, nil
		case "up", "k":
			m.events.ScrollUp()
			return m, nil
		case "down", "j":
			m.events.ScrollDown()
			return m, nil
		case "e":
			m.errors = make([]ErrorEntry, 0, 3)
			m.errorMsg = ""
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.phase = PhaseDashboard
			if OnStartModules != nil {
				go OnStartModules()
			}
		}
		return m, tickCmd()

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			State:      msg.State,
			LastUpdate: time.Now(),
		})
		m.lastUpdate = time.Now()

	case ClientCountMsg:
		m.clientCount = msg.Count
		m.lastUpdate = time.Now()

	case SubscriptionSnapshotMsg:
		rows := make([]components.SubscriptionRow, 0, len(msg.Rows))
		for _, r := range msg.Rows {
			rows = append(rows, components.SubscriptionRow{Stream: r.Stream, Subscribers: r.Subscribers})
		}
		m.subscriptions.Update(rows)
		m.lastUpdate = time.Now()

	case OrderEventMsg:
		if !m.paused {
			m.events.Add(components.EventRow{
				Timestamp: msg.Timestamp.Format("15:04:05"),
				Symbol:    msg.Symbol,
				Side:      msg.Side,
				Status:    msg.Status,
				OrderID:   msg.OrderID,
			})
		}
		m.lastUpdate = time.Now()

	case StatsMsg:
		m.stats.Update(components.Stats{
			Clients:         m.clientCount,
			FramesIn:        msg.FramesIn,
			FramesOut:       msg.FramesOut,
			OrdersPlaced:    msg.OrdersPlaced,
			OrdersCancelled: msg.OrdersCancelled,
			Errors:          msg.Errors,
		})

	case ErrorMsg:
		m.errorMsg = msg.Error.Error()
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{Message: msg.Error.Error(), Timestamp: time.Now()})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)
	}

	return m, nil
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logs = append(logs, fmt.Sprintf("[%s] %s: %s", timestamp, level, message))
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	if m.phase == PhaseWelcome {
		return m.renderWelcomeScreen()
	}

	var b strings.Builder

	title := TitleStyle.Render(" ⚡ Venue Gateway ")
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftContent := m.status.View() + "\n\n" + m.stats.View()
	rightContent := m.subscriptions.View() + "\n\n" + m.events.View()

	if m.width > 100 {
		left := BoxStyle.Width(m.width/2 - 2).Render(leftContent)
		right := BoxStyle.Width(m.width/2 - 2).Render(rightContent)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		b.WriteString(BoxStyle.Width(m.width - 4).Render(leftContent))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(m.width - 4).Render(rightContent))
	}

	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)
		mutedError := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(mutedError.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(mutedError.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	helpText := "q: quit • c: clear events • p: pause • ↑↓: scroll • e: clear errors"
	if m.paused {
		pauseStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
		b.WriteString(pauseStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(helpText))

	return b.String()
}

// renderWelcomeScreen renders the welcome screen shown before modules connect.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	greenStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))

	elapsed := time.Since(m.welcomeStart)
	dotCount := int(elapsed.Milliseconds()/300) % 4
	dots := strings.Repeat(".", dotCount)

	var sb strings.Builder
	sb.WriteString("\n\n\n")
	sb.WriteString(titleStyle.Render("              V E N U E   G A T E W A Y"))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("        Normalized order/market-data connectivity"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                  Connecting%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("            Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Clients: %d", m.clientCount))

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		indicator := ""
		if ago < 2*time.Second {
			indicator = "▪"
		}
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago %s", ago, indicator)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should connect.
// Set by main.go to signal when to begin dialing upstream venues.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run() error {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
	if _, ok := msg.(StartModulesMsg); ok && OnStartModules != nil {
		OnStartModules()
	}
}
