// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/colastat/pkg/cola"
	"github.com/Thermoquad/colastat/pkg/tim"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusCommands = iota
	focusInput
)

const maxLogEntries = 100

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// quickCommand is a predefined telegram in the command list
type quickCommand struct {
	name     string
	telegram string
}

// Implement list.Item interface
func (c quickCommand) Title() string       { return c.name }
func (c quickCommand) Description() string { return c.telegram }
func (c quickCommand) FilterValue() string { return c.name }

func quickCommands() []list.Item {
	return []list.Item{
		quickCommand{"Device state", cola.ReadVariable(cola.VarDeviceState)},
		quickCommand{"Device ident", cola.ReadVariable(cola.VarDeviceIdent)},
		quickCommand{"Firmware", cola.ReadVariable(cola.VarFirmwareVersion)},
		quickCommand{"Scan config", cola.ReadVariable(cola.VarScanConfig)},
		quickCommand{"Output state", cola.ReadVariable(cola.VarOutputState)},
		quickCommand{"Operating hours", cola.ReadVariable(cola.VarOperatingHours)},
		quickCommand{"Login (client)", cola.SetAccessMode(cola.UserLevelAuthorizedClient, cola.PasswordAuthorizedClient)},
		quickCommand{"Start measurement", cola.InvokeMethod(cola.MethodStartMeasurement)},
		quickCommand{"Stop measurement", cola.InvokeMethod(cola.MethodStopMeasurement)},
		quickCommand{"Run", cola.InvokeMethod(cola.MethodRun)},
	}
}

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	connInfo string
	stats    *tim.Statistics
	submit   func(workerRequest) bool

	// Controls
	commands     list.Model
	input        textinput.Model
	focusedField int
	lastAnswer   string

	// Latest scan
	latest      *cola.ScanRecord
	lastScanAt  time.Time
	scanLatency time.Duration

	eventLog []errorLogEntry

	// UI state
	width          int
	height         int
	paused         bool
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type scanMsg struct {
	scan *cola.ScanRecord
	err  error
	at   time.Time
	took time.Duration
}

type answerMsg struct {
	telegram string
	answer   string
	err      error
	took     time.Duration
}

type pausedMsg struct {
	paused bool
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct{}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(connInfo string, stats *tim.Statistics, submit func(workerRequest) bool) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "sRN DeviceIdent"
	ti.CharLimit = 256
	ti.Width = 40
	ti.Prompt = "> "

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	commands := list.New(quickCommands(), delegate, 30, 10)
	commands.Title = "Commands"
	commands.SetShowStatusBar(false)
	commands.SetShowHelp(false)
	commands.SetFilteringEnabled(false)

	return monitorModel{
		connInfo:     connInfo,
		stats:        stats,
		submit:       submit,
		commands:     commands,
		input:        ti,
		focusedField: focusCommands,
		eventLog:     make([]errorLogEntry, 0),
		width:        80,
		height:       24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case monitorTickMsg:
		// Redraw so rates and ages stay current
		return m, monitorTickCmd()

	case scanMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("SCAN: %v", msg.err), true)
			break
		}
		m.latest = msg.scan
		m.lastScanAt = msg.at
		m.scanLatency = msg.took

	case answerMsg:
		if msg.err != nil {
			m.lastAnswer = fmt.Sprintf("%s: %v", msg.telegram, msg.err)
			m.addLogEntry(fmt.Sprintf("%s: %v", msg.telegram, msg.err), true)
			break
		}
		m.lastAnswer = strings.TrimSpace(cola.FormatPayload(msg.answer))
		m.addLogEntry(fmt.Sprintf("%s -> %s (%s)", msg.telegram, msg.answer, msg.took.Round(time.Millisecond)), false)

	case pausedMsg:
		m.paused = msg.paused
		if m.paused {
			m.addLogEntry("Scan polling paused", false)
		} else {
			m.addLogEntry("Scan polling resumed", false)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry(fmt.Sprintf("Connection lost - reconnecting... (%v)", msg.err), true)

	case reconnectedMsg:
		m.connectionLost = false
		m.addLogEntry("Reconnected", false)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusInput {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField != focusInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		m.toggleFocus()
		return m, nil

	case " ":
		if m.focusedField == focusCommands {
			if !m.submit(workerRequest{pause: true}) {
				m.addLogEntry("Busy, try again", true)
			}
			return m, nil
		}

	case "enter":
		if m.focusedField == focusInput {
			telegram := strings.TrimSpace(m.input.Value())
			if telegram != "" {
				m.sendTelegram(telegram)
				m.input.Reset()
			}
			return m, nil
		}
		if item, ok := m.commands.SelectedItem().(quickCommand); ok {
			m.sendTelegram(item.telegram)
		}
		return m, nil
	}

	// Pass through to focused component
	var cmd tea.Cmd
	if m.focusedField == focusInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.commands, cmd = m.commands.Update(msg)
	}
	return m, cmd
}

func (m *monitorModel) toggleFocus() {
	if m.focusedField == focusCommands {
		m.focusedField = focusInput
		m.input.Focus()
	} else {
		m.focusedField = focusCommands
		m.input.Blur()
	}
}

func (m *monitorModel) sendTelegram(telegram string) {
	// Don't queue commands while connection is lost
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return
	}
	if !m.submit(workerRequest{telegram: telegram}) {
		m.addLogEntry("Busy, try again", true)
		return
	}
	m.addLogEntry(fmt.Sprintf("Sent %s", telegram), false)
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("COLASTAT MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	} else if m.paused {
		connStatus += " " + warningStyle.Render("(paused)")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch Space=pause", connStatus)))
	s.WriteString("\n\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	// Layout: left panel (commands) | right panel (scan)
	leftWidth := 30
	rightWidth := max(m.width-leftWidth-6, 20)

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusCommands {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	commandPanel := listStyle.Render(m.commands.View())
	scanPanel := boxStyle.Width(rightWidth).Render(m.renderScan(statsLabelStyle, statsValueStyle, headerStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, commandPanel, " ", scanPanel))
	s.WriteString("\n")

	// Telegram input and last answer
	inputStyle := boxStyle.Width(m.width - 4)
	if m.focusedField == focusInput {
		inputStyle = focusedBoxStyle.Width(m.width - 4)
	}
	answer := m.lastAnswer
	if answer == "" {
		answer = headerStyle.Render("(no answer yet)")
	}
	s.WriteString(inputStyle.Render(fmt.Sprintf("%s %s\n%s %s",
		statsLabelStyle.Render("TELEGRAM"), m.input.View(),
		statsLabelStyle.Render("ANSWER"), answer)))
	s.WriteString("\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	c := m.stats.Snapshot()

	var answerPercent float64
	if c.TotalExchanges > 0 {
		answerPercent = float64(c.Answers) * 100.0 / float64(c.TotalExchanges)
	}

	errorsValue := statsValueStyle.Render("0")
	if c.Errors() > 0 {
		errorsValue = errorStyle.Render(fmt.Sprintf("%d", c.Errors()))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Exchanges:"), statsValueStyle.Render(fmt.Sprintf("%d", c.TotalExchanges)),
		statsLabelStyle.Render("OK:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", answerPercent)),
		statsLabelStyle.Render("Errors:"), errorsValue,
		statsLabelStyle.Render("Timeouts:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Timeouts)),
		statsLabelStyle.Render("Scans:"), statsValueStyle.Render(fmt.Sprintf("%d", c.ScansDecoded)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", c.ExchangeRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderScan(statsLabelStyle, statsValueStyle, headerStyle lipgloss.Style) string {
	var content strings.Builder
	content.WriteString(statsLabelStyle.Render("LATEST SCAN"))
	content.WriteString("\n")

	r := m.latest
	if r == nil {
		content.WriteString(headerStyle.Render("No scan yet"))
		return content.String()
	}

	age := time.Since(m.lastScanAt).Round(100 * time.Millisecond)
	content.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s\n",
		statsLabelStyle.Render("Scan:"), statsValueStyle.Render(fmt.Sprintf("#%d", r.ScanCounter)),
		statsLabelStyle.Render("Freq:"), statsValueStyle.Render(fmt.Sprintf("%.2f Hz", r.ScanFrequency)),
		statsLabelStyle.Render("Age:"), statsValueStyle.Render(fmt.Sprintf("%s (took %s)", age, m.scanLatency.Round(time.Millisecond)))))

	if d := r.Distance; d != nil {
		stop := d.Angle(max(d.SampleCount-1, 0))
		content.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Distance:"),
			statsValueStyle.Render(fmt.Sprintf("%d samples %.2f° .. %.2f°", d.SampleCount, d.StartAngle, stop))))
		if lo, hi, mean, ok := d.Range(); ok {
			content.WriteString(fmt.Sprintf("  min %s  max %s  mean %s\n",
				statsValueStyle.Render(fmt.Sprintf("%.3f m", lo)),
				statsValueStyle.Render(fmt.Sprintf("%.3f m", hi)),
				statsValueStyle.Render(fmt.Sprintf("%.3f m", mean))))
		}
	} else {
		content.WriteString(headerStyle.Render("No distance channel") + "\n")
	}

	if r.RSSI != nil {
		content.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("RSSI:"), statsValueStyle.Render(fmt.Sprintf("%d samples", r.RSSI.SampleCount))))
	}

	// Uptime is in microseconds
	content.WriteString(fmt.Sprintf("%s %s  %s %s",
		statsLabelStyle.Render("Uptime:"), statsValueStyle.Render(formatUptime(r.Uptime/1000)),
		statsLabelStyle.Render("Status:"), statsValueStyle.Render(fmt.Sprintf("%d", r.DeviceStatus))))

	return content.String()
}

func (m monitorModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := min(8, len(m.eventLog))
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

func (m *monitorModel) updateListSize() {
	// Adjust list size based on terminal size
	listHeight := max(m.height/3, 5)
	m.commands.SetSize(28, listHeight)
}

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}
