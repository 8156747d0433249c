package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/actbridge/actbridge/internal/bridge"
	"github.com/actbridge/actbridge/internal/event"
	"github.com/actbridge/actbridge/internal/power"
	"github.com/actbridge/actbridge/internal/runtime"
	"github.com/actbridge/actbridge/internal/script"
)

// maxLogLines caps the event log kept in memory.
const maxLogLines = 500

// Stepper executes one console step on the UI goroutine.
type Stepper interface {
	Step(ctx context.Context, st script.Step) error
}

// Status is the bridge state shown in the header.
type Status interface {
	State() bridge.State
	Phase() bridge.Phase
	Handle() runtime.Handle
}

// Messages

type eventMsg struct{ event event.Event }
type outputMsg string

// Model is the Bubbletea model for the bridge console.
type Model struct {
	ctx     context.Context
	status  Status
	stepper Stepper
	feed    <-chan tea.Msg

	input  textinput.Model
	lines  []string
	errMsg string

	width    int
	height   int
	quitting bool
}

// NewModel creates a console model. Messages arriving on feed are appended
// to the event log.
func NewModel(ctx context.Context, status Status, stepper Stepper, feed <-chan tea.Msg) Model {
	ti := textinput.New()
	ti.Placeholder = "create"
	ti.Prompt = "› "
	ti.CharLimit = 256
	ti.Width = 60
	ti.Focus()

	return Model{
		ctx:     ctx,
		status:  status,
		stepper: stepper,
		feed:    feed,
		input:   ti,
	}
}

// waitForFeed reads the next message from the feed.
func waitForFeed(feed <-chan tea.Msg) tea.Cmd {
	if feed == nil {
		return nil
	}
	return func() tea.Msg {
		return <-feed
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForFeed(m.feed))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case eventMsg:
		m.appendLine(formatEvent(msg.event))
		return m, waitForFeed(m.feed)

	case outputMsg:
		m.appendLine(string(msg))
		return m, waitForFeed(m.feed)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs the command in the input line.
func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	m.errMsg = ""
	if line == "" {
		return m, nil
	}

	switch line {
	case "quit", "q", "destroy":
		// The caller destroys the bridge once the terminal is restored.
		m.quitting = true
		return m, tea.Quit
	case "help", "?":
		m.appendLine(helpText)
		return m, nil
	}

	st, err := ParseCommand(line)
	if err != nil {
		m.errMsg = err.Error()
		return m, nil
	}
	m.appendLine("> " + line)
	if err := m.stepper.Step(m.ctx, st); err != nil {
		m.errMsg = err.Error()
	}
	return m, nil
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

// Lines returns the event log.
func (m Model) Lines() []string {
	return m.lines
}

// Quitting reports whether the user asked to leave.
func (m Model) Quitting() bool {
	return m.quitting
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	visible := 10
	if m.height > 0 {
		visible = max(m.height-8, 3)
	}
	lines := m.lines
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	if m.width > 0 {
		lines = truncateLines(lines, m.width-6)
	}
	body := strings.Join(lines, "\n")
	if body == "" {
		body = mutedStyle.Render("no events yet, type help")
	}
	box := logBox
	if m.width > 0 {
		box = box.Width(max(m.width-2, 20))
	}
	b.WriteString(box.Render(body))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg))
	} else {
		b.WriteString(mutedStyle.Render("enter: run  esc: quit  help: commands"))
	}
	return b.String()
}

func (m Model) renderHeader() string {
	badge := readyBadge.Render("READY")
	if m.status.State() == bridge.StateFailed {
		badge = failedBadge.Render("FAILED")
	}
	details := mutedStyle.Render(fmt.Sprintf("phase %s  handle %#x", m.status.Phase(), uint64(m.status.Handle())))
	return lipgloss.JoinHorizontal(lipgloss.Center, titleStyle.Render("actbridge"), " ", badge, " ", details)
}

// truncateLines cuts each line to width visible columns, keeping styling
// escape sequences intact.
func truncateLines(lines []string, width int) []string {
	width = max(width, 4)
	out := make([]string, len(lines))
	for i, line := range lines {
		if lipgloss.Width(line) <= width {
			out[i] = line
			continue
		}
		out[i] = ansi.Truncate(line, width, "…")
	}
	return out
}

// formatEvent renders one bus event as a log line.
func formatEvent(e event.Event) string {
	ts := e.Timestamp().Format("15:04:05.000")
	var text string
	switch ev := e.(type) {
	case event.LifecycleForwardedEvent:
		text = fmt.Sprintf("forwarded %s", ev.Lifecycle)
		if ev.Lifecycle == "new_intent" {
			text += fmt.Sprintf(" action=%s data=%s", ev.Action, ev.Data)
		}
	case event.LifecycleDroppedEvent:
		text = warningStyle.Render(fmt.Sprintf("dropped %s (%s)", ev.Lifecycle, ev.Reason))
	case event.BridgeReadyEvent:
		text = fmt.Sprintf("bridge ready handle=%#x", ev.Handle)
	case event.BridgeFailedEvent:
		text = errorStyle.Render("bridge failed: runtime not available")
	case event.RuntimeExitedEvent:
		text = fmt.Sprintf("runtime exited code=%d", ev.ExitCode)
	case event.PermissionResultEvent:
		text = fmt.Sprintf("permission result code=%d permissions=%v grants=%v consumed=%t",
			ev.RequestCode, ev.Permissions, ev.Grants, ev.Consumed)
	case event.BatteryStatusEvent:
		text = fmt.Sprintf("battery %s delivered=%t",
			power.Snapshot{Charging: ev.Charging, Percent: ev.Percent}.JSON(), ev.Delivered)
	case event.ProcessTerminatingEvent:
		text = fmt.Sprintf("terminating (%s)", ev.Reason)
	default:
		text = e.EventType()
	}
	return mutedStyle.Render(ts) + " " + text
}
