// Package dashboard renders a live bubbletea terminal view over a
// metrics.Collector: one row per configured PLC, updated as snapshots
// arrive on its subscription channel.
package dashboard

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/plantdata/finsbridge/internal/metrics"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	headerRowStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#374151"))

	sinkDualStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	sinkOpcuaOnlyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	sinkCsvOnlyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	failureCloseStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#374151")).
			Padding(0, 1)
)

type snapshotMsg metrics.Snapshot

// Model is the bubbletea model for the live PLC table.
type Model struct {
	collector *metrics.Collector
	sub       chan metrics.Snapshot
	snapshot  metrics.Snapshot

	width, height int
	ready         bool
}

// NewModel creates a dashboard Model subscribed to collector.
func NewModel(collector *metrics.Collector) Model {
	return Model{collector: collector, sub: collector.Subscribe()}
}

// Init starts waiting for snapshots on the subscription NewModel opened.
func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.sub)
}

func waitForSnapshot(sub chan metrics.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

// Update handles bubbletea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.sub != nil {
				m.collector.Unsubscribe(m.sub)
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
	case snapshotMsg:
		m.snapshot = metrics.Snapshot(msg)
		return m, waitForSnapshot(m.sub)
	}
	return m, nil
}

// View renders the table.
func (m Model) View() string {
	if !m.ready {
		return "initializing...\n"
	}

	w := m.width
	if w < 40 {
		w = 40
	}

	var b strings.Builder
	b.WriteString(titleStyle.Width(w).Render(" finsbridge") + "\n")

	header := fmt.Sprintf("%-16s %-16s %-10s %-8s %-8s %-6s %-6s %-19s",
		"PLC", "PHASE", "SINK", "FINS", "OPCUA", "RDFAIL", "WRFAIL", "LAST CYCLE")
	b.WriteString(headerRowStyle.Width(w - 2).Render(header) + "\n")

	for _, p := range m.snapshot.PLCs {
		sink := sinkStyle(p.SinkMode).Render(string(p.SinkMode))
		fins := boolCell(p.FinsUp)
		opcua := boolCell(p.OpcuaUp)
		rdFail := failureCell(p.ConsecutiveReadFailures)
		wrFail := failureCell(p.ConsecutiveWriteFailures)
		last := mutedStyle.Render(p.LastCycleAt.Format("15:04:05"))

		row := fmt.Sprintf("%-16s %-16s %-10s %-8s %-8s %-6s %-6s %s",
			p.Name, p.Phase, sink, fins, opcua, rdFail, wrFail, last)
		b.WriteString(row + "\n")
	}

	b.WriteString(mutedStyle.Render(fmt.Sprintf("total cycles: %d    press q to quit", m.snapshot.TotalCycles)))
	return boxStyle.Width(w - 2).Render(b.String())
}

func sinkStyle(mode metrics.SinkMode) lipgloss.Style {
	switch mode {
	case metrics.SinkDual:
		return sinkDualStyle
	case metrics.SinkOpcuaOnly:
		return sinkOpcuaOnlyStyle
	default:
		return sinkCsvOnlyStyle
	}
}

func boolCell(up bool) string {
	if up {
		return sinkDualStyle.Render("up")
	}
	return failureCloseStyle.Render("down")
}

func failureCell(n int) string {
	s := fmt.Sprintf("%d", n)
	if n >= 2 {
		return failureCloseStyle.Render(s)
	}
	return mutedStyle.Render(s)
}

// Run starts the bubbletea program and blocks until the user quits.
func Run(collector *metrics.Collector) error {
	p := tea.NewProgram(NewModel(collector), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
