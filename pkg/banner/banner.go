// Package banner renders the lipgloss-styled startup and shutdown blocks
// the CLI prints around a bridge run, one line per configured PLC.
package banner

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/plantdata/finsbridge/internal/config"
	"github.com/plantdata/finsbridge/internal/errs"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))

	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	badStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#374151")).
			Padding(0, 1)
)

// Startup renders one block per configured PLC before the Supervisor
// starts any Acquisition Loop.
func Startup(plcs []config.PLCConfig, csvFlag bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("finsbridge") + "\n")

	for _, plc := range plcs {
		line := fmt.Sprintf("%s %s    %s %s    %s %d tag(s)",
			labelStyle.Render("plc"), valueStyle.Render(plc.Name),
			labelStyle.Render("ip"), valueStyle.Render(plc.IP),
			labelStyle.Render("tags"), len(plc.Tags))
		b.WriteString(boxStyle.Render(line) + "\n")
	}

	mode := "opc ua, falling back to csv"
	if csvFlag {
		mode = "opc ua + csv"
	}
	b.WriteString(labelStyle.Render("sink mode: ") + valueStyle.Render(mode) + "\n")
	return b.String()
}

// Shutdown renders the one-line-per-PLC summary printed once every loop has
// drained, colored by whether that loop's termination was abnormal.
func Shutdown(reports map[string]errs.DrainReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("shutdown summary") + "\n")

	for name, report := range reports {
		style := okStyle
		switch report.Reason {
		case errs.ReasonFinsUnreachable:
			style = badStyle
		case errs.ReasonReadThreshold, errs.ReasonWriteThreshold:
			style = warnStyle
		}
		b.WriteString(fmt.Sprintf("%s %s\n", valueStyle.Render(name), style.Render(string(report.Reason))))
	}
	return b.String()
}
