package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	rwerrors "github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/metrics"
	"github.com/rileyhilliard/rackwatch/internal/poller"
)

const (
	cardGraphHeight = 2
	cardLabelWidth  = 5
	cardMaxMounts   = 3
)

var cardDividerStyle = lipgloss.NewStyle().
	Foreground(ColorBorder).
	Background(ColorSurfaceBg)

func renderCardDivider(width int) string {
	return cardDividerStyle.Render(strings.Repeat("─", width))
}

// renderCardLine pads content to width so the card background is even.
func renderCardLine(content string, width int) string {
	pad := ""
	if w := lipgloss.Width(content); width > w {
		pad = strings.Repeat(" ", width-w)
	}
	return lipgloss.NewStyle().Background(ColorSurfaceBg).Render(content + pad)
}

func truncate(s string, maxLen int) string {
	if maxLen <= 3 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func (m Model) renderCard(row hostRow, width int, selected bool) string {
	style := CardStyle.Width(width)
	if selected {
		style = CardSelectedStyle.Width(width)
	}
	inner := width - 4

	lines := []string{
		renderCardLine(m.renderHostLine(row, inner), inner),
		renderCardDivider(inner),
	}

	switch {
	case !row.loaded && row.state == poller.Idle && row.lastErr != nil:
		lines = append(lines,
			renderCardLine(ErrorStyle.Render("Unreachable"), inner),
			renderCardLine(LabelStyle.Render(truncate(rwerrors.Brief(row.lastErr), inner)), inner),
		)
	case !row.loaded && row.state == poller.Idle:
		lines = append(lines, renderCardLine(MutedStyle.Render("not connected"), inner))
	case !row.loaded:
		lines = append(lines, renderCardLine(m.spinner.View()+LabelStyle.Render(" pending"), inner))
	default:
		lines = append(lines, m.renderMetrics(row, inner)...)
		if row.state == poller.Idle && row.lastErr != nil {
			lines = append(lines, renderCardLine(ErrorStyle.Render(truncate(rwerrors.Brief(row.lastErr), inner)), inner))
		}
	}

	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) renderHostLine(row hostRow, width int) string {
	var glyph, state string
	switch row.state {
	case poller.Active:
		glyph, state = StatusActiveStyle.Render(StatusActive), "active"
	case poller.Connecting:
		glyph, state = StatusConnectingStyle.Render(StatusConnecting), "connecting"
	default:
		glyph, state = StatusIdleStyle.Render(StatusIdle), "idle"
	}
	if !row.loaded && row.state == poller.Active {
		state = "pending"
	}

	name := HostNameStyle.Render(truncate(row.host.Label(), width-14))
	left := glyph + " " + name
	right := MutedStyle.Render(state)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderMetrics(row hostRow, width int) []string {
	e := row.entry
	var lines []string

	cpu := e.CPUUsage.Or(metrics.Epsilon)
	lines = append(lines, renderCardLine(m.gaugeLine("CPU", cpu, width), width))
	if len(row.cpu) > 0 {
		graph := Sparkline(row.cpu, width-cardLabelWidth, cardGraphHeight)
		for _, g := range strings.Split(graph, "\n") {
			lines = append(lines, renderCardLine(strings.Repeat(" ", cardLabelWidth)+g, width))
		}
	}

	load := e.Load.Or(metrics.DefaultLoad)
	if load[0] > metrics.Epsilon {
		// 1-minute load on the gauge scale, so 1.0 fills the bar.
		lines = append(lines, renderCardLine(m.gaugeLine("LOAD", metrics.GaugeLoad(load)[0], width), width))
	}
	info :=fmt.Sprintf("load %.2f %.2f %.2f", load[0], load[1], load[2])
	if t, ok := e.Tasks.Get(); ok && t.Total > 0 {
		info += fmt.Sprintf("  tasks %d", t.Total)
	}
	lines = append(lines, renderCardLine(MutedStyle.Render(padLabel("")+info), width))
	lines = append(lines, renderCardDivider(width))

	mem := scaledPercent(e.MemoryUsed.Or(metrics.Epsilon))
	lines = append(lines, renderCardLine(m.gaugeLine("MEM", mem, width), width))
	if snap, ok := e.Memory.Get(); ok && snap.Total > 0 {
		lines = append(lines, renderCardLine(MutedStyle.Render(padLabel("")+
			formatMiB(snap.Used)+" / "+formatMiB(snap.Total)), width))
	}
	if snap, ok := e.Swap.Get(); ok && snap.Total > 0 {
		swap := scaledPercent(e.SwapUsed.Or(metrics.Epsilon))
		lines = append(lines, renderCardLine(m.gaugeLine("SWAP", swap, width), width))
	}
	lines = append(lines, renderCardDivider(width))

	lines = append(lines, renderCardLine(padLabel("TEMP")+ValueStyle.Render(m.temperature(row)), width))
	if row.hasRates {
		r := row.rates
		lines = append(lines,
			renderCardLine(padLabel("NET")+ValueStyle.Render("↓ "+formatRate(r.DownMBps)+"  ↑ "+formatRate(r.UpMBps)), width),
			renderCardLine(padLabel("DISK")+ValueStyle.Render("r "+formatRate(r.ReadMBps)+"  w "+formatRate(r.WriteMBps)), width),
		)
	}

	if mounts, ok := e.StorageDevices.Get(); ok && len(mounts) > 0 {
		lines = append(lines, renderCardDivider(width))
		for i, mnt := range mounts {
			if i == cardMaxMounts {
				break
			}
			label := truncate(mnt.MountedOn, cardLabelWidth-1)
			lines = append(lines, renderCardLine(m.gaugeLine(label, float64(mnt.PercentUsed), width), width))
		}
	}
	return lines
}

// gaugeLine renders "LABEL [bar] 42.0%" with the bar filling what is left.
func (m Model) gaugeLine(label string, percent float64, width int) string {
	if percent == metrics.Epsilon {
		return padLabel(label) + MutedStyle.Render("--")
	}
	value := lipgloss.NewStyle().Foreground(MetricColor(percent)).Render(fmt.Sprintf("%5.1f%%", percent))

	g := m.gauge
	g.Width = width - cardLabelWidth - 8
	if g.Width < 4 {
		g.Width = 4
	}
	return padLabel(label) + g.ViewAs(clampPercent(percent)/100) + " " + value
}

func (m Model) temperature(row hostRow) string {
	if m.celsius {
		c, ok := row.entry.Celsius.Get()
		if !ok || c == 0 {
			return "--"
		}
		return fmt.Sprintf("%d°C", c)
	}
	f, ok := row.entry.Fahrenheit.Get()
	if !ok || f == 0 {
		return "--"
	}
	return fmt.Sprintf("%d°F", f)
}

// scaledPercent converts a PercentScale value to 0-100, keeping the
// Epsilon sentinel intact.
func scaledPercent(v float64) float64 {
	if v == metrics.Epsilon {
		return v
	}
	return v / (metrics.PercentScale / 100)
}

func padLabel(label string) string {
	return LabelStyle.Render(fmt.Sprintf("%-*s", cardLabelWidth, label))
}
