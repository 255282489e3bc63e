package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const defaultCardWidth = 44

func (m Model) renderDashboard() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderCards())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render("rackwatch")

	stats := fmt.Sprintf(" | %d hosts | %d active | updated %s",
		len(m.rows), m.ActiveCount(), sinceText(m.lastUpdate, time.Now()))
	return HeaderStyle.Render(title + LabelStyle.Render(stats))
}

func (m Model) renderCards() string {
	if len(m.rows) == 0 {
		return LabelStyle.Render("No hosts configured. Add one with: rackwatch host add")
	}

	width := m.cardWidth()
	cards := make([]string, len(m.rows))
	for i, row := range m.rows {
		cards[i] = m.renderCard(row, width, i == m.selected)
	}

	perRow := 1
	if m.width > 0 {
		perRow = m.width / (width + 3)
		if perRow < 1 {
			perRow = 1
		}
	}

	var lines []string
	for i := 0; i < len(cards); i += perRow {
		end := i + perRow
		if end > len(cards) {
			end = len(cards)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) cardWidth() int {
	if m.width == 0 || m.width >= defaultCardWidth+4 {
		return defaultCardWidth
	}
	return m.width - 4
}

func (m Model) renderFooter() string {
	hints := make([]string, 0, len(keys.footerKeys())+1)
	for _, k := range keys.footerKeys() {
		h := k.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	footer := FooterStyle.Render(strings.Join(hints, " | "))

	switch {
	case m.busy:
		footer += "  " + m.spinner.View()
	case m.notice != "" && m.noticeErr:
		footer += "  " + ErrorStyle.Render(m.notice)
	case m.notice != "":
		footer += "  " + MutedStyle.Render(m.notice)
	}
	return footer
}

func sinceText(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	secs := int(now.Sub(t).Seconds())
	switch {
	case secs <= 0:
		return "just now"
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	default:
		return fmt.Sprintf("%dm ago", secs/60)
	}
}

// formatMiB formats a MiB quantity with a binary unit.
func formatMiB(mib float64) string {
	if mib >= 1024 {
		return fmt.Sprintf("%.1f GiB", mib/1024)
	}
	return fmt.Sprintf("%.0f MiB", mib)
}

// formatRate formats a MB/s figure.
func formatRate(mbps float64) string {
	switch {
	case mbps >= 1000:
		return fmt.Sprintf("%.1f GB/s", mbps/1000)
	case mbps >= 1:
		return fmt.Sprintf("%.1f MB/s", mbps)
	default:
		return fmt.Sprintf("%.0f KB/s", mbps*1000)
	}
}
