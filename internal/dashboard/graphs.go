package dashboard

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Braille cells are a 2x4 dot matrix. Unicode braille starts at U+2800 and
// each dot is one bit:
//
//	Row 0:   ⠁      ⠈     (bits 0, 3)
//	Row 1:   ⠂      ⠐     (bits 1, 4)
//	Row 2:   ⠄      ⠠     (bits 2, 5)
//	Row 3:   ⡀      ⢀     (bits 6, 7)
const brailleBase = '⠀'

// brailleDots maps [row][col] to the bit for that dot.
var brailleDots = [4][2]uint8{
	{0, 3},
	{1, 4},
	{2, 5},
	{6, 7},
}

// Sparkline renders percentage data (0-100) as a braille graph of width
// cells and height rows. Each cell holds two samples. Short series are
// right-aligned so the newest sample is always at the right edge.
func Sparkline(data []float64, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	points := width * 2
	if len(data) > points {
		data = downsample(data, points)
	}
	offset := points - len(data)
	totalDots := height * 4

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(string(brailleBase), width))
	}
	colMax := make([]float64, width)

	for i, v := range data {
		pos := i + offset
		col, sub := pos/2, pos%2
		if v > colMax[col] {
			colMax[col] = v
		}
		dots := clampInt(int(clampPercent(v)/100*float64(totalDots)+0.5), totalDots)
		for dot := 0; dot < dots; dot++ {
			row := height - 1 - dot/4
			grid[row][col] |= rune(1 << brailleDots[3-dot%4][sub])
		}
	}

	lines := make([]string, height)
	for r, row := range grid {
		var b strings.Builder
		for c, ch := range row {
			style := lipgloss.NewStyle().Foreground(MetricColor(colMax[c])).Background(ColorSurfaceBg)
			b.WriteString(style.Render(string(ch)))
		}
		lines[r] = b.String()
	}
	return strings.Join(lines, "\n")
}

// downsample compresses data to size points, keeping the max of each
// bucket so spikes survive.
func downsample(data []float64, size int) []float64 {
	out := make([]float64, size)
	bucket := float64(len(data)) / float64(size)
	for i := range out {
		start := int(float64(i) * bucket)
		end := int(float64(i+1) * bucket)
		if end > len(data) {
			end = len(data)
		}
		if start >= end {
			start = end - 1
		}
		m := data[start]
		for _, v := range data[start+1 : end] {
			if v > m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampInt(v, maxVal int) int {
	if v < 0 {
		return 0
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
