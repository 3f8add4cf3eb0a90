package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tanq16/multiget/internal/engine"
	"github.com/tanq16/multiget/internal/utils"
	"golang.org/x/term"
)

// FormatSpeed renders a byte rate for the given elapsed seconds.
func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed <= 0 || bytes <= 0 {
		return "0 B/s"
	}
	return utils.FormatBytes(uint64(float64(bytes)/elapsed)) + "/s"
}

func PrintProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		total = 1
	}
	current = max(0, min(current, total))
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"] + strings.Repeat(StyleSymbols["hline"], filled) +
		strings.Repeat(" ", width-filled) + StyleSymbols["bullet"]
	return fmt.Sprintf("%s %5.1f%%", bar, percent*100)
}

func terminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return 80, 24
	}
	return width, height
}

// RenderPlan lays out a prepared download as a header block and a segment table.
func RenderPlan(p engine.Prepared) string {
	var sb strings.Builder
	size := "unknown"
	if p.Plan.SizeKnown {
		size = fmt.Sprintf("%s (%d bytes)", utils.FormatBytes(uint64(p.Plan.TotalRemoteSize)), p.Plan.TotalRemoteSize)
	}
	rows := [][2]string{
		{"Source", p.Config.Source},
		{"Remote size", size},
		{"Requested limit", fmt.Sprintf("%s (%d bytes)", utils.FormatBytes(uint64(p.Plan.RequestedLimit)), p.Plan.RequestedLimit)},
		{"Effective cutoff", fmt.Sprintf("%d bytes", p.Plan.EffectiveCutoff)},
		{"Chunks", fmt.Sprintf("%d x %d bytes", p.Plan.ChunkCount, p.Plan.ChunkSize)},
	}
	if p.Probe.FileName != "" {
		rows = append(rows, [2]string{"Suggested name", p.Probe.FileName})
	}
	sb.WriteString(headerStyle.Render("Download plan") + "\n")
	for _, row := range rows {
		sb.WriteString("  " + cellStyle.Width(18).Render(row[0]) + infoStyle.Render(row[1]) + "\n")
	}
	sb.WriteString("\n" + headerStyle.Render("Segments") + "\n")
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		cellStyle.Width(7).Render("#"),
		cellStyle.Width(14).Render("start"),
		cellStyle.Width(14).Render("end"),
		cellStyle.Width(12).Render("length"),
		"range",
	)
	sb.WriteString("  " + debugStyle.Render(header) + "\n")
	for _, seg := range p.Segments {
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			cellStyle.Width(7).Render(fmt.Sprint(seg.Index)),
			cellStyle.Width(14).Render(fmt.Sprint(seg.Start)),
			cellStyle.Width(14).Render(fmt.Sprint(seg.End)),
			cellStyle.Width(12).Render(fmt.Sprint(seg.Len())),
			seg.RangeHeader(),
		)
		sb.WriteString("  " + line + "\n")
	}
	return sb.String()
}
