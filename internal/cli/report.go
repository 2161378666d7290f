package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fossensics/fossensics/pkg/stats"
)

// printReport prints the global counts followed by the per-package
// program histogram.
func printReport(w io.Writer, st *stats.Statistics) {
	printSection(w, "Global Statistics")
	printKeyValue(w, "Number of packages:", StyleNumber.Render(strconv.Itoa(st.Packages)))
	printKeyValue(w, "Number of programs:", StyleNumber.Render(strconv.Itoa(st.Programs)))
	printKeyValue(w, "Number of orphans:", countStyle(st.Orphans).Render(strconv.Itoa(st.Orphans)))
	printKeyValue(w, "Number of undocumented:", countStyle(st.Undocumented).Render(strconv.Itoa(st.Undocumented)))
	fmt.Fprintln(w)

	printSection(w, "Packages Statistics")
	if len(st.Histogram) == 0 {
		fmt.Fprintln(w, StyleDim.Render("No program could be attributed to a package."))
		return
	}
	fmt.Fprintln(w, "Here is the number of programs provided by each package:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, histogramTable(st.Histogram).Render())
}

// countStyle highlights non-zero problem counts.
func countStyle(n int) lipgloss.Style {
	if n > 0 {
		return StyleWarning
	}
	return StyleSuccess
}

func histogramTable(hist []stats.PackageCount) *table.Table {
	rows := make([][]string, len(hist))
	for i, pc := range hist {
		rows[i] = []string{pc.Package, strconv.Itoa(pc.Programs)}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Package", "Programs").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle.Padding(0, 1)
			case col == 1:
				return StyleNumber.Padding(0, 1).Align(lipgloss.Right)
			default:
				return StyleValue.Padding(0, 1)
			}
		})
}

// writeJSON writes the statistics as indented JSON.
func writeJSON(w io.Writer, st *stats.Statistics) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}
