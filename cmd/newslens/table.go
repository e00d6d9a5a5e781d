package main

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const maxCellWidth = 60

// renderTable writes rows as an aligned text table. Widths are display
// widths so CJK titles line up.
func renderTable(w io.Writer, header []string, rows [][]string) error {
	widths := make([]int, len(header))
	all := append([][]string{header}, rows...)
	for r := range all {
		for i := range header {
			if i >= len(all[r]) {
				continue
			}
			all[r][i] = runewidth.Truncate(all[r][i], maxCellWidth, "…")
			if cw := runewidth.StringWidth(all[r][i]); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		for i := range header {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(header)-1 {
				sb.WriteString(cell)
				continue
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		sb.WriteString("\n")
	}

	writeRow(all[0])
	sep := make([]string, len(header))
	for i, wd := range widths {
		sep[i] = strings.Repeat("-", wd)
	}
	writeRow(sep)
	for _, row := range all[1:] {
		writeRow(row)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
