package commands

import (
	"fmt"
	"io"
	"strings"
)

// printTable renders rows as fixed columns under headers, with a dashed
// separator row. The last column is not padded.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i := range headers {
			if i < len(r) && len(r[i]) > widths[i] {
				widths[i] = len(r[i])
			}
		}
	}

	fmtRow := func(cells []string) {
		var b strings.Builder
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(headers)-1 {
				b.WriteString(cell)
				break
			}
			// Padding between columns.
			fmt.Fprintf(&b, "%-*s", widths[i]+2, cell)
		}
		fmt.Fprintln(w, b.String())
	}

	fmtRow(headers)
	dashes := make([]string, len(headers))
	for i := range headers {
		dashes[i] = strings.Repeat("-", widths[i])
	}
	fmtRow(dashes)
	for _, r := range rows {
		fmtRow(r)
	}
}
