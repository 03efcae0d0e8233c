// Package sheets decodes spreadsheet CSV exports into planner records.
package sheets

import (
	"strings"

	"mvpplanner/pkg/domain"
)

// DecodeCSV turns a CSV export into records keyed by the header row.
//
// Lines are split on '\n' with a trailing '\r' removed. A '"' toggles quoting
// and '""' inside a quoted cell is a literal quote. Cells are trimmed. Blank
// lines, rows whose cell count differs from the header, and rows with every
// cell empty are dropped. Quoted newlines are not supported.
func DecodeCSV(text string) []domain.Record {
	text = strings.TrimSpace(text)
	if text == "" {
		return []domain.Record{}
	}
	lines := strings.Split(text, "\n")
	header := splitLine(strings.TrimSuffix(lines[0], "\r"))
	out := make([]domain.Record, 0, len(lines)-1)
	for _, line := range lines[1:] {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := splitLine(line)
		if len(cells) != len(header) {
			continue
		}
		row := make(domain.Record, len(header))
		empty := true
		for i, h := range header {
			row[h] = cells[i]
			if cells[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		out = append(out, row)
	}
	return out
}

func splitLine(line string) []string {
	var (
		cells    []string
		current  strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				current.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			cells = append(cells, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	return append(cells, strings.TrimSpace(current.String()))
}
