package logger

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// Console icons
const (
	IconSuccess = "✅"
	IconWarning = "⚠️"
	IconRocket  = "🚀"
	IconRefresh = "🔄"
	IconTarget  = "🎯"
	IconDot     = "•"
)

// Success logs a success message with a green checkmark
func Success(args ...interface{}) {
	defaultLogger.Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Progress logs a progress message with a refresh icon
func Progress(args ...interface{}) {
	defaultLogger.Info(IconRefresh + " " + fmt.Sprint(args...))
}

// Progressf logs a formatted progress message
func Progressf(format string, args ...interface{}) {
	Progress(fmt.Sprintf(format, args...))
}

func rule(ch string, width int, color, title string) {
	w, colored := console()
	line := strings.Repeat(ch, width)
	if colored {
		_, _ = fmt.Fprintf(w, "%s%s\n%s\n%s%s\n", color, line, title, line, colorReset)
		return
	}
	_, _ = fmt.Fprintf(w, "%s\n%s\n%s\n", line, title, line)
}

// LogSection prints a section banner
func LogSection(title string) { rule("=", 50, colorCyan+colorBold, title) }

// LogSubSection prints a subsection banner
func LogSubSection(title string) { rule("-", 40, colorGray, title) }

// LogList logs a title followed by bulleted items
func LogList(title string, items []string) {
	Info(title)
	w, _ := console()
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  %s %s\n", IconDot, item)
	}
}

// LogKeyValue prints one key-value pair
func LogKeyValue(key string, value interface{}) {
	w, colored := console()
	if colored {
		_, _ = fmt.Fprintf(w, "%s%s:%s %v\n", colorCyan, key, colorReset, value)
		return
	}
	_, _ = fmt.Fprintf(w, "%s: %v\n", key, value)
}

// LogKeyValues prints pairs sorted by key
func LogKeyValues(pairs map[string]interface{}) {
	for _, k := range slices.Sorted(maps.Keys(pairs)) {
		LogKeyValue(k, pairs[k])
	}
}

// Table is a column-aligned console table
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow adds a row to the table. Cells beyond the header count are
// dropped.
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Print writes the table to the console
func (t *Table) Print() {
	w, _ := console()
	t.Render(w)
}

// Render writes the table to w
func (t *Table) Render(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], len(cell))
			}
		}
	}

	line := func(cells []string) {
		var sb strings.Builder
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			fmt.Fprintf(&sb, "%-*s  ", widths[i], cell)
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}

	line(t.headers)
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}
	line(sep)
	for _, row := range t.rows {
		line(row)
	}
}
