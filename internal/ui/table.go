package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// NullText is how SQL NULL cells are shown.
const NullText = "NULL"

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableNullStyle   = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true).Padding(0, 1)
)

// RenderTable renders rows under headers as a bordered table. Cells equal to
// NullText are rendered muted so they stand out from the string "NULL".
func RenderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(MutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if row >= 0 && row < len(rows) && col < len(rows[row]) && rows[row][col] == NullText {
				return tableNullStyle
			}
			return tableCellStyle
		})
	return t.String()
}

// RenderKeyValues renders aligned "key  value" lines, used for single-record views.
func RenderKeyValues(pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(MutedStyle.Render(p[0] + strings.Repeat(" ", width-len(p[0]))))
		b.WriteString("  ")
		b.WriteString(p[1])
		b.WriteString("\n")
	}
	return b.String()
}
