package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Alignment represents column alignment options
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// BorderStyle defines table border characters
type BorderStyle struct {
	Corner     string
	Horizontal string
	Vertical   string
}

var (
	// ASCIIBorder draws +---+ boxes
	ASCIIBorder = BorderStyle{Corner: "+", Horizontal: "-", Vertical: "|"}
	// NoBorder renders space-separated columns
	NoBorder = BorderStyle{}
)

// Table is a minimal text table. Cells wider than the terminal allows are truncated.
type Table struct {
	headers    []string
	rows       [][]string
	colors     map[int]func(string) Color
	alignments map[int]Alignment
	border     BorderStyle
	padding    int
	maxWidth   int
	cs         *ColorSystem
}

// NewTable creates a table that colors headers and cells through cs
func NewTable(cs *ColorSystem) *Table {
	if cs == nil {
		cs = NewPlainColorSystem()
	}
	return &Table{
		colors:     make(map[int]func(string) Color),
		alignments: make(map[int]Alignment),
		border:     ASCIIBorder,
		padding:    1,
		maxWidth:   terminalWidth(),
		cs:         cs,
	}
}

// SetHeaders sets the header row
func (t *Table) SetHeaders(headers ...string) {
	t.headers = headers
}

// AddRow appends a row
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// SetBorder changes the border style
func (t *Table) SetBorder(b BorderStyle) {
	t.border = b
}

// SetMaxWidth overrides the detected terminal width. Zero disables truncation.
func (t *Table) SetMaxWidth(width int) {
	t.maxWidth = width
}

// SetAlignment sets the alignment of a column
func (t *Table) SetAlignment(column int, a Alignment) {
	t.alignments[column] = a
}

// SetColumnColor picks a color per cell value for a column
func (t *Table) SetColumnColor(column int, pick func(cell string) Color) {
	t.colors[column] = pick
}

// Render returns the formatted table
func (t *Table) Render() string {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return ""
	}
	widths := t.fit(t.columnWidths())

	var b strings.Builder
	rule := t.rule(widths)
	if rule != "" {
		b.WriteString(rule + "\n")
	}
	if len(t.headers) > 0 {
		b.WriteString(t.renderRow(t.headers, widths, true) + "\n")
		if rule != "" {
			b.WriteString(rule + "\n")
		}
	}
	for _, row := range t.rows {
		b.WriteString(t.renderRow(row, widths, false) + "\n")
	}
	if rule != "" && len(t.rows) > 0 {
		b.WriteString(rule + "\n")
	}
	return b.String()
}

// RenderTo writes the table to w
func (t *Table) RenderTo(w io.Writer) {
	fmt.Fprint(w, t.Render())
}

func (t *Table) columnCount() int {
	n := len(t.headers)
	for _, row := range t.rows {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}

func (t *Table) columnWidths() []int {
	widths := make([]int, t.columnCount())
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := utf8.RuneCountInString(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

// fit shrinks the widest column until the table fits maxWidth
func (t *Table) fit(widths []int) []int {
	if t.maxWidth <= 0 {
		return widths
	}
	for t.totalWidth(widths) > t.maxWidth {
		widest := 0
		for i := range widths {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= 4 {
			break
		}
		widths[widest]--
	}
	return widths
}

func (t *Table) totalWidth(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w + t.padding*2
	}
	if t.border.Vertical != "" {
		total += len(widths) + 1
	}
	return total
}

func (t *Table) rule(widths []int) string {
	if t.border.Horizontal == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(t.border.Corner)
	for _, w := range widths {
		b.WriteString(strings.Repeat(t.border.Horizontal, w+t.padding*2))
		b.WriteString(t.border.Corner)
	}
	return b.String()
}

func (t *Table) renderRow(row []string, widths []int, header bool) string {
	var b strings.Builder
	b.WriteString(t.border.Vertical)
	for i, width := range widths {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		b.WriteString(t.formatCell(i, cell, width, header))
		b.WriteString(t.border.Vertical)
	}
	return strings.TrimRight(b.String(), " ")
}

func (t *Table) formatCell(column int, content string, width int, header bool) string {
	if runes := []rune(content); len(runes) > width {
		if width > 3 {
			content = string(runes[:width-3]) + "..."
		} else {
			content = string(runes[:width])
		}
	}

	// pad before coloring so escape codes do not count toward the width
	pad := strings.Repeat(" ", width-utf8.RuneCountInString(content))
	colored := content
	switch {
	case header:
		colored = t.cs.Colorize(content, t.cs.Theme().Header)
	case t.colors[column] != nil:
		colored = t.cs.Colorize(content, t.colors[column](content))
	}

	edge := strings.Repeat(" ", t.padding)
	if t.alignments[column] == AlignRight {
		return edge + pad + colored + edge
	}
	return edge + colored + pad + edge
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}
