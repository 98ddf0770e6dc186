package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	DefaultWidth = 80
	minWidth     = 20
	maxCellWidth = 40
)

// WriteTerminal renders the document as plain text for a terminal of the given width
func (d *Document) WriteTerminal(w io.Writer, width int) error {
	if width <= 0 {
		width = DefaultWidth
	}
	width = max(width, minWidth)

	var b strings.Builder
	writeHeading(&b, 1, d.Title)

	if d.Message != "" {
		writeWrapped(&b, d.Message, width, "", "")
		b.WriteString("\n")
	}

	if len(d.Scores) > 0 {
		writeHeading(&b, 2, "Scores")
		rows := [][]string{{"Category", "Score", "Rating"}}
		for _, s := range d.Scores {
			rows = append(rows, []string{s.Category, s.Display, string(s.Band)})
		}
		writeTable(&b, rows)
		b.WriteString("\n")
	}

	for _, block := range d.Blocks {
		writeBlock(&b, block, width)
	}

	if d.Extra != "" {
		writeHeading(&b, 2, "Additional Information")
		writeIndented(&b, d.Extra, "  ")
		b.WriteString("\n")
	}

	if len(d.Transcript) > 0 {
		writeHeading(&b, 2, "Conversation")
		for _, e := range d.Transcript {
			lead := fmt.Sprintf("%s: ", e.Role)
			writeWrapped(&b, e.Message, width, lead, strings.Repeat(" ", runewidth.StringWidth(lead)))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, strings.TrimRight(b.String(), "\n")+"\n")
	return err
}

func writeBlock(b *strings.Builder, block Block, width int) {
	switch block.Kind {
	case BlockHeading:
		writeHeading(b, block.Level, block.Text)

	case BlockParagraph:
		writeWrapped(b, block.Text, width, "", "")
		b.WriteString("\n")

	case BlockQuote:
		writeWrapped(b, block.Text, width, "> ", "> ")
		b.WriteString("\n")

	case BlockList:
		n := 0
		for _, item := range block.Items {
			trimmed := strings.TrimLeft(item, " ")
			indent := item[:len(item)-len(trimmed)]

			marker := "- "
			if block.Ordered && indent == "" {
				n++
				marker = fmt.Sprintf("%d. ", n)
			}
			writeWrapped(b, trimmed, width, "  "+indent+marker, "  "+indent+strings.Repeat(" ", len(marker)))
		}
		b.WriteString("\n")

	case BlockTable:
		writeTable(b, block.Rows)
		b.WriteString("\n")

	case BlockCode:
		writeIndented(b, block.Text, "    ")
		b.WriteString("\n")
	}
}

// writeHeading underlines top-level headings and prefixes the rest
func writeHeading(b *strings.Builder, level int, title string) {
	switch level {
	case 1:
		fmt.Fprintf(b, "%s\n%s\n\n", title, strings.Repeat("=", runewidth.StringWidth(title)))
	case 2:
		fmt.Fprintf(b, "%s\n%s\n\n", title, strings.Repeat("-", runewidth.StringWidth(title)))
	default:
		fmt.Fprintf(b, "%s %s\n\n", strings.Repeat("#", level), title)
	}
}

// writeTable aligns cells by display width. The first row is the header
func writeTable(b *strings.Builder, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			cw := min(runewidth.StringWidth(cell), maxCellWidth)
			if i >= len(widths) {
				widths = append(widths, cw)
			} else if cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = padRight(runewidth.Truncate(cell, widths[i], "…"), widths[i])
		}
		b.WriteString(strings.TrimRight("  "+strings.Join(parts, "  "), " "))
		b.WriteString("\n")
	}

	line(rows[0])
	rules := make([]string, len(widths))
	for i, w := range widths {
		rules[i] = strings.Repeat("-", w)
	}
	line(rules)
	for _, row := range rows[1:] {
		line(row)
	}
}

// padRight pads s with spaces so its terminal display width reaches width
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func writeIndented(b *strings.Builder, s, indent string) {
	for _, line := range strings.Split(s, "\n") {
		b.WriteString(strings.TrimRight(indent+line, " "))
		b.WriteString("\n")
	}
}

// writeWrapped wraps s to width. The first line starts with lead, later lines with hang
func writeWrapped(b *strings.Builder, s string, width int, lead, hang string) {
	avail := width - max(runewidth.StringWidth(lead), runewidth.StringWidth(hang))

	prefix := lead
	for _, paragraph := range strings.Split(s, "\n") {
		for _, line := range wrap(paragraph, avail) {
			b.WriteString(strings.TrimRight(prefix+line, " "))
			b.WriteString("\n")
			prefix = hang
		}
	}
}

// wrap breaks s on spaces so each line fits in width display cells. Words wider than
// width get a line of their own
func wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current, currentWidth := "", 0
	for _, word := range words {
		ww := runewidth.StringWidth(word)
		switch {
		case currentWidth == 0:
			current, currentWidth = word, ww
		case currentWidth+1+ww <= width:
			current += " " + word
			currentWidth += 1 + ww
		default:
			lines = append(lines, current)
			current, currentWidth = word, ww
		}
	}
	return append(lines, current)
}
