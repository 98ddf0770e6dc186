package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethanbaker/avatar-client/pkg/evaluation"
	"github.com/ethanbaker/avatar-client/pkg/transcript"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const Title = "Evaluation Report"

// BlockKind is the type of a top-level block in the evaluation text
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockList      BlockKind = "list"
	BlockTable     BlockKind = "table"
	BlockCode      BlockKind = "code"
	BlockQuote     BlockKind = "quote"
)

// Block is one structural piece of the evaluation text
type Block struct {
	Kind    BlockKind  `json:"kind"`
	Level   int        `json:"level,omitempty"`
	Ordered bool       `json:"ordered,omitempty"`
	Text    string     `json:"text,omitempty"`
	Items   []string   `json:"items,omitempty"`
	Rows    [][]string `json:"rows,omitempty"` // The first row is the header
}

// ScoreRow is a score prepared for display
type ScoreRow struct {
	Category string          `json:"category"`
	Display  string          `json:"display"`
	Band     evaluation.Band `json:"band"`
}

// Document is everything a report screen shows
type Document struct {
	Title      string                 `json:"title"`
	Kind       evaluation.OutcomeKind `json:"kind"`
	Message    string                 `json:"message,omitempty"`
	Scores     []ScoreRow             `json:"scores,omitempty"`
	Source     string                 `json:"source,omitempty"`
	Blocks     []Block                `json:"blocks,omitempty"`
	Extra      string                 `json:"extra,omitempty"`
	Transcript []transcript.Entry     `json:"transcript,omitempty"`
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Build lays out an evaluation outcome. The transcript is optional
func Build(outcome evaluation.Outcome, entries []transcript.Entry) *Document {
	doc := &Document{
		Title:      Title,
		Kind:       outcome.Kind,
		Transcript: entries,
	}

	if outcome.Kind != evaluation.OutcomeReport {
		doc.Message = outcome.Message
		return doc
	}

	result := outcome.Result
	if result.Empty() {
		doc.Message = result.Render()
		return doc
	}

	for _, s := range result.Scores {
		doc.Scores = append(doc.Scores, ScoreRow{Category: s.Category, Display: s.Display, Band: s.Band()})
	}
	doc.Source = result.Text
	doc.Blocks = Parse(result.Text)
	doc.Extra = result.ExtraJSON()

	return doc
}

// Parse splits markdown into top-level blocks. Inline formatting is dropped
func Parse(src string) []Block {
	if strings.TrimSpace(src) == "" {
		return nil
	}

	source := []byte(src)
	root := markdown.Parser().Parse(text.NewReader(source))

	var blocks []Block
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch v := n.(type) {
		case *ast.Heading:
			blocks = append(blocks, Block{Kind: BlockHeading, Level: v.Level, Text: inlineText(v, source)})

		case *ast.Paragraph, *ast.TextBlock:
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: inlineText(v, source)})

		case *ast.List:
			blocks = append(blocks, Block{Kind: BlockList, Ordered: v.IsOrdered(), Items: listItems(v, source, 0)})

		case *extast.Table:
			blocks = append(blocks, Block{Kind: BlockTable, Rows: tableRows(v, source)})

		case *ast.FencedCodeBlock, *ast.CodeBlock:
			blocks = append(blocks, Block{Kind: BlockCode, Text: codeText(v, source)})

		case *ast.Blockquote:
			blocks = append(blocks, Block{Kind: BlockQuote, Text: inlineText(v, source)})
		}
	}

	return blocks
}

// inlineText flattens the text under n
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			switch {
			case v.HardLineBreak():
				b.WriteByte('\n')
			case v.SoftLineBreak():
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.URL(source))
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			if b.Len() > 0 && node != n {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

// listItems flattens a list, indenting nested items two spaces per level
func listItems(list *ast.List, source []byte, depth int) []string {
	var items []string
	indent := strings.Repeat("  ", depth)

	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var parts []string
		var nested []string

		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if sub, ok := child.(*ast.List); ok {
				nested = append(nested, listItems(sub, source, depth+1)...)
				continue
			}
			parts = append(parts, inlineText(child, source))
		}

		items = append(items, indent+strings.Join(parts, " "))
		items = append(items, nested...)
	}

	return items
}

func tableRows(table *extast.Table, source []byte) [][]string {
	var rows [][]string

	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, source))
		}
		rows = append(rows, cells)
	}

	return rows
}

func codeText(n ast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Markdown renders the document back into a single markdown text
func (d *Document) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)

	if d.Message != "" {
		b.WriteString(d.Message)
		b.WriteString("\n")
	}

	if len(d.Scores) > 0 {
		b.WriteString("## Scores\n\n")
		b.WriteString("| Category | Score | Rating |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, s := range d.Scores {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(s.Category), escapeCell(s.Display), s.Band)
		}
		b.WriteString("\n")
	}

	if d.Source != "" {
		if len(d.Scores) > 0 {
			b.WriteString("## Details\n\n")
		}
		b.WriteString(strings.TrimSpace(d.Source))
		b.WriteString("\n\n")
	}

	if d.Extra != "" {
		b.WriteString("## Additional Information\n\n```json\n")
		b.WriteString(d.Extra)
		b.WriteString("\n```\n\n")
	}

	if len(d.Transcript) > 0 {
		b.WriteString("## Conversation\n\n")
		for _, e := range d.Transcript {
			fmt.Fprintf(&b, "- `%s` **%s**: %s\n", e.Timestamp, e.Role, e.Message)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// HTML renders the markdown form of the document. Raw HTML in the evaluation is not passed through
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(d.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
