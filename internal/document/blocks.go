package document

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// BlockKind is the layout style of a block
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading1
	BlockHeading2
)

func (k BlockKind) String() string {
	switch k {
	case BlockHeading1:
		return "h1"
	case BlockHeading2:
		return "h2"
	default:
		return "p"
	}
}

// Block is one laid-out unit of plain text
type Block struct {
	Kind BlockKind
	Text string
}

// ParseBlocks splits markdown into heading and paragraph blocks of plain text.
// Link targets, images and emphasis markers are dropped; headings below level 2
// become paragraphs; list items become one paragraph each.
func ParseBlocks(md string) []Block {
	if strings.TrimSpace(md) == "" {
		return nil
	}

	p := parser.NewWithExtensions(parser.CommonExtensions)
	root := markdown.Parse([]byte(md), p)

	var blocks []Block
	add := func(kind BlockKind, text string) {
		text = strings.Join(strings.Fields(text), " ")
		if text != "" {
			blocks = append(blocks, Block{Kind: kind, Text: text})
		}
	}

	var visit func(node ast.Node)
	visit = func(node ast.Node) {
		switch n := node.(type) {
		case *ast.Heading:
			switch n.Level {
			case 1:
				add(BlockHeading1, inlineText(n))
			case 2:
				add(BlockHeading2, inlineText(n))
			default:
				add(BlockParagraph, inlineText(n))
			}
		case *ast.Paragraph:
			add(BlockParagraph, inlineText(n))
		case *ast.ListItem:
			add(BlockParagraph, "- "+inlineText(n))
		case *ast.CodeBlock:
			add(BlockParagraph, string(n.Literal))
		case *ast.HorizontalRule, *ast.HTMLBlock:
		case *ast.List, *ast.BlockQuote, *ast.Document:
			for _, child := range node.GetChildren() {
				visit(child)
			}
		case *ast.Table:
			for _, row := range collectRows(n) {
				add(BlockParagraph, row)
			}
		default:
			add(BlockParagraph, inlineText(node))
		}
	}
	visit(root)

	return blocks
}

// inlineText flattens the text below node, keeping link text and dropping images and raw HTML
func inlineText(node ast.Node) string {
	var sb strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch v := n.(type) {
		case *ast.Image, *ast.HTMLSpan:
			return ast.SkipChildren
		case *ast.Text:
			sb.Write(v.Literal)
		case *ast.Code:
			sb.Write(v.Literal)
		case *ast.Softbreak, *ast.Hardbreak:
			sb.WriteByte(' ')
		case *ast.List:
			sb.WriteByte(' ')
		}
		return ast.GoToNext
	})
	return sb.String()
}

func collectRows(table *ast.Table) []string {
	var rows []string
	ast.WalkFunc(table, func(n ast.Node, entering bool) ast.WalkStatus {
		row, ok := n.(*ast.TableRow)
		if !ok || !entering {
			return ast.GoToNext
		}
		var cells []string
		for _, cell := range row.GetChildren() {
			if text := strings.TrimSpace(inlineText(cell)); text != "" {
				cells = append(cells, text)
			}
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
		return ast.SkipChildren
	})
	return rows
}
