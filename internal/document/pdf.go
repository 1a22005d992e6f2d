package document

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// Content is the input of RenderPDF
type Content struct {
	Title       string
	SourceURL   string
	Description string // optional meta description shown under the source line
	Blocks      []Block
	CreatedAt   time.Time
}

type style struct {
	size       float64
	leading    float64
	bold       bool
	italic     bool
	darkBlue   bool
	gray       bool
	spaceAfter float64
}

// Page layout in points
const (
	pageMargin = 72
	spacer     = 18 // 0.25in
	fontFamily = "Helvetica"
)

var (
	titleStyle       = style{size: 16, leading: 20, bold: true, darkBlue: true, spaceAfter: 12}
	sourceStyle      = style{size: 9, leading: 12, darkBlue: true, spaceAfter: 12}
	descriptionStyle = style{size: 9, leading: 12, italic: true, gray: true, spaceAfter: 12}
	heading1Style    = style{size: 14, leading: 18, bold: true, darkBlue: true, spaceAfter: 10}
	heading2Style    = style{size: 12, leading: 16, bold: true, darkBlue: true, spaceAfter: 8}
	bodyStyle        = style{size: 11, leading: 14, spaceAfter: 6}
)

// RenderPDF lays out the content on US Letter pages and writes the PDF to w.
// Text is transcoded to the core font code page (cp1252); runes outside it
// are written as spaces.
func RenderPDF(w io.Writer, c Content) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(c.Title, true)
	pdf.SetCreator("blog-keywords", false)
	if !c.CreatedAt.IsZero() {
		pdf.SetCreationDate(c.CreatedAt)
	}
	pdf.AddPage()

	title := c.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled Article"
	}
	writeParagraph(pdf, titleStyle, title)
	pdf.Ln(spacer)

	if c.SourceURL != "" {
		writeParagraph(pdf, sourceStyle, "Source: "+c.SourceURL)
		if c.Description != "" {
			writeParagraph(pdf, descriptionStyle, c.Description)
		}
		pdf.Ln(spacer)
	}

	for _, b := range c.Blocks {
		switch b.Kind {
		case BlockHeading1:
			writeParagraph(pdf, heading1Style, b.Text)
		case BlockHeading2:
			writeParagraph(pdf, heading2Style, b.Text)
		default:
			writeParagraph(pdf, bodyStyle, b.Text)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to lay out PDF: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

func writeParagraph(pdf *fpdf.Fpdf, s style, text string) {
	fontStyle := ""
	if s.bold {
		fontStyle += "B"
	}
	if s.italic {
		fontStyle += "I"
	}
	pdf.SetFont(fontFamily, fontStyle, s.size)

	switch {
	case s.darkBlue:
		pdf.SetTextColor(0, 0, 139)
	case s.gray:
		pdf.SetTextColor(96, 96, 96)
	default:
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.MultiCell(0, s.leading, toCodePage(text), "", "L", false)
	pdf.Ln(s.spaceAfter)
}

// toCodePage re-encodes UTF-8 text as Windows-1252 bytes for the core fonts
func toCodePage(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r < 0x80 {
			sb.WriteByte(byte(r))
			continue
		}
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			sb.WriteByte(b)
			continue
		}
		sb.WriteByte(' ')
	}
	return sb.String()
}
