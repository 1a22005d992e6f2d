package htmlprocessor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// Content selection strategies reported in Content.Strategy
const (
	StrategySelector    = "selector"
	StrategyReadability = "readability"
	StrategyBody        = "body"
)

// DefaultMinContentLength is the stripped text length a container must exceed to be chosen
const DefaultMinContentLength = 500

// boilerplateSelector matches elements that are never part of the article body
const boilerplateSelector = `nav, footer, aside, .sidebar, .comments, .footer, .nav, .menu, .social, .widget, ` +
	`script, style, noscript, [class*="cookie"], [class*="popup"], [id*="popup"], [class*="banner"], ` +
	`[id*="banner"], .ad, .ads, [class*="advertisement"], [class*="-ad-"]`

// mediaSelector is removed from the chosen body; documents are text only
const mediaSelector = `img, picture, svg, video, audio, iframe, source, canvas`

var contentSelectors = []string{
	"article", "main", ".content", ".post", ".article", ".entry",
	".blog-post", ".blog-content", ".main-content", ".post-content",
	".entry-content", "#content", ".page-content", ".article-content",
}

// CleanOptions tunes content selection
type CleanOptions struct {
	MinContentLength int
	Readability      bool
}

// Content is the cleaned article body of a page
type Content struct {
	Title      string
	HTML       string
	Strategy   string
	Selector   string // matched content selector when Strategy is StrategySelector
	TextLength int
}

// CleanContent strips boilerplate and picks the main content container: the first
// content selector whose text exceeds MinContentLength, else the readability
// extraction if enabled and long enough, else <body>. The Document itself is not modified.
func (d *Document) CleanContent(opts CleanOptions) (*Content, error) {
	if opts.MinContentLength <= 0 {
		opts.MinContentLength = DefaultMinContentLength
	}

	work, err := d.fresh()
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	work.Find(boilerplateSelector).Remove()

	content := &Content{Title: d.ArticleTitle()}

	for _, selector := range contentSelectors {
		sel := work.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if length := strippedTextLength(sel.Nodes); length > opts.MinContentLength {
			content.Strategy = StrategySelector
			content.Selector = selector
			content.TextLength = length
			return content, content.setHTML(sel)
		}
	}

	if opts.Readability {
		if article, err := readability.FromReader(bytes.NewReader(d.raw), d.pageURL); err == nil {
			if length := len([]rune(strings.Join(strings.Fields(article.TextContent), ""))); length > opts.MinContentLength {
				articleDoc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
				if err == nil {
					content.Strategy = StrategyReadability
					content.TextLength = length
					return content, content.setHTML(articleDoc.Find("body").First())
				}
			}
		}
	}

	body := work.Find("body").First()
	content.Strategy = StrategyBody
	content.TextLength = strippedTextLength(body.Nodes)
	return content, content.setHTML(body)
}

func (c *Content) setHTML(sel *goquery.Selection) error {
	sel.Find(mediaSelector).Remove()

	if sel.Length() == 0 {
		c.HTML = ""
		return nil
	}

	out, err := goquery.OuterHtml(sel)
	if err != nil {
		return fmt.Errorf("failed to render content: %w", err)
	}
	c.HTML = out
	return nil
}
