// Package htmlprocessor holds the heuristics that turn a blog page into
// article links and a clean article body.
package htmlprocessor

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Document is a parsed HTML page together with the URL it was fetched from
type Document struct {
	raw     []byte
	doc     *goquery.Document
	pageURL *url.URL
	baseURL *url.URL
}

// Parse parses raw HTML fetched from pageURL. The body is decoded to UTF-8 using
// the charset of contentType, then a BOM or <meta charset>, then a UTF-8 check
// with windows-1252 as the last resort. A <base href> in the head, if present,
// becomes the base for resolving relative links.
func Parse(raw []byte, contentType string, pageURL *url.URL) (*Document, error) {
	if pageURL == nil {
		return nil, fmt.Errorf("page url is required")
	}

	raw, err := decode(raw, contentType)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	d := &Document{
		raw:     raw,
		doc:     doc,
		pageURL: pageURL,
		baseURL: pageURL,
	}

	if href, ok := doc.Find("head base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			d.baseURL = pageURL.ResolveReference(ref)
		}
	}

	return d, nil
}

func decode(raw []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode html: %w", err)
	}
	return decoded, nil
}

// URL returns the page URL
func (d *Document) URL() *url.URL {
	return d.pageURL
}

// Raw returns the UTF-8 HTML the document was parsed from
func (d *Document) Raw() []byte {
	return d.raw
}

func (d *Document) root() *html.Node {
	if len(d.doc.Nodes) == 0 {
		return nil
	}
	return d.doc.Nodes[0]
}

// fresh re-parses the original HTML so destructive cleaning never touches d
func (d *Document) fresh() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(d.raw))
}
