package htmlprocessor

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/edgecomet/blogkeywords/internal/common/urlutil"
	"github.com/edgecomet/blogkeywords/pkg/types"
)

// ExtractPageSEO collects the on-page SEO signals of the document. The result is
// recorded in the run manifest and handed to the analyzer as page context.
func (d *Document) ExtractPageSEO() *types.PageSEO {
	root := d.root()
	head := findElement(root, "head")
	body := findElement(root, "body")

	seo := &types.PageSEO{
		Title:           truncateRunes(collapseWhitespace(getTextContent(findElement(head, "title"))), types.MaxSEOTitleLength),
		MetaDescription: truncateRunes(metaContent(head, "description"), types.MaxMetaDescriptionLength),
		MetaKeywords:    truncateRunes(metaContent(head, "keywords"), types.MaxMetaKeywordsLength),
		Language:        strings.TrimSpace(getAttr(findElement(root, "html"), "lang")),
		H1s:             extractHeadings(body, "h1"),
		H2s:             extractHeadings(body, "h2"),
		H3s:             extractHeadings(body, "h3"),
	}

	if canonical := canonicalHref(head); canonical != "" {
		seo.CanonicalURL = truncateRunes(resolveAgainst(d.pageURL, canonical), types.MaxCanonicalURLLength)
	}

	d.countLinks(body, seo)
	return seo
}

// metaContent returns the trimmed content of the first <meta name=...> in head
func metaContent(head *html.Node, name string) string {
	for _, meta := range findAllElements(head, "meta") {
		if strings.EqualFold(strings.TrimSpace(getAttr(meta, "name")), name) {
			return collapseWhitespace(getAttr(meta, "content"))
		}
	}
	return ""
}

func canonicalHref(head *html.Node) string {
	for _, link := range findAllElements(head, "link") {
		if strings.EqualFold(strings.TrimSpace(getAttr(link, "rel")), "canonical") {
			return strings.TrimSpace(getAttr(link, "href"))
		}
	}
	return ""
}

// resolveAgainst resolves ref against base, returning ref unchanged when it does not parse
func resolveAgainst(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

// extractHeadings returns up to MaxHeadingsPerLevel non-empty headings of one level
func extractHeadings(body *html.Node, tag string) []string {
	var results []string
	for _, elem := range findAllElements(body, tag) {
		if len(results) >= types.MaxHeadingsPerLevel {
			break
		}
		text := collapseWhitespace(getTextContent(elem))
		if text == "" {
			continue
		}
		results = append(results, truncateRunes(text, types.MaxHeadingLength))
	}
	return results
}

// countLinks classifies body anchors as internal (exact same host) or external
func (d *Document) countLinks(body *html.Node, seo *types.PageSEO) {
	for _, a := range findAllElements(body, "a") {
		resolved, ok := urlutil.ResolveLink(d.baseURL, getAttr(a, "href"))
		if !ok {
			continue
		}

		seo.LinksTotal++
		if urlutil.SameHost(d.pageURL, resolved) {
			seo.LinksInternal++
		} else {
			seo.LinksExternal++
		}
	}
}
