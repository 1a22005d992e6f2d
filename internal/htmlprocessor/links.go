package htmlprocessor

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/edgecomet/blogkeywords/internal/common/urlutil"
	"github.com/edgecomet/blogkeywords/pkg/pattern"
)

// articleSelectors locate anchors inside typical blog listing markup
var articleSelectors = []string{
	"article a", ".post a", ".article a", ".entry a",
	"a.article", "a.post", ".news-item a", ".blog-post a",
	".content a", ".card a", ".entry-title a",
	"h2 a", "h3 a", ".blog-entry a", ".post-title a",
	".blog-list__item a", ".blog-card a",
	".resource-card a", ".blog-content a",
	".title a", ".headline a",
}

// LinkRules filters candidate article URLs
type LinkRules struct {
	// Exclude is matched against the full resolved URL
	Exclude pattern.Set
	// Fallback is matched against the URL path when no article selector produced a link
	Fallback pattern.Set
}

// ExtractArticleLinks returns same-host article URLs in discovery order.
// Anchors matched by the article selectors are tried first; only when none
// survives filtering are all anchors scanned with the fallback path patterns.
func (d *Document) ExtractArticleLinks(rules LinkRules) []string {
	self := *d.pageURL
	self.Fragment, self.RawFragment = "", ""

	c := &linkCollector{doc: d, rules: rules, self: self.String(), seen: make(map[string]bool)}

	for _, selector := range articleSelectors {
		d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			c.consider(s, false)
		})
	}

	if len(c.links) == 0 {
		d.doc.Find("a").Each(func(_ int, s *goquery.Selection) {
			c.consider(s, true)
		})
	}

	return c.links
}

type linkCollector struct {
	doc   *Document
	rules LinkRules
	self  string
	seen  map[string]bool
	links []string
}

func (c *linkCollector) consider(s *goquery.Selection, fallback bool) {
	href, ok := s.Attr("href")
	if !ok {
		return
	}

	resolved, ok := urlutil.ResolveLink(c.doc.baseURL, href)
	if !ok || !urlutil.SameHost(c.doc.pageURL, resolved) {
		return
	}

	full := resolved.String()
	if c.seen[full] || full == c.self {
		return
	}
	if fallback && !c.rules.Fallback.MatchAny(resolved.Path) {
		return
	}
	if c.rules.Exclude.MatchAny(full) {
		return
	}

	c.seen[full] = true
	c.links = append(c.links, full)
}
