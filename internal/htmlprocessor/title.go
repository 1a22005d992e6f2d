package htmlprocessor

import "strings"

// UntitledArticle is returned when a page has no usable title
const UntitledArticle = "Untitled Article"

var titleSelectors = []string{
	"h1.entry-title", "h1.post-title", "h1.title",
	"article h1", "header h1", ".post-header h1",
	"h1", ".article-title", ".post-title", ".entry-title",
}

// ArticleTitle returns the most likely article title: the first non-empty
// match of the title selectors, then <title>, then UntitledArticle.
func (d *Document) ArticleTitle() string {
	for _, selector := range titleSelectors {
		if text := collapseWhitespace(d.doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}

	if text := strings.TrimSpace(d.doc.Find("title").First().Text()); text != "" {
		return collapseWhitespace(text)
	}

	return UntitledArticle
}
