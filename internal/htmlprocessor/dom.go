package htmlprocessor

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// findElement returns the first element with the given lowercase tag in node's subtree
func findElement(node *html.Node, tag string) *html.Node {
	if node == nil {
		return nil
	}
	if node.Type == html.ElementNode && node.Data == tag {
		return node
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// findAllElements returns all descendants of parent with the given lowercase tag
func findAllElements(parent *html.Node, tag string) []*html.Node {
	if parent == nil {
		return nil
	}

	var results []*html.Node
	var search func(*html.Node)
	search = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			search(c)
		}
	}
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		search(c)
	}
	return results
}

// getAttr returns the attribute value (case-insensitive name), or "" if absent
func getAttr(node *html.Node, name string) string {
	if node == nil {
		return ""
	}
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, name) {
			return attr.Val
		}
	}
	return ""
}

// getTextContent concatenates all text below node
func getTextContent(node *html.Node) string {
	if node == nil {
		return ""
	}

	var sb strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(node)
	return sb.String()
}

// strippedTextLength counts the runes of every text node below nodes after
// trimming each one, so indentation and blank lines do not count as content
func strippedTextLength(nodes []*html.Node) int {
	total := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			total += utf8.RuneCountInString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return total
}

func truncateRunes(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
