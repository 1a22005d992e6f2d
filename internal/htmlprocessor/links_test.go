package htmlprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractArticleLinks_Selectors(t *testing.T) {
	page := `<html><body>
<nav><a href="/about">About</a></nav>
<article><h2><a href="/posts/first-post">First</a></h2></article>
<article><a href="https://blog.example.com/posts/second-post#comments">Second</a></article>
<div class="card"><a href="/posts/first-post">First again</a></div>
<div class="post"><a href="/category/news/">News</a><a href="/tag/go/">Go</a></div>
<div class="post"><a href="https://other.example.com/posts/x">Elsewhere</a></div>
<div class="post"><a href="https://www.blog.example.com/posts/y">Subdomain</a></div>
<div class="post"><a href="mailto:me@example.com">Mail</a><a href="#top">Top</a></div>
<h3><a href="/">Home</a></h3>
<div class="headline"><a href="/posts/third-post">Third</a></div>
</body></html>`

	links := parseHTML(t, blogURL, page).ExtractArticleLinks(defaultRules())

	assert.Equal(t, []string{
		"https://blog.example.com/posts/first-post",
		"https://blog.example.com/posts/second-post",
		"https://blog.example.com/posts/third-post",
	}, links)
}

func TestExtractArticleLinks_BaseHref(t *testing.T) {
	page := `<html><head><base href="https://blog.example.com/es/"></head><body>
<article><a href="hola-mundo">Hola</a></article>
</body></html>`

	links := parseHTML(t, "https://blog.example.com/es/index.html", page).ExtractArticleLinks(defaultRules())
	assert.Equal(t, []string{"https://blog.example.com/es/hola-mundo"}, links)
}

func TestExtractArticleLinks_Fallback(t *testing.T) {
	page := `<html><body>
<ul>
  <li><a href="/about">About</a></li>
  <li><a href="/2024/05/launch-day">Launch</a></li>
  <li><a href="/news/product-update">Update</a></li>
  <li><a href="/guides/seo-basics/">Guide</a></li>
  <li><a href="/author/jane/">Jane</a></li>
  <li><a href="https://other.example.com/blog/x">Other</a></li>
</ul>
</body></html>`

	links := parseHTML(t, blogURL, page).ExtractArticleLinks(defaultRules())

	assert.Equal(t, []string{
		"https://blog.example.com/2024/05/launch-day",
		"https://blog.example.com/news/product-update",
		"https://blog.example.com/guides/seo-basics/",
	}, links)
}

func TestExtractArticleLinks_FallbackSkippedWhenSelectorsMatch(t *testing.T) {
	page := `<html><body>
<article><a href="/hello">Hello</a></article>
<footer><a href="/2024/05/old-post">Old</a></footer>
</body></html>`

	links := parseHTML(t, blogURL, page).ExtractArticleLinks(defaultRules())
	assert.Equal(t, []string{"https://blog.example.com/hello"}, links)
}

func TestExtractArticleLinks_NoneFound(t *testing.T) {
	page := `<html><body><a href="/about">About</a><a href="https://x.com/">X</a></body></html>`

	links := parseHTML(t, blogURL, page).ExtractArticleLinks(defaultRules())
	assert.Empty(t, links)
}

func TestExtractArticleLinks_EmptyRules(t *testing.T) {
	page := `<html><body><article><a href="/tag/go/">Go</a></article></body></html>`

	links := parseHTML(t, blogURL, page).ExtractArticleLinks(LinkRules{})
	assert.Equal(t, []string{"https://blog.example.com/tag/go/"}, links)
}
