package adapters

import (
	"strings"

	"golang.org/x/net/html"
)

// bodyClasses are CSS classes news templates use for the story container
var bodyClasses = []string{
	"article-body", "article__body", "article-content", "story-body", "story-content",
	"entry-content", "post-content", "td-post-content", "content-body", "article-text",
}

// ContainerAdapter collects paragraphs from the element that marks up the
// story body: itemprop=articleBody, a known body class, or <article>
type ContainerAdapter struct {
	BaseAdapter
	minParagraph int
}

// NewContainerAdapter creates a new container adapter
func NewContainerAdapter() *ContainerAdapter {
	return &ContainerAdapter{minParagraph: 20}
}

// Name returns the adapter name
func (a *ContainerAdapter) Name() string {
	return "container"
}

// CanHandle applies to every URL
func (a *ContainerAdapter) CanHandle(string) bool {
	return true
}

// ExtractArticle returns paragraphs of the richest body container
func (a *ContainerAdapter) ExtractArticle(doc *html.Node, _ string) string {
	predicates := []func(*html.Node) bool{
		func(n *html.Node) bool {
			return n.Type == html.ElementNode && a.GetAttribute(n, "itemprop") == "articleBody"
		},
		func(n *html.Node) bool {
			if n.Type != html.ElementNode {
				return false
			}
			for _, class := range bodyClasses {
				if a.HasClass(n, class) {
					return true
				}
			}
			return false
		},
		func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "article"
		},
	}

	for _, predicate := range predicates {
		best := ""
		for _, container := range a.FindAll(doc, predicate) {
			text := JoinParagraphs(a.Paragraphs(container, a.minParagraph))
			if len(text) > len(best) {
				best = text
			}
		}
		if best != "" {
			return best
		}
	}
	return ""
}

// GenericAdapter is the fallback: every reasonably long paragraph on the page
type GenericAdapter struct {
	BaseAdapter
	minParagraph int
}

// NewGenericAdapter creates a new generic adapter
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{minParagraph: 40}
}

// Name returns the adapter name
func (a *GenericAdapter) Name() string {
	return "generic"
}

// CanHandle always returns true (fallback adapter)
func (a *GenericAdapter) CanHandle(string) bool {
	return true
}

// ExtractArticle collects long paragraphs from the page body
func (a *GenericAdapter) ExtractArticle(doc *html.Node, _ string) string {
	body := a.FindFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "body"
	})
	if body == nil {
		body = doc
	}

	var kept []string
	for _, p := range a.Paragraphs(body, a.minParagraph) {
		lower := strings.ToLower(p)
		// Cookie banners and subscription prompts
		if len(p) < 200 && (strings.Contains(lower, "cookie") || strings.Contains(lower, "subscribe")) {
			continue
		}
		kept = append(kept, p)
	}
	return JoinParagraphs(kept)
}
