// Package adapters pulls article body text out of parsed news pages.
// Site-specific adapters run first, then structural ones, then the generic
// paragraph collector.
package adapters

import (
	"strings"

	"golang.org/x/net/html"
)

// Adapter defines the interface for article body extractors
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter applies to the given URL
	CanHandle(url string) bool

	// ExtractArticle returns the article body as paragraphs separated by
	// blank lines, or "" if the adapter found no body
	ExtractArticle(doc *html.Node, url string) string
}

// Registry manages article adapters in priority order
type Registry struct {
	adapters []Adapter
	generic  Adapter
}

// NewRegistry creates a registry with the built-in adapters
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
	}

	registry.Register(NewJSONLDAdapter())
	registry.Register(NewContainerAdapter())

	// Generic paragraph collector as fallback
	registry.generic = NewGenericAdapter()

	return registry
}

// Register appends an adapter; earlier registrations win
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// Extract runs the applicable adapters in order and returns the first body
// found along with the adapter name
func (r *Registry) Extract(doc *html.Node, url string) (string, string) {
	for _, adapter := range r.adapters {
		if !adapter.CanHandle(url) {
			continue
		}
		if text := adapter.ExtractArticle(doc, url); text != "" {
			return text, adapter.Name()
		}
	}
	if r.generic != nil {
		return r.generic.ExtractArticle(doc, url), r.generic.Name()
	}
	return "", ""
}

// BaseAdapter provides common functionality for adapters
type BaseAdapter struct{}

// ParseHTML parses HTML string into a node tree
func (b *BaseAdapter) ParseHTML(htmlContent string) (*html.Node, error) {
	return html.Parse(strings.NewReader(htmlContent))
}

// ExtractText extracts visible text content from a node, skipping scripts
func (b *BaseAdapter) ExtractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	if n.Type == html.ElementNode && skippedTags[n.Data] {
		return ""
	}

	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := b.ExtractText(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// HasClass checks if a node has a specific CSS class
func (b *BaseAdapter) HasClass(n *html.Node, className string) bool {
	if n.Type != html.ElementNode {
		return false
	}

	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, class := range strings.Fields(attr.Val) {
				if class == className {
					return true
				}
			}
		}
	}
	return false
}

// GetAttribute gets an attribute value from a node
func (b *BaseAdapter) GetAttribute(n *html.Node, attrKey string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}

// FindAll finds all nodes matching a predicate
func (b *BaseAdapter) FindAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			results = append(results, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return results
}

// FindFirst finds the first node matching a predicate
func (b *BaseAdapter) FindFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	var result *html.Node

	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if predicate(node) {
			result = node
			return true
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}

	walk(n)
	return result
}

// Paragraphs collects the text of <p> elements under n that are not inside
// page furniture (navigation, footers, asides, figures)
func (b *BaseAdapter) Paragraphs(n *html.Node, minLen int) []string {
	var out []string
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			if skippedTags[node.Data] || furnitureTags[node.Data] {
				return
			}
			if node.Data == "p" {
				text := b.ExtractText(node)
				if len([]rune(text)) >= minLen && !seen[text] {
					seen[text] = true
					out = append(out, text)
				}
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return out
}

// JoinParagraphs joins paragraphs with blank lines
func JoinParagraphs(paragraphs []string) string {
	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}

var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true, "template": true, "svg": true,
}

var furnitureTags = map[string]bool{
	"nav": true, "footer": true, "aside": true, "figure": true, "figcaption": true, "form": true, "button": true,
}
