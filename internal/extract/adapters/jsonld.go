package adapters

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// JSONLDAdapter reads articleBody from schema.org JSON-LD blocks, which most
// news CMSs embed for search engines
type JSONLDAdapter struct {
	BaseAdapter
}

// NewJSONLDAdapter creates a new JSON-LD adapter
func NewJSONLDAdapter() *JSONLDAdapter {
	return &JSONLDAdapter{}
}

// Name returns the adapter name
func (a *JSONLDAdapter) Name() string {
	return "jsonld"
}

// CanHandle applies to every URL
func (a *JSONLDAdapter) CanHandle(string) bool {
	return true
}

// ExtractArticle returns the longest articleBody found in JSON-LD scripts
func (a *JSONLDAdapter) ExtractArticle(doc *html.Node, _ string) string {
	scripts := a.FindAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "script" &&
			strings.EqualFold(a.GetAttribute(n, "type"), "application/ld+json")
	})

	best := ""
	for _, script := range scripts {
		if script.FirstChild == nil {
			continue
		}
		var data any
		if err := json.Unmarshal([]byte(script.FirstChild.Data), &data); err != nil {
			continue
		}
		if body := findArticleBody(data); len(body) > len(best) {
			best = body
		}
	}

	return normalizeBody(best)
}

// findArticleBody walks decoded JSON (objects, arrays, @graph) for articleBody
func findArticleBody(v any) string {
	switch t := v.(type) {
	case map[string]any:
		if body, ok := t["articleBody"].(string); ok && body != "" {
			return body
		}
		best := ""
		for _, child := range t {
			if body := findArticleBody(child); len(body) > len(best) {
				best = body
			}
		}
		return best
	case []any:
		best := ""
		for _, child := range t {
			if body := findArticleBody(child); len(body) > len(best) {
				best = body
			}
		}
		return best
	default:
		return ""
	}
}

// normalizeBody unescapes stray markup and collapses whitespace per paragraph
func normalizeBody(body string) string {
	body = html.UnescapeString(body)
	var paragraphs []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return JoinParagraphs(paragraphs)
}
