package extract

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/k3a/html2text"
	"golang.org/x/net/html"
)

// errNoContent is returned when no node scores as main content
var errNoContent = errors.New("no main content candidate")

var (
	unlikelyCandidates = regexp.MustCompile(`(?i)banner|breadcrumbs|combx|comment|community|cover-wrap|disqus|extra|footer|gdpr|header|legends|menu|related|remark|replies|rss|shoutbox|sidebar|skyscraper|social|sponsor|supplemental|ad-break|agegate|pagination|pager|popup|newsletter`)
	maybeCandidate     = regexp.MustCompile(`(?i)and|article|body|column|content|main|shadow`)
	positiveWeight     = regexp.MustCompile(`(?i)article|body|content|entry|hentry|main|page|post|text|blog|story`)
	negativeWeight     = regexp.MustCompile(`(?i)-ad-|hidden|banner|combx|comment|com-|contact|foot|footnote|gdpr|masthead|media|meta|outbrain|promo|related|scroll|share|shoutbox|sidebar|skyscraper|sponsor|shopping|tags|tool|widget`)
	excessNewlines     = regexp.MustCompile(`\n{3,}`)
)

// removedTags never hold article text
var removedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true, "svg": true,
	"nav": true, "footer": true, "aside": true, "form": true, "button": true, "template": true,
}

// Readability finds the main content of page with Arc90-style scoring and
// returns it as plain text with paragraphs separated by blank lines
func Readability(page string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	prune(doc)

	scores := make(map[*html.Node]float64)
	top := topCandidate(doc, scores)
	if top == nil {
		return "", errNoContent
	}

	content := assemble(top, scores)

	var buf bytes.Buffer
	if err := html.Render(&buf, content); err != nil {
		return "", fmt.Errorf("render content: %w", err)
	}
	return cleanText(html2text.HTML2Text(buf.String())), nil
}

// prune drops non-content elements and unlikely candidates in place
func prune(doc *html.Node) {
	var doomed []*html.Node

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.CommentNode {
			doomed = append(doomed, n)
			return
		}
		if n.Type == html.ElementNode {
			if removedTags[n.Data] {
				doomed = append(doomed, n)
				return
			}
			if n.Data != "body" && n.Data != "html" && n.Data != "article" {
				marker := attr(n, "class") + " " + attr(n, "id")
				if unlikelyCandidates.MatchString(marker) && !maybeCandidate.MatchString(marker) {
					doomed = append(doomed, n)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// topCandidate scores paragraph containers and returns the best one
func topCandidate(doc *html.Node, scores map[*html.Node]float64) *html.Node {
	var candidates []*html.Node

	initScore := func(n *html.Node) {
		if _, ok := scores[n]; ok {
			return
		}
		scores[n] = tagWeight(n.Data) + classWeight(n)
		candidates = append(candidates, n)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "p" || n.Data == "pre" || n.Data == "td") {
			text := innerText(n)
			if len(text) >= 25 && n.Parent != nil && n.Parent.Type == html.ElementNode {
				score := 1 + float64(strings.Count(text, ",")) + math.Min(float64(len(text))/100, 3)

				initScore(n.Parent)
				scores[n.Parent] += score
				if gp := n.Parent.Parent; gp != nil && gp.Type == html.ElementNode {
					initScore(gp)
					scores[gp] += score / 2
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var top *html.Node
	best := 0.0
	for _, n := range candidates {
		scores[n] *= 1 - linkDensity(n)
		if top == nil || scores[n] > best {
			top, best = n, scores[n]
		}
	}
	return top
}

// assemble gathers the top candidate and its related siblings under one node
func assemble(top *html.Node, scores map[*html.Node]float64) *html.Node {
	content := &html.Node{Type: html.ElementNode, Data: "div"}

	parent := top.Parent
	if parent == nil {
		top.Parent = nil
		content.AppendChild(top)
		return content
	}

	threshold := math.Max(10, scores[top]*0.2)
	var keep []*html.Node
	for s := parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type != html.ElementNode {
			continue
		}
		if s == top {
			keep = append(keep, s)
			continue
		}
		if score, ok := scores[s]; ok && score >= threshold {
			keep = append(keep, s)
			continue
		}
		if s.Data == "p" {
			text := innerText(s)
			density := linkDensity(s)
			if (len(text) > 80 && density < 0.25) || (len(text) <= 80 && density == 0 && strings.Contains(text, ". ")) {
				keep = append(keep, s)
			}
		}
	}

	for _, n := range keep {
		parent.RemoveChild(n)
		content.AppendChild(n)
	}
	return content
}

func tagWeight(tag string) float64 {
	switch tag {
	case "div":
		return 5
	case "pre", "td", "blockquote":
		return 3
	case "address", "ol", "ul", "dl", "dd", "dt", "li", "form":
		return -3
	case "h1", "h2", "h3", "h4", "h5", "h6", "th":
		return -5
	default:
		return 0
	}
}

func classWeight(n *html.Node) float64 {
	weight := 0.0
	for _, key := range []string{"class", "id"} {
		v := attr(n, key)
		if v == "" {
			continue
		}
		if negativeWeight.MatchString(v) {
			weight -= 25
		}
		if positiveWeight.MatchString(v) {
			weight += 25
		}
	}
	return weight
}

func linkDensity(n *html.Node) float64 {
	total := len(innerText(n))
	if total == 0 {
		return 0
	}
	linked := 0
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode && c.Data == "a" {
			linked += len(innerText(c))
			return
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return float64(linked) / float64(total)
}

func innerText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			buf.WriteString(c.Data)
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// cleanText normalises html2text output to trimmed lines and single blank
// lines between paragraphs
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(excessNewlines.ReplaceAllString(text, "\n\n"))
}
