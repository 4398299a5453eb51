package extract

import (
	"strings"

	"golang.org/x/net/html"
)

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func firstClassToken(n *html.Node) string {
	class, _ := attr(n, "class")
	fields := strings.Fields(class)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// walk visits element nodes in document order. Returning false from visit
// skips the node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if n.Type == html.ElementNode && !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// find returns the first descendant element of n (n excluded) matching pred.
func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	for c := n.FirstChild; c != nil && found == nil; c = c.NextSibling {
		walk(c, func(el *html.Node) bool {
			if found != nil {
				return false
			}
			if pred(el) {
				found = el
				return false
			}
			return true
		})
	}
	return found
}

func byTestID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		v, ok := attr(n, "data-testid")
		return ok && v == id
	}
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

func byClassTokenContaining(sub string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		class, _ := attr(n, "class")
		for _, tok := range strings.Fields(class) {
			if strings.Contains(strings.ToLower(tok), sub) {
				return true
			}
		}
		return false
	}
}

// textNodes returns the trimmed, non-empty text nodes under n in order.
// Script and style content is ignored.
func textNodes(n *html.Node) []string {
	var out []string
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				out = append(out, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return out
}

// textOf returns the visible text under n with whitespace collapsed.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
