package extract

import (
	"strings"

	"golang.org/x/net/html"

	twerrors "tweetwatch/pkg/errors"
	"tweetwatch/pkg/models"
)

// DefaultBaseURL resolves relative permalinks found in the DOM.
const DefaultBaseURL = "https://x.com"

// Heuristic extracts posts from rendered HTML by grouping elements on their
// first class token. When the configured selector no longer matches
// anything it switches to the most common group on the page.
type Heuristic struct {
	BaseURL string
}

func NewHeuristic() *Heuristic { return &Heuristic{BaseURL: DefaultBaseURL} }

func (h *Heuristic) Name() string { return StrategyHeuristic }

func (h *Heuristic) Extract(content, selector string) ([]models.Post, string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, selector, twerrors.Extraction(StrategyHeuristic, err)
	}

	containers := containersFor(doc, selector)
	if len(containers) == 0 {
		dominant := DominantClass(doc)
		if dominant == "" {
			return nil, selector, nil
		}
		selector = dominant
		containers = containersFor(doc, selector)
	}

	var posts []models.Post
	index := make(map[string]int)
	for _, c := range containers {
		p, ok := h.probe(c)
		if !ok {
			continue
		}
		if i, dup := index[p.ID]; dup {
			posts[i] = p
			continue
		}
		index[p.ID] = len(posts)
		posts = append(posts, p)
	}
	return posts, selector, nil
}

// DominantClass returns the most frequent first class token in the
// document, the earliest one winning ties. Empty when no element has a class.
func DominantClass(doc *html.Node) string {
	counts := make(map[string]int)
	var order []string

	walk(doc, func(n *html.Node) bool {
		tok := firstClassToken(n)
		if tok == "" {
			return true
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
		return true
	})

	best := ""
	for _, tok := range order {
		if counts[tok] > counts[best] {
			best = tok
		}
	}
	return best
}

// containersFor returns every element whose class attribute contains
// selector, nested ones included. A wrapper that matches yields the record
// of its first post, which the post's own container then overwrites.
func containersFor(doc *html.Node, selector string) []*html.Node {
	if selector == "" {
		return nil
	}
	var out []*html.Node
	walk(doc, func(n *html.Node) bool {
		class, _ := attr(n, "class")
		if strings.Contains(class, selector) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func (h *Heuristic) probe(c *html.Node) (models.Post, bool) {
	permalink := h.permalink(c)
	text := postText(c)
	if permalink == "" && text == "" {
		return models.Post{}, false
	}

	handle, name := authorOf(c, permalink)

	return models.Post{
		ID:                postID(permalink, handle, text),
		AuthorHandle:      handle,
		AuthorDisplayName: name,
		Text:              text,
		Permalink:         permalink,
	}, true
}

func (h *Heuristic) permalink(c *html.Node) string {
	a := find(c, func(n *html.Node) bool {
		if n.Data != "a" {
			return false
		}
		href, _ := attr(n, "href")
		return strings.Contains(href, "/status/")
	})
	if a == nil {
		return ""
	}
	href, _ := attr(a, "href")
	return resolve(h.BaseURL, href)
}

// authorOf prefers the User-Name block, then the permalink, and only then
// the first @handle in the container, which may be a mention.
func authorOf(c *html.Node, permalink string) (handle, name string) {
	if un := find(c, byTestID("User-Name")); un != nil {
		for _, s := range textNodes(un) {
			switch {
			case strings.HasPrefix(s, "@") && handle == "":
				handle = strings.TrimPrefix(s, "@")
			case !strings.HasPrefix(s, "@") && s != "·" && name == "":
				name = s
			}
		}
	}
	if handle == "" {
		handle = models.HandleFromPermalink(permalink)
	}
	if handle == "" {
		for _, s := range textNodes(c) {
			if strings.HasPrefix(s, "@") && len(s) > 1 && !strings.ContainsAny(s, " \t") {
				handle = strings.TrimPrefix(s, "@")
				break
			}
		}
	}
	if name == "" {
		name = textOf(find(c, byTag("strong")))
	}
	return handle, name
}

func postText(c *html.Node) string {
	for _, pred := range []func(*html.Node) bool{
		byTestID("tweetText"),
		byClassTokenContaining("text"),
		byTag("p"),
	} {
		if n := find(c, pred); n != nil {
			if t := textOf(n); t != "" {
				return t
			}
		}
	}
	return ""
}
