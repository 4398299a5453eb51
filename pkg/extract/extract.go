// Package extract turns rendered timeline pages into post records.
//
// Two strategies exist. Structured reads the JSON state a server-rendered
// page embeds in a script tag; Heuristic walks the DOM and adapts its
// container selector when the markup drifts. Chain tries them in that order.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"tweetwatch/pkg/models"
)

// Strategy names reported in logs and metrics.
const (
	StrategyStructured = "structured"
	StrategyHeuristic  = "heuristic"
)

// Extractor pulls posts out of page content. The selector is the current
// container hint; the returned selector is the one to use next time.
type Extractor interface {
	Name() string
	Extract(content, selector string) ([]models.Post, string, error)
}

// Chain prefers embedded structured data and falls back to DOM heuristics
// when the page has none.
type Chain struct {
	Structured *Structured
	Heuristic  *Heuristic

	last string
}

// NewChain returns a chain with default strategies.
func NewChain() *Chain {
	return &Chain{Structured: NewStructured(), Heuristic: NewHeuristic()}
}

func (c *Chain) Name() string { return "chain" }

// Extract runs the structured strategy, falling back to the heuristic one
// only when the structured marker is absent. Broken structured data is an
// error, not a reason to guess from the DOM.
func (c *Chain) Extract(content, selector string) ([]models.Post, string, error) {
	posts, err := c.Structured.Parse(content)
	switch {
	case err == nil:
		c.last = StrategyStructured
		return posts, selector, nil
	case !errors.Is(err, ErrNoStructuredData):
		c.last = StrategyStructured
		return nil, selector, err
	}

	c.last = StrategyHeuristic
	return c.Heuristic.Extract(content, selector)
}

// LastStrategy names the strategy that produced the last result.
func (c *Chain) LastStrategy() string {
	return c.last
}

// resolve makes a site-relative permalink absolute.
func resolve(base, href string) string {
	if strings.HasPrefix(href, "/") {
		if base == "" {
			base = DefaultBaseURL
		}
		return strings.TrimRight(base, "/") + href
	}
	return href
}

// postID keys a post by its status id. Without one it falls back to the
// permalink, then to a hash of author and text.
func postID(permalink, handle, text string) string {
	if id := models.StatusID(permalink); id != "" {
		return id
	}
	if permalink != "" {
		return permalink
	}
	sum := sha256.Sum256([]byte(handle + "\n" + text))
	return "h:" + hex.EncodeToString(sum[:8])
}
