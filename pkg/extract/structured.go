package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	twerrors "tweetwatch/pkg/errors"
	"tweetwatch/pkg/models"
)

const (
	structuredMarker = `<script id="__NEXT_DATA__" type="application/json">`
	structuredEnd    = `</script>`
)

// ErrNoStructuredData means the page does not embed the JSON state.
var ErrNoStructuredData = errors.New("no embedded timeline data")

// Structured reads posts from the JSON state embedded in the page under
// props.pageProps.timeline.entries.
type Structured struct {
	// BaseURL resolves relative permalinks; DefaultBaseURL when empty.
	BaseURL string
}

func NewStructured() *Structured { return &Structured{BaseURL: DefaultBaseURL} }

func (s *Structured) Name() string { return StrategyStructured }

// Extract returns no posts and no error when the marker is absent. The
// selector is passed through untouched.
func (s *Structured) Extract(content, selector string) ([]models.Post, string, error) {
	posts, err := s.Parse(content)
	if errors.Is(err, ErrNoStructuredData) {
		return nil, selector, nil
	}
	return posts, selector, err
}

// Parse is Extract without the absent-marker leniency.
func (s *Structured) Parse(content string) ([]models.Post, error) {
	payload, err := Locate(content)
	if err != nil {
		return nil, err
	}

	var doc nextData
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, twerrors.Extraction(StrategyStructured, err)
	}

	tl := doc.Props.PageProps.Timeline
	if tl == nil || tl.Entries == nil {
		return nil, twerrors.Extraction(StrategyStructured,
			errors.New("missing props.pageProps.timeline.entries"))
	}

	var posts []models.Post
	for i, e := range *tl.Entries {
		if e.Type != "tweet" && e.Type != "post" {
			continue
		}
		p, err := e.post(s.BaseURL)
		if err != nil {
			return nil, twerrors.Extraction(StrategyStructured, fmt.Errorf("entry %d: %w", i, err))
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// Locate returns the JSON text between the structured marker and the next
// closing script tag.
func Locate(content string) (string, error) {
	start := strings.Index(content, structuredMarker)
	if start < 0 {
		return "", ErrNoStructuredData
	}
	rest := content[start+len(structuredMarker):]
	end := strings.Index(rest, structuredEnd)
	if end < 0 {
		return "", ErrNoStructuredData
	}
	return rest[:end], nil
}

type nextData struct {
	Props struct {
		PageProps struct {
			Timeline *struct {
				Entries *[]timelineEntry `json:"entries"`
			} `json:"timeline"`
		} `json:"pageProps"`
	} `json:"props"`
}

type timelineEntry struct {
	Type    string `json:"type"`
	EntryID string `json:"entry_id"`
	Content *struct {
		Tweet *tweetContent `json:"tweet"`
	} `json:"content"`
}

type tweetContent struct {
	CreatedAt     string  `json:"created_at"`
	FullText      *string `json:"full_text"`
	Permalink     *string `json:"permalink"`
	FavoriteCount *int    `json:"favorite_count"`
	RetweetCount  *int    `json:"retweet_count"`
	ReplyCount    *int    `json:"reply_count"`
	Lang          string  `json:"lang"`
	User          *struct {
		ScreenName string `json:"screen_name"`
		Name       string `json:"name"`
	} `json:"user"`
}

func (e timelineEntry) post(base string) (models.Post, error) {
	switch {
	case e.EntryID == "":
		return models.Post{}, errors.New("missing entry_id")
	case e.Content == nil || e.Content.Tweet == nil:
		return models.Post{}, errors.New("missing content.tweet")
	case e.Content.Tweet.FullText == nil:
		return models.Post{}, errors.New("missing content.tweet.full_text")
	case e.Content.Tweet.Permalink == nil:
		return models.Post{}, errors.New("missing content.tweet.permalink")
	}

	t := e.Content.Tweet
	p := models.Post{
		Text:      *t.FullText,
		Permalink: resolve(base, *t.Permalink),
		Language:  t.Lang,
		CreatedAt: t.CreatedAt,
	}

	if t.User != nil && t.User.ScreenName != "" {
		p.AuthorHandle = t.User.ScreenName
		p.AuthorDisplayName = t.User.Name
	} else {
		p.AuthorHandle = models.HandleFromPermalink(p.Permalink)
	}
	// keyed like the DOM strategy keys the same post
	p.ID = models.StatusID(p.Permalink)
	if p.ID == "" {
		p.ID = e.EntryID
	}

	if t.FavoriteCount != nil || t.RetweetCount != nil || t.ReplyCount != nil {
		p.Engagement = &models.Engagement{
			Favorites: deref(t.FavoriteCount),
			Retweets:  deref(t.RetweetCount),
			Replies:   deref(t.ReplyCount),
		}
	}
	return p, nil
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
