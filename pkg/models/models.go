package models

import "strings"

// Post is one timeline entry as extracted from a page. ID is the dedup key:
// the status id from the permalink, so every extraction strategy agrees on
// it. Posts without a status permalink get a content hash.
type Post struct {
	ID                string      `json:"id" yaml:"id"`
	AuthorHandle      string      `json:"author_handle" yaml:"author_handle"`
	AuthorDisplayName string      `json:"author_display_name,omitempty" yaml:"author_display_name,omitempty"`
	Text              string      `json:"text" yaml:"text"`
	Permalink         string      `json:"permalink,omitempty" yaml:"permalink,omitempty"`
	Engagement        *Engagement `json:"engagement,omitempty" yaml:"engagement,omitempty"`
	Language          string      `json:"language,omitempty" yaml:"language,omitempty"`
	CreatedAt         string      `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Engagement counters, present only when the page exposes them.
type Engagement struct {
	Favorites int `json:"favorites" yaml:"favorites"`
	Retweets  int `json:"retweets" yaml:"retweets"`
	Replies   int `json:"replies" yaml:"replies"`
}

// HandleFromPermalink returns the first path segment of a status permalink
// such as https://x.com/alice/status/1 or /alice/status/1.
func HandleFromPermalink(permalink string) string {
	if parts := statusPath(permalink); parts != nil {
		return parts[0]
	}
	return ""
}

// StatusID returns the status id of a permalink, "5" for both
// https://x.com/alice/status/5/photo/1 and /alice/status/5?s=20.
func StatusID(permalink string) string {
	if parts := statusPath(permalink); parts != nil {
		return parts[2]
	}
	return ""
}

func statusPath(permalink string) []string {
	p := permalink
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
		j := strings.IndexByte(p, '/')
		if j < 0 {
			return nil
		}
		p = p[j:]
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) >= 3 && parts[0] != "" && parts[1] == "status" && parts[2] != "" {
		return parts
	}
	return nil
}
