package session

import (
	"context"

	"tweetwatch/pkg/cookies"
)

// LaunchOptions configure the browser process.
type LaunchOptions struct {
	// Bin is the browser executable. Empty lets the backend find or download one.
	Bin       string
	Headless  bool
	NoSandbox bool
	Stealth   bool
}

// Launcher starts a browser.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is a running browser process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
	// Kill terminates the process and anything left of it. It may block;
	// callers bound it with ctx.
	Kill(ctx context.Context) error
}

// Page is a single tab.
type Page interface {
	SetUserAgent(ua string) error
	SetHeaders(headers map[string]string) error
	SetCookies(records []cookies.Record) error
	// Navigate loads url and waits until the network settles or ctx ends.
	Navigate(ctx context.Context, url string) error
	HTML() (string, error)
	Close() error
}

// CookieSource resolves the configured cookie source into records.
type CookieSource interface {
	Load(source string) ([]cookies.Record, error)
}
